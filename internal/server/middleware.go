package server

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/smallbiznis/academy/internal/ratelimit"
	"go.uber.org/zap"
)

const contextRequestIDKey = "request_id"

// RequestID propagates an inbound X-Request-Id or generates one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader("X-Request-Id"))
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(contextRequestIDKey, id)
		c.Header("X-Request-Id", id)
		c.Next()
	}
}

// SecurityHeaders attaches the standard hardening headers to every response.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
		c.Next()
	}
}

// classFor maps an API path to its rate-limit class by prefix.
func classFor(path string) ratelimit.Class {
	switch {
	case strings.HasPrefix(path, "/api/auth/"):
		return ratelimit.ClassAuth
	case strings.HasPrefix(path, "/api/webhooks/"):
		return ratelimit.ClassWebhook
	case strings.HasPrefix(path, "/api/public/"):
		return ratelimit.ClassPublic
	default:
		return ratelimit.ClassAPI
	}
}

// RateLimit enforces the per-class budget before any handler runs. Rate-limit
// headers go on every API response; denial short-circuits with 429 and
// Retry-After. A limiter backend failure fails open with a warning rather
// than taking the API down with it.
func (s *Server) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		class := classFor(c.Request.URL.Path)
		budget, ok := s.budgets[class]
		if !ok {
			c.Next()
			return
		}

		key := string(class) + ":" + s.clientIdentifier(c)
		result, err := s.limiter.Check(c.Request.Context(), key, budget)
		if err != nil {
			s.log.Warn("rate limiter unavailable, allowing request",
				zap.String("class", string(class)),
				zap.Error(err),
			)
			c.Next()
			return
		}

		h := c.Writer.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetTime.Unix(), 10))

		s.metrics.RecordRateLimit(string(class), result.Allowed)

		if !result.Allowed {
			retryAfter := int(time.Until(result.ResetTime).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			h.Set("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error":   "rate_limited",
			})
			return
		}

		c.Next()
	}
}

// clientIdentifier derives the rate-limit key. An authenticated credential
// fragment wins over network identity; the hash keeps the raw token out of
// the limiter's key space and the claims untrusted. Unidentified clients all
// share the "unknown" bucket.
func (s *Server) clientIdentifier(c *gin.Context) string {
	if raw, ok := s.sessions.ReadToken(c); ok {
		return credentialFragment(raw)
	}
	if bearer := strings.TrimSpace(strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer")); bearer != "" {
		return credentialFragment(bearer)
	}
	if forwarded := strings.TrimSpace(c.GetHeader("X-Forwarded-For")); forwarded != "" {
		if first, _, found := strings.Cut(forwarded, ","); found || first != "" {
			return strings.TrimSpace(first)
		}
	}
	if ip := c.ClientIP(); ip != "" {
		return ip
	}
	return "unknown"
}

func credentialFragment(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:8])
}

// AdminRequired gates the admin namespace on a distinct, coarser cookie.
// This is deliberately not the Session model; admin access is all-or-nothing.
func (s *Server) AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		value, err := c.Cookie(s.cfg.AdminCookieName)
		if err != nil || strings.TrimSpace(value) == "" {
			c.Redirect(http.StatusFound, "/admin/login")
			c.Abort()
			return
		}
		c.Next()
	}
}

func requestID(c *gin.Context) string {
	if v := strings.TrimSpace(c.GetString(contextRequestIDKey)); v != "" {
		return v
	}
	return ""
}
