package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	authdomain "github.com/smallbiznis/academy/internal/auth/domain"
	"go.uber.org/zap"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type ssoRequest struct {
	Email    string `json:"email"`
	Provider string `json:"provider"`
	SSOToken string `json:"ssoToken"`
}

func (s *Server) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	result, err := s.authsvc.Login(c.Request.Context(), authdomain.LoginRequest{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if result.RequiresSSO {
		c.JSON(http.StatusOK, gin.H{
			"success":     false,
			"requiresSSO": true,
			"ssoUrl":      result.SSOURL,
		})
		return
	}

	s.sessions.Set(c, result.RawToken, result.ExpiresAt)
	s.log.Info("login created session",
		zap.String("request_id", requestID(c)),
		zap.String("source", string(result.Source)),
		zap.Bool("migrated", result.Migrated),
	)

	body := gin.H{
		"success": true,
		"token":   result.RawToken,
		"user":    result.User,
	}
	if result.Migrated {
		body["migrated"] = true
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	result, err := s.authsvc.Register(c.Request.Context(), authdomain.RegisterRequest{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.sessions.Set(c, result.RawToken, result.ExpiresAt)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"token":   result.RawToken,
		"user":    result.User,
	})
}

func (s *Server) Migrate(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	result, err := s.authsvc.MigrateAccount(c.Request.Context(), authdomain.RegisterRequest{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.sessions.Set(c, result.RawToken, result.ExpiresAt)
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"token":    result.RawToken,
		"user":     result.User,
		"migrated": true,
	})
}

// SSOStart is the two-phase SSO entry: without a token it hands back the
// provider redirect URL; with one it completes the login.
func (s *Server) SSOStart(c *gin.Context) {
	var req ssoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if strings.TrimSpace(req.SSOToken) == "" {
		ssoURL, err := s.authsvc.SSORedirect(c.Request.Context(), req.Email)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"requiresSSO": true,
			"ssoUrl":      ssoURL,
		})
		return
	}

	result, err := s.authsvc.LoginWithSSO(c.Request.Context(), authdomain.SSOLoginRequest{
		Email: req.Email,
		Token: req.SSOToken,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.sessions.Set(c, result.RawToken, result.ExpiresAt)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"token":   result.RawToken,
		"user":    result.User,
	})
}

// SSOCallback is the provider redirect target. Failures bounce back to the
// login page with an error code; the browser never sees a JSON error here.
func (s *Server) SSOCallback(c *gin.Context) {
	ssoToken := strings.TrimSpace(c.Query("token"))
	email := strings.TrimSpace(c.Query("email"))
	if ssoToken == "" || email == "" {
		c.Redirect(http.StatusFound, "/login?error=sso_invalid")
		return
	}

	result, err := s.authsvc.LoginWithSSO(c.Request.Context(), authdomain.SSOLoginRequest{
		Email: email,
		Token: ssoToken,
	})
	if err != nil {
		s.log.Warn("sso callback failed", zap.String("request_id", requestID(c)), zap.Error(err))
		c.Redirect(http.StatusFound, "/login?error=sso_failed")
		return
	}

	s.sessions.Set(c, result.RawToken, result.ExpiresAt)
	c.Redirect(http.StatusFound, "/dashboard")
}

// GetSession reports the current session. "Not logged in" is a normal 200
// state, never an error. A session deep enough into its lifetime is
// transparently refreshed as a side effect of the read.
func (s *Server) GetSession(c *gin.Context) {
	sess, ok := s.sessions.RefreshIfNeeded(c)
	if !ok {
		c.JSON(http.StatusOK, gin.H{
			"user":          nil,
			"authenticated": false,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":          sess.User,
		"authenticated": true,
		"verified":      true,
		"expiresAt":     sess.ExpiresAt.UnixMilli(),
		"source":        sess.Source,
	})
}

// DeleteSession logs out. Idempotent: destroying an absent session succeeds.
func (s *Server) DeleteSession(c *gin.Context) {
	if raw, ok := s.sessions.ReadToken(c); ok {
		_ = s.authsvc.Logout(c.Request.Context(), raw)
	}
	s.sessions.Clear(c)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "logged out",
	})
}

// PasswordReset always reports success regardless of whether the email exists.
func (s *Server) PasswordReset(c *gin.Context) {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	_ = s.authsvc.RequestPasswordReset(c.Request.Context(), req.Email)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "if the account exists, a reset email has been sent",
	})
}

// Webhook acknowledges provider-originated events. Processing is owned by the
// catalog pipeline; this endpoint only exists so webhook traffic is classified
// and rate limited at the edge.
func (s *Server) Webhook(c *gin.Context) {
	s.log.Debug("webhook received", zap.String("request_id", requestID(c)))
	c.JSON(http.StatusOK, gin.H{"received": true})
}

func (s *Server) AdminLogin(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"login":  true,
		"cookie": s.cfg.AdminCookieName,
	})
}

func (s *Server) AdminHome(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"admin": true})
}
