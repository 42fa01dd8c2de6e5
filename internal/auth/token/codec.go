package token

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/golang-jwt/jwt/v5"
	"github.com/smallbiznis/academy/internal/clock"
	"github.com/smallbiznis/academy/internal/config"
	"go.uber.org/zap"
)

// Verification failures. Absence of a token is not an error at this layer;
// callers treat any of these as "not logged in" on the read path.
var (
	ErrMalformed        = errors.New("token_malformed")
	ErrInvalidSignature = errors.New("token_invalid_signature")
	ErrExpired          = errors.New("token_expired")
)

// insecureDevSecret keeps local development working without SESSION_SECRET.
// Production deployments must set the real secret.
const insecureDevSecret = "academy-dev-secret-do-not-use-in-production"

// Claims is the minimal identity carried inside a session token.
type Claims struct {
	UserID    string
	Email     string
	FirstName string
	LastName  string
	Source    string
}

// Token is a verified session token with its embedded lifetime.
type Token struct {
	Claims
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type sessionClaims struct {
	jwt.RegisteredClaims
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Source    string `json:"src"`
}

// Codec signs and verifies self-contained session tokens (HS256). Verification
// needs no server-side state, which is the point: any instance can validate a
// session. The tradeoff is no revocation before natural expiry.
type Codec struct {
	secret []byte
	genID  *snowflake.Node
	clock  clock.Clock
}

func NewCodec(cfg config.Config, genID *snowflake.Node, clk clock.Clock, log *zap.Logger) *Codec {
	secret := cfg.SessionSecret
	if secret == "" {
		log.Named("auth.token").Warn("SESSION_SECRET is not set, falling back to insecure development secret")
		secret = insecureDevSecret
	}
	return &Codec{
		secret: []byte(secret),
		genID:  genID,
		clock:  clk,
	}
}

// Issue signs claims into a compact token valid for ttl.
func (c *Codec) Issue(claims Claims, ttl time.Duration) (string, time.Time, error) {
	now := c.clock.Now()
	expiresAt := now.Add(ttl)

	jc := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        c.genID.Generate().String(),
			Subject:   claims.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Email:     claims.Email,
		FirstName: claims.FirstName,
		LastName:  claims.LastName,
		Source:    claims.Source,
	}

	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jc).SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return raw, expiresAt, nil
}

// Verify validates signature and expiry and decodes the claims.
func (c *Codec) Verify(raw string) (*Token, error) {
	parsed, err := jwt.ParseWithClaims(raw, &sessionClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidSignature
		}
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.clock.Now),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrInvalidSignature
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, ErrMalformed
		default:
			return nil, ErrMalformed
		}
	}

	claims, ok := parsed.Claims.(*sessionClaims)
	if !ok || !parsed.Valid {
		return nil, ErrMalformed
	}
	if claims.Subject == "" || claims.IssuedAt == nil || claims.ExpiresAt == nil {
		return nil, ErrMalformed
	}

	return &Token{
		Claims: Claims{
			UserID:    claims.Subject,
			Email:     claims.Email,
			FirstName: claims.FirstName,
			LastName:  claims.LastName,
			Source:    claims.Source,
		},
		ID:        claims.ID,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
