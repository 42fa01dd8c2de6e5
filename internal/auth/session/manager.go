package session

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/academy/internal/auth/domain"
	"github.com/smallbiznis/academy/internal/auth/token"
	"github.com/smallbiznis/academy/internal/clock"
	"github.com/smallbiznis/academy/internal/config"
)

const DefaultCookieName = "_asid"

// Cookie names from earlier schema versions. Deleted on every write and clear
// so a stale session can never survive an upgrade.
var legacyCookieNames = []string{"academy_session", "lw_session"}

// Manager bridges sessions to the browser via a signed HTTP-only cookie.
// There is no server-side session state; the cookie value is the whole session.
type Manager struct {
	cookieName string
	secure     bool
	codec      *token.Codec
	clock      clock.Clock
}

func NewManager(cfg config.Config, codec *token.Codec, clk clock.Clock) *Manager {
	return &Manager{
		cookieName: DefaultCookieName,
		secure:     cfg.AuthCookieSecure,
		codec:      codec,
		clock:      clk,
	}
}

func (m *Manager) CookieName() string {
	return m.cookieName
}

func (m *Manager) ReadToken(c *gin.Context) (string, bool) {
	raw, err := c.Cookie(m.cookieName)
	if err != nil {
		return "", false
	}
	if strings.TrimSpace(raw) == "" {
		return "", false
	}
	return raw, true
}

// Set writes the session cookie with a max-age matching the token lifetime.
func (m *Manager) Set(c *gin.Context, value string, expiresAt time.Time) {
	maxAge := int(expiresAt.Sub(m.clock.Now()).Seconds())
	if maxAge < 0 {
		maxAge = 0
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(m.cookieName, value, maxAge, "/", "", m.secure, true)
	m.clearLegacy(c)
}

// Current reads and verifies the session cookie. Any failure, including an
// absent cookie, reads as "not logged in"; it never surfaces an error.
func (m *Manager) Current(c *gin.Context) (*domain.Session, bool) {
	raw, ok := m.ReadToken(c)
	if !ok {
		return nil, false
	}
	t, err := m.codec.Verify(raw)
	if err != nil {
		return nil, false
	}
	return sessionFromToken(t), true
}

// RefreshIfNeeded reissues the cookie once the session has entered the last
// third of its lifetime, keeping active users signed in without a new login.
// Before the threshold it returns the session unchanged; it never shortens one.
func (m *Manager) RefreshIfNeeded(c *gin.Context) (*domain.Session, bool) {
	raw, ok := m.ReadToken(c)
	if !ok {
		return nil, false
	}
	t, err := m.codec.Verify(raw)
	if err != nil {
		return nil, false
	}

	lifetime := t.ExpiresAt.Sub(t.IssuedAt)
	threshold := t.ExpiresAt.Add(-lifetime / 3)
	if m.clock.Now().Before(threshold) {
		return sessionFromToken(t), true
	}

	reissued, expiresAt, err := m.codec.Issue(t.Claims, lifetime)
	if err != nil {
		return sessionFromToken(t), true
	}
	m.Set(c, reissued, expiresAt)

	refreshed, err := m.codec.Verify(reissued)
	if err != nil {
		return sessionFromToken(t), true
	}
	return sessionFromToken(refreshed), true
}

// Clear deletes the session cookie and every legacy cookie name. Idempotent.
func (m *Manager) Clear(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(m.cookieName, "", -1, "/", "", m.secure, true)
	m.clearLegacy(c)
}

func (m *Manager) clearLegacy(c *gin.Context) {
	for _, name := range legacyCookieNames {
		c.SetCookie(name, "", -1, "/", "", m.secure, true)
	}
}

func sessionFromToken(t *token.Token) *domain.Session {
	return &domain.Session{
		User: domain.User{
			ID:        t.UserID,
			Email:     t.Email,
			FirstName: t.FirstName,
			LastName:  t.LastName,
		},
		Source:    domain.Source(t.Source),
		CreatedAt: t.IssuedAt,
		ExpiresAt: t.ExpiresAt,
	}
}
