package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/academy/internal/auth/legacy"
	"github.com/smallbiznis/academy/internal/auth/service"
	"github.com/smallbiznis/academy/internal/auth/session"
	"github.com/smallbiznis/academy/internal/auth/token"
	"github.com/smallbiznis/academy/internal/clock"
	"github.com/smallbiznis/academy/internal/config"
	obsmetrics "github.com/smallbiznis/academy/internal/observability/metrics"
	"github.com/smallbiznis/academy/internal/provider/learnworlds"
	"github.com/smallbiznis/academy/internal/ratelimit"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// scriptedGateway answers provider calls from fixed functions; unscripted calls
// fail as unavailable.
type scriptedGateway struct {
	validateCredentialsFn func(email, password string) (*learnworlds.CredentialCheck, error)
	createUserFn          func(req learnworlds.CreateUserRequest) (*learnworlds.User, error)
	validateSSOTokenFn    func(email, ssoToken string) (*learnworlds.User, error)
}

func (g *scriptedGateway) GetUser(context.Context, string) (*learnworlds.User, error) {
	return nil, learnworlds.NewError(learnworlds.KindUnavailable, "no script")
}

func (g *scriptedGateway) CreateUser(_ context.Context, req learnworlds.CreateUserRequest) (*learnworlds.User, error) {
	if g.createUserFn == nil {
		return nil, learnworlds.NewError(learnworlds.KindUnavailable, "no script")
	}
	return g.createUserFn(req)
}

func (g *scriptedGateway) ValidateCredentials(_ context.Context, email, password string) (*learnworlds.CredentialCheck, error) {
	if g.validateCredentialsFn == nil {
		return nil, learnworlds.NewError(learnworlds.KindUnavailable, "no script")
	}
	return g.validateCredentialsFn(email, password)
}

func (g *scriptedGateway) SSOURL(context.Context, string, string) (string, error) {
	return "", learnworlds.NewError(learnworlds.KindUnavailable, "no script")
}

func (g *scriptedGateway) ValidateSSOToken(_ context.Context, email, ssoToken string) (*learnworlds.User, error) {
	if g.validateSSOTokenFn == nil {
		return nil, learnworlds.NewError(learnworlds.KindUnavailable, "no script")
	}
	return g.validateSSOTokenFn(email, ssoToken)
}

func (g *scriptedGateway) RequestPasswordReset(context.Context, string) error {
	return nil
}

type testHarness struct {
	engine *gin.Engine
	clock  *clock.FakeClock
	codec  *token.Codec
}

func newTestServer(t *testing.T, gw learnworlds.Gateway) *testHarness {
	t.Helper()

	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	cfg := config.Config{
		SessionSecret:   "test-secret",
		SessionTTL:      7 * 24 * time.Hour,
		SSOSessionTTL:   24 * time.Hour,
		AdminCookieName: "admin_session",
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("failed to create id generator: %v", err)
	}
	codec := token.NewCodec(cfg, node, clk, zap.NewNop())
	sessions := session.NewManager(cfg, codec, clk)
	svc := service.New(zap.NewNop(), gw, codec, legacy.NewStoreFromAccounts(nil), cfg)

	limiter := ratelimit.NewFixedWindow(clk)
	t.Cleanup(limiter.Stop)

	httpMetrics := obsmetrics.NewHTTPMetrics()
	engine := NewEngine(zap.NewNop(), httpMetrics)

	srv := NewServer(ServerParams{
		Gin:      engine,
		Cfg:      cfg,
		Log:      zap.NewNop(),
		Authsvc:  svc,
		Sessions: sessions,
		Limiter:  limiter,
		Budgets:  ratelimit.Budgets(nil),
		Metrics:  httpMetrics,
	})
	srv.RegisterRoutes()

	return &testHarness{engine: engine, clock: clk, codec: codec}
}

func (h *testHarness) do(method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	h.engine.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("undecodable response body %q: %v", w.Body.String(), err)
	}
	return body
}

func sessionCookie(w *httptest.ResponseRecorder) *http.Cookie {
	for _, cookie := range w.Result().Cookies() {
		if cookie.Name == session.DefaultCookieName {
			return cookie
		}
	}
	return nil
}

func TestLoginSetsSessionCookie(t *testing.T) {
	h := newTestServer(t, &scriptedGateway{
		validateCredentialsFn: func(email, password string) (*learnworlds.CredentialCheck, error) {
			return &learnworlds.CredentialCheck{
				User: learnworlds.User{ID: "u-1", Email: email, FirstName: "Ada"},
			}, nil
		},
	})

	w := h.do(http.MethodPost, "/api/auth/login", `{"email":"ada@example.com","password":"correct horse 1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	body := decodeBody(t, w)
	if body["success"] != true {
		t.Fatalf("expected success, got %v", body)
	}
	if _, ok := body["token"].(string); !ok {
		t.Fatal("expected a token in the response")
	}

	cookie := sessionCookie(w)
	if cookie == nil {
		t.Fatal("expected a session cookie")
	}
	if !cookie.HttpOnly {
		t.Fatal("session cookie must be HTTP-only")
	}

	verified, err := h.codec.Verify(cookie.Value)
	if err != nil {
		t.Fatalf("session cookie must carry a valid token: %v", err)
	}
	if verified.Email != "ada@example.com" {
		t.Fatalf("unexpected token email %q", verified.Email)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	h := newTestServer(t, &scriptedGateway{
		validateCredentialsFn: func(email, password string) (*learnworlds.CredentialCheck, error) {
			return nil, learnworlds.NewError(learnworlds.KindInvalidCredentials, "nope")
		},
	})

	w := h.do(http.MethodPost, "/api/auth/login", `{"email":"ada@example.com","password":"wrong pass 1"}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["error"] != "invalid_credentials" {
		t.Fatalf("unexpected error code %v", body["error"])
	}
	if sessionCookie(w) != nil {
		t.Fatal("failed login must not set a session cookie")
	}
}

func TestLoginSSOHandoff(t *testing.T) {
	h := newTestServer(t, &scriptedGateway{
		validateCredentialsFn: func(email, password string) (*learnworlds.CredentialCheck, error) {
			return &learnworlds.CredentialCheck{SSORequired: true, SSOURL: "https://school.example.com/sso"}, nil
		},
	})

	w := h.do(http.MethodPost, "/api/auth/login", `{"email":"a@example.com","password":"whatever 1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["requiresSSO"] != true || body["ssoUrl"] != "https://school.example.com/sso" {
		t.Fatalf("unexpected SSO handoff body %v", body)
	}
	if sessionCookie(w) != nil {
		t.Fatal("SSO handoff must not set a session cookie")
	}
}

func TestAuthEndpointsAreRateLimited(t *testing.T) {
	h := newTestServer(t, &scriptedGateway{
		validateCredentialsFn: func(email, password string) (*learnworlds.CredentialCheck, error) {
			return nil, learnworlds.NewError(learnworlds.KindInvalidCredentials, "nope")
		},
	})

	payload := `{"email":"a@example.com","password":"wrong pass 1"}`
	for i := 0; i < 5; i++ {
		w := h.do(http.MethodPost, "/api/auth/login", payload)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: expected 401, got %d", i+1, w.Code)
		}
		if w.Header().Get("X-RateLimit-Limit") != "5" {
			t.Fatalf("attempt %d: expected limit header 5, got %q", i+1, w.Header().Get("X-RateLimit-Limit"))
		}
	}

	w := h.do(http.MethodPost, "/api/auth/login", payload)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("6th attempt: expected 429, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatal("expected a Retry-After header on denial")
	}
	body := decodeBody(t, w)
	if body["error"] != "rate_limited" {
		t.Fatalf("unexpected error code %v", body["error"])
	}

	h.clock.Advance(15 * time.Minute)
	w = h.do(http.MethodPost, "/api/auth/login", payload)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("after window reset: expected 401, got %d", w.Code)
	}
}

func TestWebhookBudgetIsSeparateFromAuth(t *testing.T) {
	h := newTestServer(t, &scriptedGateway{
		validateCredentialsFn: func(email, password string) (*learnworlds.CredentialCheck, error) {
			return nil, learnworlds.NewError(learnworlds.KindInvalidCredentials, "nope")
		},
	})

	payload := `{"email":"a@example.com","password":"wrong pass 1"}`
	for i := 0; i < 6; i++ {
		h.do(http.MethodPost, "/api/auth/login", payload)
	}

	w := h.do(http.MethodPost, "/api/webhooks/learnworlds", `{"type":"userCreated"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("webhook must not share the auth budget: got %d", w.Code)
	}
}

func TestGetSessionUnauthenticated(t *testing.T) {
	h := newTestServer(t, &scriptedGateway{})

	w := h.do(http.MethodGet, "/api/auth/session", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := decodeBody(t, w)
	if body["authenticated"] != false {
		t.Fatalf("expected authenticated false, got %v", body)
	}
	if body["user"] != nil {
		t.Fatalf("expected null user, got %v", body["user"])
	}
}

func TestSessionLifecycle(t *testing.T) {
	h := newTestServer(t, &scriptedGateway{
		validateCredentialsFn: func(email, password string) (*learnworlds.CredentialCheck, error) {
			return &learnworlds.CredentialCheck{User: learnworlds.User{ID: "u-1", Email: email}}, nil
		},
	})

	login := h.do(http.MethodPost, "/api/auth/login", `{"email":"a@example.com","password":"correct horse 1"}`)
	cookie := sessionCookie(login)
	if cookie == nil {
		t.Fatal("expected a session cookie")
	}

	read := h.do(http.MethodGet, "/api/auth/session", "", &http.Cookie{Name: cookie.Name, Value: cookie.Value})
	if read.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", read.Code)
	}
	body := decodeBody(t, read)
	if body["authenticated"] != true {
		t.Fatalf("expected authenticated session, got %v", body)
	}
	user, ok := body["user"].(map[string]any)
	if !ok || user["email"] != "a@example.com" {
		t.Fatalf("unexpected user payload %v", body["user"])
	}

	logout := h.do(http.MethodDelete, "/api/auth/session", "", &http.Cookie{Name: cookie.Name, Value: cookie.Value})
	if logout.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", logout.Code)
	}
	cleared := sessionCookie(logout)
	if cleared == nil || cleared.MaxAge >= 0 {
		t.Fatal("logout must expire the session cookie")
	}

	// Logging out twice is fine.
	again := h.do(http.MethodDelete, "/api/auth/session", "")
	if again.Code != http.StatusOK {
		t.Fatalf("repeat logout: expected 200, got %d", again.Code)
	}
}

func TestSessionRefreshDeepIntoLifetime(t *testing.T) {
	h := newTestServer(t, &scriptedGateway{
		validateCredentialsFn: func(email, password string) (*learnworlds.CredentialCheck, error) {
			return &learnworlds.CredentialCheck{User: learnworlds.User{ID: "u-1", Email: email}}, nil
		},
	})

	login := h.do(http.MethodPost, "/api/auth/login", `{"email":"a@example.com","password":"correct horse 1"}`)
	cookie := sessionCookie(login)
	if cookie == nil {
		t.Fatal("expected a session cookie")
	}

	// 6 days into a 7-day session is past the refresh threshold.
	h.clock.Advance(6 * 24 * time.Hour)

	read := h.do(http.MethodGet, "/api/auth/session", "", &http.Cookie{Name: cookie.Name, Value: cookie.Value})
	if read.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", read.Code)
	}
	refreshed := sessionCookie(read)
	if refreshed == nil {
		t.Fatal("expected a reissued session cookie")
	}
	if refreshed.Value == cookie.Value {
		t.Fatal("reissued cookie should carry a new token")
	}

	verified, err := h.codec.Verify(refreshed.Value)
	if err != nil {
		t.Fatalf("reissued token must verify: %v", err)
	}
	if want := h.clock.Now().Add(7 * 24 * time.Hour); !verified.ExpiresAt.Equal(want) {
		t.Fatalf("refresh must preserve the 7-day lifetime: got %v, want %v", verified.ExpiresAt, want)
	}
}

func TestRegisterWeakPassword(t *testing.T) {
	h := newTestServer(t, &scriptedGateway{})

	w := h.do(http.MethodPost, "/api/auth/register", `{"email":"a@example.com","password":"short1"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["error"] != "password_too_short" {
		t.Fatalf("unexpected error code %v", body["error"])
	}
}

func TestRegisterConflict(t *testing.T) {
	h := newTestServer(t, &scriptedGateway{
		createUserFn: func(req learnworlds.CreateUserRequest) (*learnworlds.User, error) {
			return nil, learnworlds.NewError(learnworlds.KindConflict, "exists")
		},
	})

	w := h.do(http.MethodPost, "/api/auth/register", `{"email":"a@example.com","password":"good pass 1"}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["error"] != "user_exists" {
		t.Fatalf("unexpected error code %v", body["error"])
	}
}

func TestProviderOutageSurfacesAs503(t *testing.T) {
	h := newTestServer(t, &scriptedGateway{
		validateCredentialsFn: func(email, password string) (*learnworlds.CredentialCheck, error) {
			return nil, learnworlds.NewError(learnworlds.KindUnavailable, "timeout")
		},
	})

	w := h.do(http.MethodPost, "/api/auth/login", `{"email":"a@example.com","password":"whatever 1"}`)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d: %s", w.Code, w.Body.String())
	}
	body := decodeBody(t, w)
	if body["error"] != "provider_unavailable" {
		t.Fatalf("unexpected error code %v", body["error"])
	}
}

func TestSSOCallbackRedirects(t *testing.T) {
	h := newTestServer(t, &scriptedGateway{
		validateSSOTokenFn: func(email, ssoToken string) (*learnworlds.User, error) {
			if ssoToken != "good-token" {
				return nil, learnworlds.NewError(learnworlds.KindInvalidCredentials, "bad token")
			}
			return &learnworlds.User{ID: "u-sso", Email: email}, nil
		},
	})

	w := h.do(http.MethodGet, "/api/auth/sso?token=good-token&email=a@example.com", "")
	if w.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/dashboard" {
		t.Fatalf("expected redirect to /dashboard, got %q", loc)
	}
	if sessionCookie(w) == nil {
		t.Fatal("successful SSO callback must set a session cookie")
	}

	w = h.do(http.MethodGet, "/api/auth/sso?token=bad-token&email=a@example.com", "")
	if w.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/login?error=sso_failed" {
		t.Fatalf("expected failure redirect, got %q", loc)
	}

	w = h.do(http.MethodGet, "/api/auth/sso", "")
	if loc := w.Header().Get("Location"); loc != "/login?error=sso_invalid" {
		t.Fatalf("expected invalid redirect, got %q", loc)
	}
}

func TestPasswordResetAlwaysSucceeds(t *testing.T) {
	h := newTestServer(t, &scriptedGateway{})

	for _, payload := range []string{
		`{"email":"known@example.com"}`,
		`{"email":"unknown@example.com"}`,
	} {
		w := h.do(http.MethodPost, "/api/auth/password-reset", payload)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		body := decodeBody(t, w)
		if body["success"] != true {
			t.Fatalf("unexpected body %v", body)
		}
	}
}

func TestSecurityAndRequestIDHeaders(t *testing.T) {
	h := newTestServer(t, &scriptedGateway{})

	w := h.do(http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Header().Get("X-Frame-Options") != "DENY" {
		t.Fatal("missing X-Frame-Options header")
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatal("missing X-Content-Type-Options header")
	}
	if w.Header().Get("X-Request-Id") == "" {
		t.Fatal("missing X-Request-Id header")
	}
}

func TestRequestIDPropagates(t *testing.T) {
	h := newTestServer(t, &scriptedGateway{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-Id", "req-abc-123")
	w := httptest.NewRecorder()
	h.engine.ServeHTTP(w, req)

	if got := w.Header().Get("X-Request-Id"); got != "req-abc-123" {
		t.Fatalf("expected inbound request id to propagate, got %q", got)
	}
}

func TestAdminGate(t *testing.T) {
	h := newTestServer(t, &scriptedGateway{})

	w := h.do(http.MethodGet, "/admin/", "")
	if w.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/admin/login" {
		t.Fatalf("expected redirect to /admin/login, got %q", loc)
	}

	w = h.do(http.MethodGet, "/admin/", "", &http.Cookie{Name: "admin_session", Value: "granted"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with admin cookie, got %d", w.Code)
	}
}

func TestMalformedJSONBody(t *testing.T) {
	h := newTestServer(t, &scriptedGateway{})

	w := h.do(http.MethodPost, "/api/auth/login", `{not json`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	body := decodeBody(t, w)
	if body["error"] != "invalid_request" {
		t.Fatalf("unexpected error code %v", body["error"])
	}
}
