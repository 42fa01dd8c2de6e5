package learnworlds

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/smallbiznis/academy/internal/config"
	"go.uber.org/zap"
)

type httpGateway struct {
	cfg        config.ProviderConfig
	httpClient *http.Client
	log        *zap.Logger
}

// NewHTTPGateway builds the real provider client. The http.Client timeout is a
// hard upper bound on every call on top of per-request context deadlines.
func NewHTTPGateway(cfg config.Config, log *zap.Logger) Gateway {
	return &httpGateway{
		cfg: cfg.Provider,
		httpClient: &http.Client{
			Timeout: cfg.Provider.Timeout,
		},
		log: log.Named("provider.learnworlds"),
	}
}

func (g *httpGateway) GetUser(ctx context.Context, email string) (*User, error) {
	var user User
	path := "/v2/users/" + url.PathEscape(strings.ToLower(strings.TrimSpace(email)))
	if err := g.call(ctx, http.MethodGet, path, nil, &user); err != nil {
		return nil, err
	}
	if user.ID == "" {
		return nil, NewError(KindNotFound, "user payload missing id")
	}
	return &user, nil
}

func (g *httpGateway) CreateUser(ctx context.Context, req CreateUserRequest) (*User, error) {
	var user User
	if err := g.call(ctx, http.MethodPost, "/v2/users", req, &user); err != nil {
		return nil, err
	}
	if user.ID == "" {
		return nil, NewError(KindUnavailable, "create user returned no id")
	}
	return &user, nil
}

type validateRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type validateResponse struct {
	Valid       bool   `json:"valid"`
	SSORequired bool   `json:"sso_required"`
	SSOURL      string `json:"sso_url"`
	User        User   `json:"user"`
}

func (g *httpGateway) ValidateCredentials(ctx context.Context, email, password string) (*CredentialCheck, error) {
	var resp validateResponse
	body := validateRequest{Email: strings.ToLower(strings.TrimSpace(email)), Password: password}
	if err := g.call(ctx, http.MethodPost, "/v2/users/validate", body, &resp); err != nil {
		return nil, err
	}
	if resp.SSORequired {
		return &CredentialCheck{User: resp.User, SSORequired: true, SSOURL: resp.SSOURL}, nil
	}
	if !resp.Valid {
		return nil, NewError(KindInvalidCredentials, "provider rejected credentials")
	}
	return &CredentialCheck{User: resp.User}, nil
}

type ssoRequest struct {
	Email       string `json:"email"`
	RedirectURI string `json:"redirect_uri,omitempty"`
	Token       string `json:"token,omitempty"`
}

type ssoResponse struct {
	URL  string `json:"url"`
	User User   `json:"user"`
}

func (g *httpGateway) SSOURL(ctx context.Context, email, redirectURI string) (string, error) {
	var resp ssoResponse
	body := ssoRequest{Email: strings.ToLower(strings.TrimSpace(email)), RedirectURI: redirectURI}
	if err := g.call(ctx, http.MethodPost, "/v2/sso", body, &resp); err != nil {
		return "", err
	}
	if resp.URL == "" {
		return "", NewError(KindUnavailable, "sso response missing url")
	}
	return resp.URL, nil
}

func (g *httpGateway) ValidateSSOToken(ctx context.Context, email, ssoToken string) (*User, error) {
	var resp ssoResponse
	body := ssoRequest{Email: strings.ToLower(strings.TrimSpace(email)), Token: ssoToken}
	if err := g.call(ctx, http.MethodPost, "/v2/sso/validate", body, &resp); err != nil {
		return nil, err
	}
	if resp.User.ID == "" {
		return nil, NewError(KindInvalidCredentials, "sso token did not resolve to a user")
	}
	return &resp.User, nil
}

func (g *httpGateway) RequestPasswordReset(ctx context.Context, email string) error {
	body := map[string]string{"email": strings.ToLower(strings.TrimSpace(email))}
	return g.call(ctx, http.MethodPost, "/v2/users/password-reset", body, nil)
}

func (g *httpGateway) call(ctx context.Context, method, path string, body any, out any) error {
	if !g.cfg.Configured() {
		return NewError(KindNotConfigured, "provider credentials are not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.cfg.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+g.cfg.APIToken)
	req.Header.Set("Lw-Client", g.cfg.SchoolID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return NewError(KindUnavailable, err.Error())
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return NewError(KindUnavailable, err.Error())
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return g.classify(resp.StatusCode, raw)
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return NewError(KindUnavailable, "undecodable provider response")
	}
	return nil
}

// classify maps provider status codes to kinds. Upstream bodies go to the log,
// never to clients.
func (g *httpGateway) classify(status int, body []byte) error {
	g.log.Warn("provider call failed",
		zap.Int("status", status),
		zap.ByteString("body", truncate(body, 512)),
	)

	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return NewError(KindInvalidCredentials, fmt.Sprintf("provider returned %d", status))
	case http.StatusNotFound:
		return NewError(KindNotFound, "provider returned 404")
	case http.StatusConflict:
		return NewError(KindConflict, "provider returned 409")
	default:
		return NewError(KindUnavailable, fmt.Sprintf("provider returned %d", status))
	}
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
