package service

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/smallbiznis/academy/internal/auth/domain"
	"github.com/smallbiznis/academy/internal/auth/legacy"
	"github.com/smallbiznis/academy/internal/auth/password"
	"github.com/smallbiznis/academy/internal/auth/token"
	"github.com/smallbiznis/academy/internal/config"
	"github.com/smallbiznis/academy/internal/provider/learnworlds"
	"go.uber.org/zap"
)

// Service orchestrates login, registration, legacy migration, SSO and logout.
// It holds no state of its own; sessions live in the signed token, accounts in
// the provider.
type Service struct {
	log     *zap.Logger
	gateway learnworlds.Gateway
	codec   *token.Codec
	legacy  *legacy.Store
	cfg     config.Config
}

func New(log *zap.Logger, gateway learnworlds.Gateway, codec *token.Codec, legacyStore *legacy.Store, cfg config.Config) domain.Service {
	return &Service{
		log:     log.Named("auth.service"),
		gateway: gateway,
		codec:   codec,
		legacy:  legacyStore,
		cfg:     cfg,
	}
}

func (s *Service) Login(ctx context.Context, req domain.LoginRequest) (*domain.LoginResult, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	if strings.TrimSpace(req.Password) == "" {
		return nil, domain.ErrInvalidCredentials
	}

	check, err := s.gateway.ValidateCredentials(ctx, email, req.Password)
	if err != nil {
		switch learnworlds.KindOf(err) {
		case learnworlds.KindInvalidCredentials:
			return nil, domain.ErrInvalidCredentials
		case learnworlds.KindNotFound:
			return s.loginLegacy(ctx, email, req.Password)
		default:
			return nil, s.translateProviderError(err)
		}
	}

	if check.SSORequired {
		ssoURL := check.SSOURL
		if ssoURL == "" {
			ssoURL, err = s.gateway.SSOURL(ctx, email, "")
			if err != nil {
				return nil, s.translateProviderError(err)
			}
		}
		return &domain.LoginResult{RequiresSSO: true, SSOURL: ssoURL}, nil
	}

	return s.issueSession(gatewayUser(check.User), domain.SourceLearnWorlds, s.cfg.SessionTTL, false)
}

// loginLegacy is the transparent migration path: the provider has never seen
// this email, but the legacy store has a matching credential. Create the
// provider account preserving the password and log the user straight in.
func (s *Service) loginLegacy(ctx context.Context, email, candidate string) (*domain.LoginResult, error) {
	account, ok := s.legacy.VerifyPassword(email, candidate)
	if !ok {
		return nil, domain.ErrInvalidCredentials
	}

	user, err := s.createOrFetch(ctx, learnworlds.CreateUserRequest{
		Email:     email,
		Password:  candidate,
		FirstName: account.FirstName,
		LastName:  account.LastName,
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("migrated legacy account", zap.String("user_id", user.ID))
	return s.issueSession(*user, domain.SourceMigrated, s.cfg.SessionTTL, true)
}

func (s *Service) Register(ctx context.Context, req domain.RegisterRequest) (*domain.LoginResult, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, domain.ErrInvalidEmail
	}
	if err := password.Validate(req.Password); err != nil {
		return nil, err
	}

	user, err := s.gateway.CreateUser(ctx, learnworlds.CreateUserRequest{
		Email:     email,
		Password:  req.Password,
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
	})
	if err != nil {
		if learnworlds.IsKind(err, learnworlds.KindConflict) {
			return nil, domain.ErrUserExists
		}
		return nil, s.translateProviderError(err)
	}

	return s.issueSession(gatewayUser(*user), domain.SourceLearnWorlds, s.cfg.SessionTTL, false)
}

// MigrateAccount is the explicit, user-invoked migration path. Same contract
// as Register, but the credential must exist in the legacy store and the
// session is tagged as migrated.
func (s *Service) MigrateAccount(ctx context.Context, req domain.RegisterRequest) (*domain.LoginResult, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, domain.ErrInvalidEmail
	}
	if err := password.Validate(req.Password); err != nil {
		return nil, err
	}
	if _, ok := s.legacy.VerifyPassword(email, req.Password); !ok {
		return nil, domain.ErrInvalidCredentials
	}

	user, err := s.createOrFetch(ctx, learnworlds.CreateUserRequest{
		Email:     email,
		Password:  req.Password,
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
	})
	if err != nil {
		return nil, err
	}

	return s.issueSession(*user, domain.SourceMigrated, s.cfg.SessionTTL, true)
}

// createOrFetch treats a create conflict as success: when two requests race to
// migrate the same email, the loser re-fetches the canonical account instead
// of failing a user-visible flow.
func (s *Service) createOrFetch(ctx context.Context, req learnworlds.CreateUserRequest) (*domain.User, error) {
	created, err := s.gateway.CreateUser(ctx, req)
	if err == nil {
		user := gatewayUser(*created)
		return &user, nil
	}
	if !learnworlds.IsKind(err, learnworlds.KindConflict) {
		return nil, s.translateProviderError(err)
	}

	existing, err := s.gateway.GetUser(ctx, req.Email)
	if err != nil {
		return nil, s.translateProviderError(err)
	}
	user := gatewayUser(*existing)
	return &user, nil
}

func (s *Service) SSORedirect(ctx context.Context, email string) (string, error) {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return "", domain.ErrInvalidEmail
	}
	ssoURL, err := s.gateway.SSOURL(ctx, normalized, "")
	if err != nil {
		return "", s.translateProviderError(err)
	}
	return ssoURL, nil
}

func (s *Service) LoginWithSSO(ctx context.Context, req domain.SSOLoginRequest) (*domain.LoginResult, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	if strings.TrimSpace(req.Token) == "" {
		return nil, domain.ErrInvalidCredentials
	}

	user, err := s.gateway.ValidateSSOToken(ctx, email, req.Token)
	if err != nil {
		if learnworlds.IsKind(err, learnworlds.KindInvalidCredentials) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, s.translateProviderError(err)
	}

	// SSO-derived sessions get the shorter TTL tier.
	return s.issueSession(gatewayUser(*user), domain.SourceSSO, s.cfg.SSOSessionTTL, false)
}

// RequestPasswordReset always reports success so callers cannot enumerate
// accounts. Upstream failures are logged and swallowed.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	normalized, err := normalizeEmail(email)
	if err != nil {
		return nil
	}
	if err := s.gateway.RequestPasswordReset(ctx, normalized); err != nil {
		s.log.Warn("password reset request failed", zap.Error(err))
	}
	return nil
}

// Logout is cookie destruction only; the token stays valid until natural
// expiry, which is the accepted stateless-session tradeoff. Idempotent.
func (s *Service) Logout(ctx context.Context, rawToken string) error {
	_ = ctx
	if strings.TrimSpace(rawToken) == "" {
		return nil
	}
	if t, err := s.codec.Verify(rawToken); err == nil {
		s.log.Info("session logged out", zap.String("user_id", t.UserID))
	}
	return nil
}

func (s *Service) issueSession(user domain.User, source domain.Source, ttl time.Duration, migrated bool) (*domain.LoginResult, error) {
	raw, expiresAt, err := s.codec.Issue(token.Claims{
		UserID:    user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Source:    string(source),
	}, ttl)
	if err != nil {
		return nil, err
	}

	return &domain.LoginResult{
		Migrated:  migrated,
		User:      user,
		RawToken:  raw,
		ExpiresAt: expiresAt,
		Source:    source,
	}, nil
}

func (s *Service) translateProviderError(err error) error {
	switch learnworlds.KindOf(err) {
	case learnworlds.KindNotConfigured:
		return domain.ErrNotConfigured
	case learnworlds.KindInvalidCredentials:
		return domain.ErrInvalidCredentials
	default:
		s.log.Warn("provider call failed", zap.Error(err))
		return domain.ErrProviderDown
	}
}

func gatewayUser(u learnworlds.User) domain.User {
	return domain.User{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}

func normalizeEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	return strings.ToLower(strings.TrimSpace(addr.Address)), nil
}
