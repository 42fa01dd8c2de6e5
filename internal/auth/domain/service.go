package domain

import "context"

// Service is the auth orchestrator: it ties the identity provider, the legacy
// account store and the token codec into one contract for the HTTP layer.
type Service interface {
	Login(ctx context.Context, req LoginRequest) (*LoginResult, error)
	Register(ctx context.Context, req RegisterRequest) (*LoginResult, error)
	MigrateAccount(ctx context.Context, req RegisterRequest) (*LoginResult, error)
	SSORedirect(ctx context.Context, email string) (string, error)
	LoginWithSSO(ctx context.Context, req SSOLoginRequest) (*LoginResult, error)
	RequestPasswordReset(ctx context.Context, email string) error
	Logout(ctx context.Context, rawToken string) error
}
