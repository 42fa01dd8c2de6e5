package learnworlds

import "context"

// User is the provider's account record.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type CreateUserRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// CredentialCheck is the provider's verdict on an email+password pair.
// SSORequired means the account exists but must authenticate through the
// provider's SSO flow; no password check happened.
type CredentialCheck struct {
	User        User
	SSORequired bool
	SSOURL      string
}

// Gateway is the opaque identity-provider collaborator. Every call is bounded
// by the configured timeout; an unconfigured provider fails every call with
// KindNotConfigured instead of crashing.
type Gateway interface {
	GetUser(ctx context.Context, email string) (*User, error)
	CreateUser(ctx context.Context, req CreateUserRequest) (*User, error)
	ValidateCredentials(ctx context.Context, email, password string) (*CredentialCheck, error)
	SSOURL(ctx context.Context, email, redirectURI string) (string, error)
	ValidateSSOToken(ctx context.Context, email, ssoToken string) (*User, error)
	RequestPasswordReset(ctx context.Context, email string) error
}
