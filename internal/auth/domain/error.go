package domain

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrInvalidSession     = errors.New("invalid_session")
	ErrSessionExpired     = errors.New("session_expired")
	ErrUserExists         = errors.New("user_exists")
	ErrInvalidEmail       = errors.New("invalid_email")
	ErrProviderDown       = errors.New("provider_unavailable")
	ErrNotConfigured      = errors.New("provider_not_configured")
)
