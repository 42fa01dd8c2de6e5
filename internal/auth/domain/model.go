package domain

import "time"

// Source records which entry path established a session.
type Source string

const (
	SourceLearnWorlds Source = "learnworlds"
	SourceMigrated    Source = "migrated"
	SourceSSO         Source = "sso"
)

// User is the identity-provider view of an account. The provider owns the id.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// Session is one authenticated browser context. It is never persisted; the
// signed token carries everything needed to rebuild it.
type Session struct {
	User      User      `json:"user"`
	Source    Source    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

type LoginRequest struct {
	Email    string
	Password string
}

type RegisterRequest struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

type SSOLoginRequest struct {
	Email string
	Token string
}

// LoginResult is the orchestrator's answer for every session-creating path.
// RequiresSSO short-circuits the flow without a token.
type LoginResult struct {
	RequiresSSO bool
	SSOURL      string
	Migrated    bool
	User        User
	RawToken    string
	ExpiresAt   time.Time
	Source      Source
}
