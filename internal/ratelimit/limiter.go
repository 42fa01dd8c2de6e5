package ratelimit

import (
	"context"
	"time"
)

// Config is one fixed-window budget: MaxRequests per Window.
type Config struct {
	Window      time.Duration
	MaxRequests int
}

// Result is returned on every check, allowed or not. ResetTime lets callers
// compute Retry-After on denial.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetTime time.Time
}

// Limiter bounds request rates per identifier. Implementations count in fixed
// windows: the allowance resets entirely at the window boundary.
type Limiter interface {
	Check(ctx context.Context, key string, cfg Config) (Result, error)
}
