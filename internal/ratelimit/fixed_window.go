package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/smallbiznis/academy/internal/clock"
)

const defaultSweepInterval = time.Minute

type entry struct {
	count     int
	resetTime time.Time
}

// FixedWindow is the process-local limiter. Entries are never decremented; an
// elapsed window is replaced wholesale. State is per instance, so a
// horizontally scaled deployment under-enforces proportionally — the redis
// limiter covers that case.
type FixedWindow struct {
	mu      sync.Mutex
	clock   clock.Clock
	entries map[string]*entry

	stopOnce sync.Once
	stop     chan struct{}
}

func NewFixedWindow(clk clock.Clock) *FixedWindow {
	l := &FixedWindow{
		clock:   clk,
		entries: make(map[string]*entry),
		stop:    make(chan struct{}),
	}
	go l.sweepLoop(defaultSweepInterval)
	return l
}

func (l *FixedWindow) Check(ctx context.Context, key string, cfg Config) (Result, error) {
	_ = ctx
	if key == "" || cfg.MaxRequests <= 0 || cfg.Window <= 0 {
		return Result{}, errors.New("rate limit key and config must be set")
	}

	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok || !now.Before(e.resetTime) {
		e = &entry{count: 1, resetTime: now.Add(cfg.Window)}
		l.entries[key] = e
		return Result{
			Allowed:   true,
			Limit:     cfg.MaxRequests,
			Remaining: cfg.MaxRequests - 1,
			ResetTime: e.resetTime,
		}, nil
	}

	if e.count < cfg.MaxRequests {
		e.count++
		return Result{
			Allowed:   true,
			Limit:     cfg.MaxRequests,
			Remaining: cfg.MaxRequests - e.count,
			ResetTime: e.resetTime,
		}, nil
	}

	return Result{
		Allowed:   false,
		Limit:     cfg.MaxRequests,
		Remaining: 0,
		ResetTime: e.resetTime,
	}, nil
}

// Stop ends the background sweep. Safe to call more than once.
func (l *FixedWindow) Stop() {
	l.stopOnce.Do(func() {
		close(l.stop)
	})
}

func (l *FixedWindow) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.removeExpired()
		case <-l.stop:
			return
		}
	}
}

// removeExpired drops entries whose window has fully elapsed, bounding memory
// to the number of distinct recent identifiers.
func (l *FixedWindow) removeExpired() {
	now := l.clock.Now()
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, e := range l.entries {
		if !now.Before(e.resetTime) {
			delete(l.entries, key)
		}
	}
}

func (l *FixedWindow) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
