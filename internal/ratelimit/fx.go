package ratelimit

import (
	"context"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/academy/internal/clock"
	"github.com/smallbiznis/academy/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewLimiter picks the backend: redis when an address is configured, otherwise
// the in-memory fixed window with its sweep tied to the fx lifecycle.
func NewLimiter(lc fx.Lifecycle, cfg config.Config, clk clock.Clock, log *zap.Logger) Limiter {
	addr := strings.TrimSpace(cfg.RateLimit.RedisAddr)
	if addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: cfg.RateLimit.RedisPassword,
			DB:       cfg.RateLimit.RedisDB,
		})
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				_ = ctx
				return client.Close()
			},
		})
		log.Named("rate.limit").Info("using redis fixed-window limiter", zap.String("addr", addr))
		return NewRedisWindow(client)
	}

	local := NewFixedWindow(clk)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			_ = ctx
			local.Stop()
			return nil
		},
	})
	return local
}

// NewBudgets loads the per-class budgets, applying file overrides when a
// limits file is present.
func NewBudgets(cfg config.Config, log *zap.Logger) (map[Class]Config, error) {
	overrides, err := config.LoadLimitBudgets(cfg.RateLimit.LimitsFile)
	if err != nil {
		return nil, err
	}
	if len(overrides) > 0 {
		log.Named("rate.limit").Info("applying limit budget overrides", zap.Int("classes", len(overrides)))
	}
	return Budgets(overrides), nil
}

var Module = fx.Module("rate.limit",
	fx.Provide(NewLimiter),
	fx.Provide(NewBudgets),
)
