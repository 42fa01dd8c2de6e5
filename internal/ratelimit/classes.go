package ratelimit

import (
	"time"

	"github.com/smallbiznis/academy/internal/config"
)

// Class is a logical endpoint group sharing one budget.
type Class string

const (
	ClassAuth    Class = "auth"
	ClassAPI     Class = "api"
	ClassPublic  Class = "public"
	ClassWebhook Class = "webhook"
)

// DefaultBudgets returns the built-in per-class budgets. Auth endpoints get an
// abuse-resistant budget; webhook receivers carry provider-originated volume.
func DefaultBudgets() map[Class]Config {
	return map[Class]Config{
		ClassAuth:    {Window: 15 * time.Minute, MaxRequests: 5},
		ClassAPI:     {Window: time.Minute, MaxRequests: 60},
		ClassPublic:  {Window: time.Minute, MaxRequests: 100},
		ClassWebhook: {Window: time.Minute, MaxRequests: 1000},
	}
}

// Budgets merges file overrides over the defaults. Unknown classes in the
// override file are ignored.
func Budgets(overrides map[string]config.LimitBudget) map[Class]Config {
	budgets := DefaultBudgets()
	for name, budget := range overrides {
		class := Class(name)
		if _, ok := budgets[class]; !ok {
			continue
		}
		budgets[class] = Config{
			Window:      time.Duration(budget.WindowSeconds) * time.Second,
			MaxRequests: budget.MaxRequests,
		}
	}
	return budgets
}
