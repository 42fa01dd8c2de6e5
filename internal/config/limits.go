package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// LimitBudget is one endpoint-class rate-limit budget.
type LimitBudget struct {
	WindowSeconds int `mapstructure:"windowSeconds"`
	MaxRequests   int `mapstructure:"maxRequests"`
}

// LoadLimitBudgets reads optional per-class budget overrides from a limits file.
// A missing file is not an error; callers fall back to built-in defaults for
// any class the file does not name.
func LoadLimitBudgets(path string) (map[string]LimitBudget, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("limits")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/academy")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil, nil
		}
		if path == "" {
			return nil, nil
		}
		return nil, err
	}

	budgets := make(map[string]LimitBudget)
	if err := v.UnmarshalKey("limits", &budgets); err != nil {
		return nil, err
	}
	for class, budget := range budgets {
		if budget.WindowSeconds <= 0 || budget.MaxRequests <= 0 {
			return nil, fmt.Errorf("invalid limit budget for class %q", class)
		}
	}
	return budgets, nil
}
