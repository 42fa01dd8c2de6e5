package legacy

import (
	"github.com/smallbiznis/academy/internal/config"
	"go.uber.org/fx"
)

func NewStore(cfg config.Config) (*Store, error) {
	return Load(cfg.LegacyAccountsFile)
}

var Module = fx.Module("auth.legacy",
	fx.Provide(NewStore),
)
