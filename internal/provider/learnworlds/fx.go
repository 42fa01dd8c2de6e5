package learnworlds

import "go.uber.org/fx"

var Module = fx.Module("provider.learnworlds",
	fx.Provide(NewHTTPGateway),
)
