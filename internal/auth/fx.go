package auth

import (
	"github.com/smallbiznis/academy/internal/auth/service"
	"github.com/smallbiznis/academy/internal/auth/token"
	"go.uber.org/fx"
)

var Module = fx.Module("auth.service",
	fx.Provide(token.NewCodec),
	fx.Provide(service.New),
)
