package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/academy/internal/auth"
	"github.com/smallbiznis/academy/internal/auth/legacy"
	"github.com/smallbiznis/academy/internal/auth/session"
	"github.com/smallbiznis/academy/internal/clock"
	"github.com/smallbiznis/academy/internal/config"
	"github.com/smallbiznis/academy/internal/logger"
	obsmetrics "github.com/smallbiznis/academy/internal/observability/metrics"
	"github.com/smallbiznis/academy/internal/provider/learnworlds"
	"github.com/smallbiznis/academy/internal/ratelimit"
	"github.com/smallbiznis/academy/internal/server"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		clock.Module,
		obsmetrics.Module,
		fx.Provide(RegisterSnowflake),

		learnworlds.Module,
		legacy.Module,
		ratelimit.Module,
		auth.Module,
		session.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
