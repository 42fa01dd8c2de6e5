package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	authdomain "github.com/smallbiznis/academy/internal/auth/domain"
	"github.com/smallbiznis/academy/internal/auth/session"
	"github.com/smallbiznis/academy/internal/config"
	obsmetrics "github.com/smallbiznis/academy/internal/observability/metrics"
	"github.com/smallbiznis/academy/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Server owns the HTTP surface: auth endpoints, the webhook receiver and the
// admin gate, behind the edge middleware chain.
type Server struct {
	engine   *gin.Engine
	cfg      config.Config
	log      *zap.Logger
	authsvc  authdomain.Service
	sessions *session.Manager
	limiter  ratelimit.Limiter
	budgets  map[ratelimit.Class]ratelimit.Config
	metrics  *obsmetrics.HTTPMetrics
}

type ServerParams struct {
	fx.In

	Gin      *gin.Engine
	Cfg      config.Config
	Log      *zap.Logger
	Authsvc  authdomain.Service
	Sessions *session.Manager
	Limiter  ratelimit.Limiter
	Budgets  map[ratelimit.Class]ratelimit.Config
	Metrics  *obsmetrics.HTTPMetrics
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:   p.Gin,
		cfg:      p.Cfg,
		log:      p.Log.Named("http.server"),
		authsvc:  p.Authsvc,
		sessions: p.Sessions,
		limiter:  p.Limiter,
		budgets:  p.Budgets,
		metrics:  p.Metrics,
	}
}

// NewEngine builds the base engine with the middleware every route shares.
func NewEngine(log *zap.Logger, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(SecurityHeaders())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(httpMetrics.Handler()))

	return r
}

// RegisterRoutes wires the API, webhook and admin namespaces. The rate-limit
// middleware guards the whole /api namespace; handlers never see a denied
// request.
func (s *Server) RegisterRoutes() {
	api := s.engine.Group("/api")
	api.Use(s.RateLimit())

	auth := api.Group("/auth")
	auth.POST("/login", s.Login)
	auth.POST("/register", s.Register)
	auth.POST("/migrate", s.Migrate)
	auth.POST("/sso", s.SSOStart)
	auth.GET("/sso", s.SSOCallback)
	auth.GET("/session", s.GetSession)
	auth.DELETE("/session", s.DeleteSession)
	auth.POST("/password-reset", s.PasswordReset)

	api.POST("/webhooks/learnworlds", s.Webhook)

	s.engine.GET("/admin/login", s.AdminLogin)
	admin := s.engine.Group("/admin")
	admin.Use(s.AdminRequired())
	admin.GET("/", s.AdminHome)
}

func registerRoutes(s *Server) {
	s.RegisterRoutes()
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			_ = ctx
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(registerRoutes),
	fx.Invoke(run),
)
