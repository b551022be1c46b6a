package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/orgdesk-backend/internal/http/handlers"
	httpMW "github.com/yungbote/orgdesk-backend/internal/http/middleware"
	"github.com/yungbote/orgdesk-backend/internal/http/response"
	"github.com/yungbote/orgdesk-backend/internal/observability"
	"github.com/yungbote/orgdesk-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	Metrics     *observability.Metrics
	ServiceName string
	CORSOrigins []string

	AuthHandler    *httpH.AuthHandler
	AuthMiddleware *httpMW.AuthMiddleware

	AnswerSessionHandler *httpH.AnswerSessionHandler

	CronHandler        *httpH.CronHandler
	CronAuthMiddleware *httpMW.CronAuthMiddleware

	HealthHandler *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	log := cfg.Log
	if log == nil {
		log = logger.NewNop()
	}

	r := gin.New()
	r.HandleMethodNotAllowed = true
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.Recovery(log, cfg.Metrics))
	r.Use(httpMW.RequestLogger(log))
	r.Use(httpMW.Metrics(cfg.Metrics, "/healthcheck", "/readyz"))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	r.NoMethod(func(c *gin.Context) {
		response.RespondFailure(c, http.StatusMethodNotAllowed, response.CodeMethodNotAllowed, "method not allowed")
	})
	r.NoRoute(func(c *gin.Context) {
		response.RespondFailure(c, http.StatusNotFound, response.CodeNotFound, "route not found")
	})

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
		r.GET("/readyz", cfg.HealthHandler.Ready)
	}

	api := r.Group("/api")
	{
		// Auth (public)
		if cfg.AuthHandler != nil {
			api.POST("/register", cfg.AuthHandler.Register)
			api.POST("/login", cfg.AuthHandler.Login)
		}
	}

	protected := api.Group("/")
	{
		if cfg.AuthMiddleware != nil {
			protected.Use(cfg.AuthMiddleware.RequireAuth())
		}

		// Answer sessions
		if cfg.AnswerSessionHandler != nil {
			protected.POST("/sessions/:id/answers/diff", cfg.AnswerSessionHandler.SaveAnswerDiff)
		}
	}

	// Cron trigger: shared secret only, never a user token.
	if cfg.CronHandler != nil && cfg.CronAuthMiddleware != nil {
		internal := api.Group("/internal")
		internal.Use(cfg.CronAuthMiddleware.RequireCronSecret())
		internal.POST("/cron/run", cfg.CronHandler.Run)
	}

	return r
}
