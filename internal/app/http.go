package app

import (
	"gorm.io/gorm"

	httpserver "github.com/yungbote/orgdesk-backend/internal/http"
	httpH "github.com/yungbote/orgdesk-backend/internal/http/handlers"
	httpMW "github.com/yungbote/orgdesk-backend/internal/http/middleware"
	"github.com/yungbote/orgdesk-backend/internal/observability"
	"github.com/yungbote/orgdesk-backend/internal/platform/logger"
)

type Middleware struct {
	Auth     *httpMW.AuthMiddleware
	CronAuth *httpMW.CronAuthMiddleware
}

type Handlers struct {
	Health        *httpH.HealthHandler
	Auth          *httpH.AuthHandler
	AnswerSession *httpH.AnswerSessionHandler
	Cron          *httpH.CronHandler
}

func wireHandlers(log *logger.Logger, db *gorm.DB, services Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:        httpH.NewHealthHandler(db),
		Auth:          httpH.NewAuthHandler(services.Auth),
		AnswerSession: httpH.NewAnswerSessionHandler(log, services.AnswerDiff),
		Cron:          httpH.NewCronHandler(log, services.Cron),
	}
}

func wireMiddleware(log *logger.Logger, cfg Config, services Services) Middleware {
	log.Info("Wiring middleware...")
	if cfg.CronSecret == "" {
		log.Warn("CRON_SECRET is empty; the cron trigger route rejects every request")
	}
	return Middleware{
		Auth:     httpMW.NewAuthMiddleware(log, services.Auth),
		CronAuth: httpMW.NewCronAuthMiddleware(log, cfg.CronSecret),
	}
}

func wireServer(log *logger.Logger, cfg Config, metrics *observability.Metrics, handlers Handlers, middleware Middleware) *httpserver.Server {
	serviceName := ""
	if cfg.OtelEnabled {
		serviceName = cfg.OtelServiceName
	}
	return httpserver.NewServer(httpserver.RouterConfig{
		Log:                  log,
		Metrics:              metrics,
		ServiceName:          serviceName,
		CORSOrigins:          cfg.CORSOrigins,
		AuthHandler:          handlers.Auth,
		AuthMiddleware:       middleware.Auth,
		AnswerSessionHandler: handlers.AnswerSession,
		CronHandler:          handlers.Cron,
		CronAuthMiddleware:   middleware.CronAuth,
		HealthHandler:        handlers.Health,
	})
}
