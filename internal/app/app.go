package app

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/yungbote/orgdesk-backend/internal/data/repos"
	httpserver "github.com/yungbote/orgdesk-backend/internal/http"
	"github.com/yungbote/orgdesk-backend/internal/observability"
	"github.com/yungbote/orgdesk-backend/internal/platform/logger"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Cfg      Config
	Metrics  *observability.Metrics
	Clients  Clients
	Repos    repos.Set
	Services Services
	Server   *httpserver.Server

	otelShutdown func(context.Context) error
}

func New(ctx context.Context, log *logger.Logger, cfg Config) (*App, error) {
	otelShutdown := observability.InitOTel(ctx, log, cfg.Otel())
	metrics := observability.Init(cfg.MetricsEnabled)

	clients, err := wireClients(log, cfg)
	if err != nil {
		_ = otelShutdown(ctx)
		return nil, err
	}
	if err := clients.Postgres.AutoMigrateAll(); err != nil {
		clients.Close()
		_ = otelShutdown(ctx)
		return nil, fmt.Errorf("postgres automigrate: %w", err)
	}
	theDB := clients.Postgres.DB()

	reposet := wireRepos(theDB, log)

	serviceset, err := wireServices(theDB, log, cfg, reposet, clients, metrics)
	if err != nil {
		clients.Close()
		_ = otelShutdown(ctx)
		return nil, err
	}

	handlerset := wireHandlers(log, theDB, serviceset)
	middleware := wireMiddleware(log, cfg, serviceset)
	server := wireServer(log, cfg, metrics, handlerset, middleware)

	return &App{
		Log:          log,
		DB:           theDB,
		Cfg:          cfg,
		Metrics:      metrics,
		Clients:      clients,
		Repos:        reposet,
		Services:     serviceset,
		Server:       server,
		otelShutdown: otelShutdown,
	}, nil
}

// Run serves HTTP and ticks the cron orchestrator until ctx is cancelled or
// either fails.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	g, gctx := errgroup.WithContext(ctx)

	a.Metrics.StartServer(gctx, a.Log, a.Cfg.MetricsAddr)
	a.Metrics.StartPostgresCollector(gctx, a.Log, a.DB, 0)
	if a.Clients.Redis != nil {
		a.Metrics.StartRedisCollector(gctx, a.Log, a.Clients.Redis, 0)
	}

	g.Go(func() error {
		return a.Server.Run(gctx, a.Cfg.Addr(), a.Cfg.ShutdownTimeout)
	})
	if a.Cfg.CronEnabled && a.Services.Cron != nil {
		g.Go(func() error {
			return a.Services.Cron.Run(gctx)
		})
	}
	return g.Wait()
}

// Close drains queued audit events before releasing connections.
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.Services.Audit != nil {
		a.Services.Audit.Close()
	}
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.otelShutdown(ctx); err != nil {
			a.Log.Warn("otel shutdown failed", "error", err)
		}
		cancel()
	}
	a.Clients.Close()
	a.Log.Sync()
}
