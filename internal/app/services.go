package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/orgdesk-backend/internal/data/aggregates"
	"github.com/yungbote/orgdesk-backend/internal/data/repos"
	"github.com/yungbote/orgdesk-backend/internal/jobs/cron"
	"github.com/yungbote/orgdesk-backend/internal/observability"
	"github.com/yungbote/orgdesk-backend/internal/platform/logger"
	"github.com/yungbote/orgdesk-backend/internal/services"
)

type Services struct {
	Auth       services.AuthService
	Access     services.SessionAccessService
	Audit      *services.AuditDispatcher
	AnswerDiff services.AnswerDiffService
	Integrity  *services.AuditIntegrityService
	Cron       *cron.Orchestrator
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, reposet repos.Set, clients Clients, metrics *observability.Metrics) (Services, error) {
	log.Info("Wiring services...")

	auth := services.NewAuthService(log, reposet.Users, cfg.JWTSecretKey, cfg.AccessTokenTTL)

	var cache services.MembershipCache
	if clients.MembershipCache != nil {
		cache = clients.MembershipCache
	}
	access := services.NewSessionAccessService(log, reposet.Members, cache, cfg.MembershipCacheTTL, metrics)

	var publisher services.AuditPublisher
	if clients.AuditBus != nil {
		publisher = clients.AuditBus
	}
	dispatcher := services.NewAuditDispatcher(log, reposet.Audit, publisher, metrics, cfg.AuditDispatcher())

	aggregate := aggregates.NewAnswerSessionAggregate(aggregates.AnswerSessionAggregateDeps{
		Base: aggregates.BaseDeps{
			DB:    db,
			Log:   log,
			Hooks: aggregates.NewObservabilityHooks(metrics),
		},
		Sessions: reposet.Sessions,
		Access:   access,
	})
	answerDiff := services.NewAnswerDiffService(log, aggregate, dispatcher, metrics)

	integrity := services.NewAuditIntegrityService(log, reposet.Audit, reposet.Sessions, metrics, cfg.AuditIntegrity())

	orchestrator := cron.NewOrchestrator(log, metrics, cfg.Cron(), integrity)
	httpJobs, err := cron.ParseHTTPJobs(cfg.CronHTTPJobs, cfg.CronSecret, cfg.CronJobTimeout)
	if err != nil {
		dispatcher.Close()
		return Services{}, fmt.Errorf("cron jobs: %w", err)
	}
	for _, j := range httpJobs {
		orchestrator.Register(j)
	}

	return Services{
		Auth:       auth,
		Access:     access,
		Audit:      dispatcher,
		AnswerDiff: answerDiff,
		Integrity:  integrity,
		Cron:       orchestrator,
	}, nil
}
