package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/orgdesk-backend/internal/data/repos"
	"github.com/yungbote/orgdesk-backend/internal/domain/audit"
	"github.com/yungbote/orgdesk-backend/internal/observability"
	"github.com/yungbote/orgdesk-backend/internal/platform/dbctx"
	"github.com/yungbote/orgdesk-backend/internal/platform/logger"
)

const (
	FindingMissingAudit = "missing_audit"
	FindingFutureAudit  = "future_audit"
)

type IntegrityFinding struct {
	SessionID      uuid.UUID `json:"session_id"`
	Kind           string    `json:"kind"`
	SessionVersion int64     `json:"session_version"`
	AuditedVersion int64     `json:"audited_version"`
	AuditRows      int64     `json:"audit_rows"`
}

type IntegrityReport struct {
	Since    time.Time          `json:"since"`
	Checked  int                `json:"checked"`
	Findings []IntegrityFinding `json:"findings"`
}

type AuditIntegrityConfig struct {
	Lookback time.Duration
	// Tolerance is how many versions a session may run ahead of its audit
	// trail before it is flagged. Audit writes are best effort, so a small
	// gap is expected under load.
	Tolerance int64
	Limit     int
	Timeout   time.Duration
}

func (c AuditIntegrityConfig) withDefaults() AuditIntegrityConfig {
	if c.Lookback <= 0 {
		c.Lookback = 24 * time.Hour
	}
	if c.Tolerance < 0 {
		c.Tolerance = 0
	}
	if c.Limit <= 0 {
		c.Limit = 500
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	return c
}

// AuditIntegrityService cross-checks recent audit rows against session versions.
// It only reads.
type AuditIntegrityService struct {
	log      *logger.Logger
	audit    repos.AuditLogRepo
	sessions repos.SessionRepo
	metrics  *observability.Metrics
	cfg      AuditIntegrityConfig
	now      func() time.Time
}

func NewAuditIntegrityService(baseLog *logger.Logger, auditRepo repos.AuditLogRepo, sessions repos.SessionRepo, metrics *observability.Metrics, cfg AuditIntegrityConfig) *AuditIntegrityService {
	return &AuditIntegrityService{
		log:      baseLog.With("service", "AuditIntegrityService"),
		audit:    auditRepo,
		sessions: sessions,
		metrics:  metrics,
		cfg:      cfg.withDefaults(),
		now:      time.Now,
	}
}

func (s *AuditIntegrityService) Name() string { return "audit_integrity" }

func (s *AuditIntegrityService) Timeout() time.Duration { return s.cfg.Timeout }

func (s *AuditIntegrityService) Run(ctx context.Context) error {
	_, err := s.Check(ctx)
	return err
}

func (s *AuditIntegrityService) Check(ctx context.Context) (*IntegrityReport, error) {
	if s.audit == nil || s.sessions == nil {
		return nil, fmt.Errorf("audit integrity not configured")
	}
	dbc := dbctx.Context{Ctx: ctx}
	since := s.now().UTC().Add(-s.cfg.Lookback)
	report := &IntegrityReport{Since: since, Findings: []IntegrityFinding{}}

	versions, err := s.audit.VersionsSince(dbc, audit.EntitySession, since, s.cfg.Limit)
	if err != nil {
		return nil, fmt.Errorf("load audit versions: %w", err)
	}
	if len(versions) == 0 {
		return report, nil
	}

	ids := make([]uuid.UUID, 0, len(versions))
	for _, v := range versions {
		ids = append(ids, v.EntityID)
	}
	rows, err := s.sessions.ListByIDs(dbc, ids)
	if err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}
	current := make(map[uuid.UUID]int64, len(rows))
	for _, row := range rows {
		if row != nil {
			current[row.ID] = row.Version
		}
	}

	for _, v := range versions {
		sessionVersion, ok := current[v.EntityID]
		if !ok {
			// Deleted sessions keep their audit trail.
			continue
		}
		report.Checked++
		switch {
		case v.MaxVersion > sessionVersion:
			report.Findings = append(report.Findings, IntegrityFinding{
				SessionID:      v.EntityID,
				Kind:           FindingFutureAudit,
				SessionVersion: sessionVersion,
				AuditedVersion: v.MaxVersion,
				AuditRows:      v.RowCount,
			})
		case sessionVersion-v.MaxVersion > s.cfg.Tolerance:
			report.Findings = append(report.Findings, IntegrityFinding{
				SessionID:      v.EntityID,
				Kind:           FindingMissingAudit,
				SessionVersion: sessionVersion,
				AuditedVersion: v.MaxVersion,
				AuditRows:      v.RowCount,
			})
		}
	}

	missing, future := 0, 0
	for _, f := range report.Findings {
		switch f.Kind {
		case FindingMissingAudit:
			missing++
		case FindingFutureAudit:
			future++
		}
		s.log.Warn("audit integrity finding",
			"kind", f.Kind,
			"session_id", f.SessionID,
			"session_version", f.SessionVersion,
			"audited_version", f.AuditedVersion,
		)
	}
	s.metrics.AddIntegrityFindings(FindingMissingAudit, missing)
	s.metrics.AddIntegrityFindings(FindingFutureAudit, future)
	s.log.Info("audit integrity check finished", "checked", report.Checked, "findings", len(report.Findings))
	return report, nil
}
