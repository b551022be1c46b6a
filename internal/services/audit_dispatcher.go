package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/orgdesk-backend/internal/data/repos"
	"github.com/yungbote/orgdesk-backend/internal/domain/audit"
	"github.com/yungbote/orgdesk-backend/internal/observability"
	"github.com/yungbote/orgdesk-backend/internal/platform/dbctx"
	"github.com/yungbote/orgdesk-backend/internal/platform/logger"
)

// AuditEvent is one change to record. It is copied into the queue, so callers
// may reuse their own values after Enqueue returns.
type AuditEvent struct {
	ActorUserID    uuid.UUID
	OrganizationID *uuid.UUID
	EntityType     string
	EntityID       uuid.UUID
	Action         string
	Version        int64
	Payload        map[string]any
	OccurredAt     time.Time
}

// AuditSink accepts audit events without blocking. It reports false when the
// event was dropped.
type AuditSink interface {
	Enqueue(ev AuditEvent) bool
}

// AuditPublisher fans a persisted audit row out to other consumers.
type AuditPublisher interface {
	PublishAudit(ctx context.Context, row *audit.Log) error
}

type AuditDispatcherConfig struct {
	QueueSize    int
	Workers      int
	WriteTimeout time.Duration
}

func (c AuditDispatcherConfig) withDefaults() AuditDispatcherConfig {
	if c.QueueSize <= 0 {
		c.QueueSize = 1024
	}
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Second
	}
	return c
}

// AuditDispatcher hands audit events to background writers over a bounded queue.
type AuditDispatcher struct {
	log       *logger.Logger
	repo      repos.AuditLogRepo
	publisher AuditPublisher
	metrics   *observability.Metrics
	cfg       AuditDispatcherConfig

	mu     sync.RWMutex
	closed bool
	queue  chan AuditEvent
	wg     sync.WaitGroup
}

// NewAuditDispatcher starts cfg.Workers writers. publisher may be nil.
// Close must be called to drain the queue and stop the writers.
func NewAuditDispatcher(baseLog *logger.Logger, repo repos.AuditLogRepo, publisher AuditPublisher, metrics *observability.Metrics, cfg AuditDispatcherConfig) *AuditDispatcher {
	cfg = cfg.withDefaults()
	d := &AuditDispatcher{
		log:       baseLog.With("service", "AuditDispatcher"),
		repo:      repo,
		publisher: publisher,
		metrics:   metrics,
		cfg:       cfg,
		queue:     make(chan AuditEvent, cfg.QueueSize),
	}
	d.log.Info("Starting audit writers", "workers", cfg.Workers, "queue_size", cfg.QueueSize)
	for i := 0; i < cfg.Workers; i++ {
		workerID := i + 1
		d.wg.Add(1)
		go d.runLoop(workerID)
	}
	return d
}

func (d *AuditDispatcher) Enqueue(ev AuditEvent) bool {
	if d == nil {
		return false
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.metrics.IncAuditEvent("dropped")
		return false
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	select {
	case d.queue <- ev:
		d.metrics.IncAuditEvent("queued")
		d.metrics.SetAuditQueueDepth(len(d.queue))
		return true
	default:
		d.metrics.IncAuditEvent("dropped")
		d.log.Warn("audit queue full; dropping event",
			"entity_type", ev.EntityType,
			"entity_id", ev.EntityID,
			"action", ev.Action,
			"version", ev.Version,
		)
		return false
	}
}

// Close stops accepting events and waits until queued events are written.
func (d *AuditDispatcher) Close() {
	if d == nil {
		return
	}
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()
	d.wg.Wait()
	d.metrics.SetAuditQueueDepth(0)
}

func (d *AuditDispatcher) runLoop(workerID int) {
	defer d.wg.Done()
	for ev := range d.queue {
		d.metrics.SetAuditQueueDepth(len(d.queue))
		d.handle(workerID, ev)
	}
}

func (d *AuditDispatcher) handle(workerID int, ev AuditEvent) {
	defer func() {
		if r := recover(); r != nil {
			d.metrics.IncAuditEvent("failed")
			d.log.Error("audit writer panic",
				"worker_id", workerID,
				"entity_id", ev.EntityID,
				"panic", fmt.Sprint(r),
			)
		}
	}()

	row, err := ev.toLog()
	if err != nil {
		d.metrics.IncAuditEvent("failed")
		d.log.Warn("audit event not encodable", "entity_id", ev.EntityID, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.WriteTimeout)
	defer cancel()

	if d.repo == nil {
		d.metrics.IncAuditEvent("failed")
		return
	}
	if _, err := d.repo.Create(dbctx.Context{Ctx: ctx}, []*audit.Log{row}); err != nil {
		d.metrics.IncAuditEvent("failed")
		d.log.Warn("audit write failed",
			"worker_id", workerID,
			"entity_type", ev.EntityType,
			"entity_id", ev.EntityID,
			"version", ev.Version,
			"error", err,
		)
		return
	}
	d.metrics.IncAuditEvent("written")

	if d.publisher != nil {
		if err := d.publisher.PublishAudit(ctx, row); err != nil {
			d.metrics.IncAuditEvent("publish_failed")
			d.log.Warn("audit publish failed", "entity_id", ev.EntityID, "error", err)
		}
	}
}

func (ev AuditEvent) toLog() (*audit.Log, error) {
	payload := datatypes.JSON(`{}`)
	if len(ev.Payload) > 0 {
		raw, err := json.Marshal(ev.Payload)
		if err != nil {
			return nil, err
		}
		payload = datatypes.JSON(raw)
	}
	return &audit.Log{
		ID:             uuid.New(),
		ActorUserID:    ev.ActorUserID,
		OrganizationID: ev.OrganizationID,
		EntityType:     ev.EntityType,
		EntityID:       ev.EntityID,
		Action:         ev.Action,
		Version:        ev.Version,
		Payload:        payload,
		CreatedAt:      ev.OccurredAt.UTC(),
	}, nil
}
