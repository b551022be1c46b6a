package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/goleak"

	"github.com/yungbote/orgdesk-backend/internal/data/repos"
	"github.com/yungbote/orgdesk-backend/internal/domain/audit"
	"github.com/yungbote/orgdesk-backend/internal/observability"
	"github.com/yungbote/orgdesk-backend/internal/platform/dbctx"
	"github.com/yungbote/orgdesk-backend/internal/platform/logger"
)

type recordingAuditRepo struct {
	mu      sync.Mutex
	rows    []*audit.Log
	err     error
	panicOn string
	block   chan struct{}
	started chan struct{}
}

func (r *recordingAuditRepo) Create(_ dbctx.Context, rows []*audit.Log) ([]*audit.Log, error) {
	if r.started != nil {
		select {
		case r.started <- struct{}{}:
		default:
		}
	}
	if r.block != nil {
		<-r.block
	}
	for _, row := range rows {
		if r.panicOn != "" && row.Action == r.panicOn {
			panic("boom")
		}
	}
	if r.err != nil {
		return nil, r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, rows...)
	return rows, nil
}

func (r *recordingAuditRepo) ListByEntity(_ dbctx.Context, entityType string, entityID uuid.UUID) ([]*audit.Log, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*audit.Log
	for _, row := range r.rows {
		if row.EntityType == entityType && row.EntityID == entityID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *recordingAuditRepo) VersionsSince(dbctx.Context, string, time.Time, int) ([]repos.AuditEntityVersion, error) {
	return nil, nil
}

func (r *recordingAuditRepo) Rows() []*audit.Log {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*audit.Log(nil), r.rows...)
}

type recordingPublisher struct {
	mu   sync.Mutex
	rows []*audit.Log
	err  error
}

func (p *recordingPublisher) PublishAudit(_ context.Context, row *audit.Log) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rows = append(p.rows, row)
	return p.err
}

func sessionEvent(version int64) AuditEvent {
	return AuditEvent{
		ActorUserID: uuid.New(),
		EntityType:  audit.EntitySession,
		EntityID:    uuid.New(),
		Action:      audit.ActionAnswerSet,
		Version:     version,
		Payload:     map[string]any{"question_id": "q1"},
	}
}

func TestAuditDispatcherWritesAndPublishes(t *testing.T) {
	defer goleak.VerifyNone(t)

	repo := &recordingAuditRepo{}
	pub := &recordingPublisher{}
	m := observability.New()
	d := NewAuditDispatcher(logger.NewNop(), repo, pub, m, AuditDispatcherConfig{QueueSize: 16, Workers: 3})

	for i := 1; i <= 5; i++ {
		if !d.Enqueue(sessionEvent(int64(i))) {
			t.Fatalf("Enqueue(%d): want accepted", i)
		}
	}
	d.Close()

	rows := repo.Rows()
	if len(rows) != 5 {
		t.Fatalf("rows written: want=5 got=%d", len(rows))
	}
	for _, row := range rows {
		if row.ID == uuid.Nil || row.CreatedAt.IsZero() {
			t.Fatalf("row defaults missing: %+v", row)
		}
		var payload map[string]any
		if err := json.Unmarshal(row.Payload, &payload); err != nil {
			t.Fatalf("payload: %v", err)
		}
		if payload["question_id"] != "q1" {
			t.Fatalf("payload question_id: want=q1 got=%v", payload["question_id"])
		}
	}
	if len(pub.rows) != 5 {
		t.Fatalf("published: want=5 got=%d", len(pub.rows))
	}
	if got := m.AuditEvents("written"); got != 5 {
		t.Fatalf("written metric: want=5 got=%v", got)
	}
}

func TestAuditDispatcherDropsWhenFull(t *testing.T) {
	defer goleak.VerifyNone(t)

	repo := &recordingAuditRepo{block: make(chan struct{}), started: make(chan struct{}, 1)}
	m := observability.New()
	d := NewAuditDispatcher(logger.NewNop(), repo, nil, m, AuditDispatcherConfig{QueueSize: 1, Workers: 1})

	if !d.Enqueue(sessionEvent(1)) {
		t.Fatalf("first event: want accepted")
	}
	select {
	case <-repo.started:
	case <-time.After(2 * time.Second):
		t.Fatalf("worker never picked up the first event")
	}
	// The worker is blocked on the first write; one slot left in the queue.
	if !d.Enqueue(sessionEvent(2)) {
		t.Fatalf("second event: want queued")
	}

	done := make(chan bool, 1)
	go func() { done <- d.Enqueue(sessionEvent(3)) }()
	select {
	case accepted := <-done:
		if accepted {
			t.Fatalf("third event: want dropped")
		}
	case <-time.After(time.Second):
		t.Fatalf("Enqueue blocked on a full queue")
	}

	close(repo.block)
	d.Close()

	if got := len(repo.Rows()); got != 2 {
		t.Fatalf("rows written: want=2 got=%d", got)
	}
	if got := m.AuditEvents("dropped"); got != 1 {
		t.Fatalf("dropped metric: want=1 got=%v", got)
	}
}

func TestAuditDispatcherSwallowsFailures(t *testing.T) {
	defer goleak.VerifyNone(t)

	repo := &recordingAuditRepo{panicOn: audit.ActionAnswerCleared}
	pub := &recordingPublisher{err: errors.New("redis down")}
	m := observability.New()
	d := NewAuditDispatcher(logger.NewNop(), repo, pub, m, AuditDispatcherConfig{Workers: 1})

	bad := sessionEvent(1)
	bad.Action = audit.ActionAnswerCleared
	d.Enqueue(bad)
	d.Enqueue(sessionEvent(2))
	d.Close()

	if got := len(repo.Rows()); got != 1 {
		t.Fatalf("rows written after panic: want=1 got=%d", got)
	}
	if got := m.AuditEvents("failed"); got != 1 {
		t.Fatalf("failed metric: want=1 got=%v", got)
	}
	if got := m.AuditEvents("publish_failed"); got != 1 {
		t.Fatalf("publish_failed metric: want=1 got=%v", got)
	}
}

func TestAuditDispatcherRejectsAfterClose(t *testing.T) {
	defer goleak.VerifyNone(t)

	d := NewAuditDispatcher(logger.NewNop(), &recordingAuditRepo{}, nil, nil, AuditDispatcherConfig{})
	d.Close()
	d.Close()
	if d.Enqueue(sessionEvent(1)) {
		t.Fatalf("Enqueue after Close: want dropped")
	}
}
