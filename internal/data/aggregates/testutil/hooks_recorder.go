package testutil

import (
	"sync"
	"time"

	"github.com/yungbote/orgdesk-backend/internal/data/aggregates"
	domainagg "github.com/yungbote/orgdesk-backend/internal/domain/aggregates"
)

// HooksRecorder captures aggregate hook signals in tests.
type HooksRecorder struct {
	mu sync.Mutex

	Operations []OperationEvent
	Conflicts  []string
	Retries    []string
	Rejections []RejectionEvent
}

type RejectionEvent struct {
	Name string
	Code domainagg.ErrorCode
}

type OperationEvent struct {
	Name     string
	Status   string
	Duration time.Duration
}

var _ aggregates.Hooks = (*HooksRecorder)(nil)

func (h *HooksRecorder) ObserveOperation(name, status string, dur time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Operations = append(h.Operations, OperationEvent{Name: name, Status: status, Duration: dur})
}

func (h *HooksRecorder) IncConflict(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Conflicts = append(h.Conflicts, name)
}

func (h *HooksRecorder) IncRetry(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Retries = append(h.Retries, name)
}

func (h *HooksRecorder) IncRejection(name string, code domainagg.ErrorCode) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Rejections = append(h.Rejections, RejectionEvent{Name: name, Code: code})
}

// RejectionCodes returns the code of every recorded rejection, in order.
func (h *HooksRecorder) RejectionCodes() []domainagg.ErrorCode {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]domainagg.ErrorCode, 0, len(h.Rejections))
	for _, r := range h.Rejections {
		out = append(out, r.Code)
	}
	return out
}

// Statuses returns the status of every observed operation, in order.
func (h *HooksRecorder) Statuses() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.Operations))
	for _, op := range h.Operations {
		out = append(out, op.Status)
	}
	return out
}

func (h *HooksRecorder) ConflictCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.Conflicts)
}
