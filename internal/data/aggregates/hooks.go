package aggregates

import (
	"strings"
	"time"

	domainagg "github.com/yungbote/orgdesk-backend/internal/domain/aggregates"
	"github.com/yungbote/orgdesk-backend/internal/observability"
)

// Hooks receives the outcome of every aggregate write. A rejection is a
// caller-facing refusal (not found, read-only, forbidden, validation) that
// left storage untouched.
type Hooks interface {
	ObserveOperation(op, status string, dur time.Duration)
	IncConflict(op string)
	IncRetry(op string)
	IncRejection(op string, code domainagg.ErrorCode)
}

type noopHooks struct{}

func (noopHooks) ObserveOperation(string, string, time.Duration) {}
func (noopHooks) IncConflict(string)                             {}
func (noopHooks) IncRetry(string)                                {}
func (noopHooks) IncRejection(string, domainagg.ErrorCode)       {}

// metricsHooks forwards hook signals to the process metrics registry.
type metricsHooks struct {
	metrics *observability.Metrics
}

func NewObservabilityHooks(metrics *observability.Metrics) Hooks {
	if metrics == nil {
		return noopHooks{}
	}
	return metricsHooks{metrics: metrics}
}

func (h metricsHooks) ObserveOperation(op, status string, dur time.Duration) {
	h.metrics.ObserveAggregateOperation(hookOp(op), hookOp(status), dur)
}

func (h metricsHooks) IncConflict(op string) { h.metrics.IncAggregateConflict(hookOp(op)) }

func (h metricsHooks) IncRetry(op string) { h.metrics.IncAggregateRetry(hookOp(op)) }

func (h metricsHooks) IncRejection(op string, code domainagg.ErrorCode) {
	h.metrics.IncAggregateRejection(hookOp(op), string(code))
}

// isRejection reports the codes counted by IncRejection.
func isRejection(code domainagg.ErrorCode) bool {
	switch code {
	case domainagg.CodeNotFound, domainagg.CodeReadOnly, domainagg.CodeForbidden, domainagg.CodeValidation:
		return true
	}
	return false
}

func hookOp(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "unknown"
	}
	return s
}
