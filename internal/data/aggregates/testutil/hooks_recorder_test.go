package testutil

import (
	"testing"
	"time"

	domainagg "github.com/yungbote/orgdesk-backend/internal/domain/aggregates"
)

func TestHooksRecorder_CapturesSignals(t *testing.T) {
	h := &HooksRecorder{}
	h.ObserveOperation("agg.op", "success", 10*time.Millisecond)
	h.ObserveOperation("agg.op", "conflict", time.Millisecond)
	h.IncConflict("agg.op")
	h.IncRetry("agg.op")
	h.IncRejection("agg.op", domainagg.CodeReadOnly)

	statuses := h.Statuses()
	if len(statuses) != 2 || statuses[0] != "success" || statuses[1] != "conflict" {
		t.Fatalf("unexpected statuses: %v", statuses)
	}
	if h.ConflictCount() != 1 {
		t.Fatalf("conflicts: want=1 got=%d", h.ConflictCount())
	}
	if codes := h.RejectionCodes(); len(codes) != 1 || codes[0] != domainagg.CodeReadOnly {
		t.Fatalf("unexpected rejections: %v", codes)
	}
	if len(h.Retries) != 1 || h.Retries[0] != "agg.op" {
		t.Fatalf("unexpected retries: %+v", h.Retries)
	}
}
