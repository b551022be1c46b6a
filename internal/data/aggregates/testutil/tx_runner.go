package testutil

import (
	"context"
	"sync"

	"github.com/yungbote/orgdesk-backend/internal/data/aggregates"
	"github.com/yungbote/orgdesk-backend/internal/platform/dbctx"
)

// InjectedTxRunner runs aggregate bodies without a database and lets tests
// inject begin/commit failures. Body writes are not rolled back; pair it with
// a store that records writes.
type InjectedTxRunner struct {
	mu sync.Mutex

	FailBegin  error
	FailCommit error

	BeginCalls    int
	CommitCalls   int
	RollbackCalls int
}

var _ aggregates.TxRunner = (*InjectedTxRunner)(nil)

func (r *InjectedTxRunner) count(field *int) {
	r.mu.Lock()
	*field++
	r.mu.Unlock()
}

func (r *InjectedTxRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	r.count(&r.BeginCalls)
	r.mu.Lock()
	failBegin, failCommit := r.FailBegin, r.FailCommit
	r.mu.Unlock()

	if failBegin != nil {
		return failBegin
	}
	if fn != nil {
		if err := fn(dbctx.Background(ctx)); err != nil {
			r.count(&r.RollbackCalls)
			return err
		}
	}
	if failCommit != nil {
		r.count(&r.RollbackCalls)
		return failCommit
	}
	r.count(&r.CommitCalls)
	return nil
}

// Counts returns begin, commit and rollback totals.
func (r *InjectedTxRunner) Counts() (begin, commit, rollback int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.BeginCalls, r.CommitCalls, r.RollbackCalls
}
