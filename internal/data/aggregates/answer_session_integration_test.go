package aggregates_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/orgdesk-backend/internal/data/aggregates"
	"github.com/yungbote/orgdesk-backend/internal/data/aggregates/testutil"
	sessionrepo "github.com/yungbote/orgdesk-backend/internal/data/repos/questionnaire"
	repotest "github.com/yungbote/orgdesk-backend/internal/data/repos/testutil"
	domainagg "github.com/yungbote/orgdesk-backend/internal/domain/aggregates"
	"github.com/yungbote/orgdesk-backend/internal/domain/questionnaire"
	"github.com/yungbote/orgdesk-backend/internal/platform/dbctx"
)

func TestAnswerSessionAggregateAgainstDatabase(t *testing.T) {
	db := repotest.DB(t)
	log := repotest.Logger(t)
	ctx := context.Background()

	owner := uuid.New()
	seeded := repotest.SeedSession(t, ctx, db, repotest.SessionSeed{
		UserID:    owner,
		Answers:   `{"q1":"yes"}`,
		Version:   3,
		UpdatedAt: t0,
	})

	sessions := sessionrepo.NewSessionRepo(db, log)
	hooks := &testutil.HooksRecorder{}
	agg := aggregates.NewAnswerSessionAggregate(aggregates.AnswerSessionAggregateDeps{
		Base: aggregates.BaseDeps{
			DB:     db,
			Log:    log,
			Runner: aggregates.NewGormTxRunner(db),
			Hooks:  hooks,
		},
		Sessions: sessions,
		Access:   testutil.NewStaticAuthorizer(),
	})

	res, err := agg.SaveAnswerDiff(ctx, domainagg.SaveAnswerDiffInput{
		SessionID:         seeded.ID,
		CallerID:          owner,
		QuestionID:        "q2",
		NewAnswer:         strPtr("maybe"),
		PreviousUpdatedAt: t0,
	})
	if err != nil {
		t.Fatalf("SaveAnswerDiff: %v", err)
	}
	if res.Session.Version != 4 {
		t.Fatalf("version: want=4 got=%d", res.Session.Version)
	}

	stored, err := sessions.GetByID(dbctx.Background(ctx), seeded.ID)
	if err != nil || stored == nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.Version != 4 || !questionnaire.SameInstant(stored.UpdatedAt, res.Session.UpdatedAt) {
		t.Fatalf("stored row: version=%d updated_at=%s result=%s", stored.Version, stored.UpdatedAt, res.Session.UpdatedAt)
	}
	if got := decode(t, stored.Answers); got["q2"] != "maybe" || got["q1"] != "yes" {
		t.Fatalf("stored answers: %v", got)
	}

	// replaying the same request is now stale
	_, err = agg.SaveAnswerDiff(ctx, domainagg.SaveAnswerDiffInput{
		SessionID:         seeded.ID,
		CallerID:          owner,
		QuestionID:        "q2",
		NewAnswer:         strPtr("no"),
		PreviousUpdatedAt: t0,
	})
	c, ok := domainagg.AsConflict(err)
	if !ok {
		t.Fatalf("replay: want conflict got=%v", err)
	}
	if c.Latest.Version != 4 {
		t.Fatalf("replay latest version: want=4 got=%d", c.Latest.Version)
	}

	// the conflict rolled back without touching the row
	again, _ := sessions.GetByID(dbctx.Background(ctx), seeded.ID)
	if again.Version != 4 {
		t.Fatalf("version after conflict: want=4 got=%d", again.Version)
	}
	if !again.UpdatedAt.After(t0.Add(-time.Microsecond)) {
		t.Fatalf("updated_at went backwards: %s", again.UpdatedAt)
	}
}
