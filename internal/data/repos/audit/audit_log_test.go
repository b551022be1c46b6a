package audit

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/orgdesk-backend/internal/data/repos/testutil"
	types "github.com/yungbote/orgdesk-backend/internal/domain/audit"
	"github.com/yungbote/orgdesk-backend/internal/platform/dbctx"
)

func TestLogRepoVersionsSince(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	repo := NewLogRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}

	actor := uuid.New()
	a, b := uuid.New(), uuid.New()
	now := time.Now().UTC()
	rows := []*types.Log{
		{ActorUserID: actor, EntityType: types.EntitySession, EntityID: a, Action: types.ActionAnswerSet, Version: 1, CreatedAt: now},
		{ActorUserID: actor, EntityType: types.EntitySession, EntityID: a, Action: types.ActionAnswerSet, Version: 2, CreatedAt: now},
		{ActorUserID: actor, EntityType: types.EntitySession, EntityID: b, Action: types.ActionAnswerCleared, Version: 5, CreatedAt: now},
		{ActorUserID: actor, EntityType: types.EntitySession, EntityID: b, Action: types.ActionAnswerSet, Version: 9, CreatedAt: now.Add(-48 * time.Hour)},
	}
	if _, err := repo.Create(dbc, rows); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.VersionsSince(dbc, types.EntitySession, now.Add(-time.Hour), 0)
	if err != nil {
		t.Fatalf("VersionsSince: %v", err)
	}
	byID := map[uuid.UUID]EntityVersion{}
	for _, v := range got {
		byID[v.EntityID] = v
	}
	if byID[a].MaxVersion != 2 || byID[a].RowCount != 2 {
		t.Fatalf("entity a: want max=2 rows=2 got=%+v", byID[a])
	}
	if byID[b].MaxVersion != 5 || byID[b].RowCount != 1 {
		t.Fatalf("entity b: want max=5 rows=1 got=%+v", byID[b])
	}

	list, err := repo.ListByEntity(dbc, types.EntitySession, a)
	if err != nil {
		t.Fatalf("ListByEntity: %v", err)
	}
	if len(list) != 2 || list[0].Version != 1 || list[1].Version != 2 {
		t.Fatalf("ListByEntity: unexpected %+v", list)
	}
}
