package user

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/orgdesk-backend/internal/data/repos/testutil"
	types "github.com/yungbote/orgdesk-backend/internal/domain/user"
	"github.com/yungbote/orgdesk-backend/internal/platform/dbctx"
)

func TestUserRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	repo := NewUserRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}

	email := "UserRepo-" + uuid.NewString()[:8] + "@Example.com"
	created, err := repo.Create(dbc, []*types.User{{Email: email, Password: "pw"}})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(created) != 1 || created[0].ID == uuid.Nil {
		t.Fatalf("Create: unexpected result: %+v", created)
	}

	got, err := repo.GetByIDs(dbc, []uuid.UUID{created[0].ID})
	if err != nil {
		t.Fatalf("GetByIDs: %v", err)
	}
	if len(got) != 1 || got[0].ID != created[0].ID {
		t.Fatalf("GetByIDs: unexpected result: %+v", got)
	}

	byEmail, err := repo.GetByEmail(dbc, "  "+email+" ")
	if err != nil {
		t.Fatalf("GetByEmail: %v", err)
	}
	if byEmail == nil || byEmail.ID != created[0].ID {
		t.Fatalf("GetByEmail: want=%s got=%+v", created[0].ID, byEmail)
	}

	missing, err := repo.GetByEmail(dbc, "nobody@example.com")
	if err != nil {
		t.Fatalf("GetByEmail(missing): %v", err)
	}
	if missing != nil {
		t.Fatalf("GetByEmail(missing): want nil got=%+v", missing)
	}
}
