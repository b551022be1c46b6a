package questionnaire

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/yungbote/orgdesk-backend/internal/domain/questionnaire"
	"github.com/yungbote/orgdesk-backend/internal/platform/dbctx"
	"github.com/yungbote/orgdesk-backend/internal/platform/logger"
)

// AnswersUpdate is the new document state for a version-gated write.
type AnswersUpdate struct {
	Answers   datatypes.JSON
	UpdatedAt time.Time
}

type SessionRepo interface {
	Create(dbc dbctx.Context, sessions []*types.Session) ([]*types.Session, error)
	// GetByID returns nil, nil when the session does not exist or is soft-deleted.
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Session, error)
	ListByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Session, error)
	// ConditionalUpdate writes answers, updated_at and version = expectedVersion+1
	// only if the row still has expectedVersion and is not completed. The
	// returned bool reports whether the row matched.
	ConditionalUpdate(dbc dbctx.Context, id uuid.UUID, expectedVersion int64, upd AnswersUpdate) (*types.Session, bool, error)
}

type sessionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSessionRepo(db *gorm.DB, baseLog *logger.Logger) SessionRepo {
	return &sessionRepo{db: db, log: baseLog.With("repo", "SessionRepo")}
}

func (r *sessionRepo) Create(dbc dbctx.Context, sessions []*types.Session) ([]*types.Session, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(sessions) == 0 {
		return []*types.Session{}, nil
	}
	now := time.Now().UTC()
	for _, s := range sessions {
		if s.ID == uuid.Nil {
			s.ID = uuid.New()
		}
		if s.Status == "" {
			s.Status = types.StatusInProgress
		}
		if len(s.Answers) == 0 {
			s.Answers = datatypes.JSON(`{}`)
		}
		if s.UpdatedAt.IsZero() {
			s.UpdatedAt = now
		}
		s.UpdatedAt = types.CanonicalInstant(s.UpdatedAt)
	}
	if err := t.WithContext(dbc.Ctx).Create(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *sessionRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Session, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var row types.Session
	err := t.WithContext(dbc.Ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *sessionRepo) ListByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Session, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.Session
	if len(ids) == 0 {
		return out, nil
	}
	if err := t.WithContext(dbc.Ctx).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *sessionRepo) ConditionalUpdate(dbc dbctx.Context, id uuid.UUID, expectedVersion int64, upd AnswersUpdate) (*types.Session, bool, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil {
		return nil, false, nil
	}
	res := t.WithContext(dbc.Ctx).
		Model(&types.Session{}).
		Where("id = ? AND version = ? AND status <> ?", id, expectedVersion, types.StatusCompleted).
		Updates(map[string]any{
			"answers":    upd.Answers,
			"version":    expectedVersion + 1,
			"updated_at": types.CanonicalInstant(upd.UpdatedAt),
		})
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, false, nil
	}
	row, err := r.GetByID(dbc, id)
	if err != nil {
		return nil, true, err
	}
	if row == nil {
		return nil, false, nil
	}
	return row, true, nil
}
