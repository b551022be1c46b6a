package audit

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/yungbote/orgdesk-backend/internal/domain/audit"
	"github.com/yungbote/orgdesk-backend/internal/platform/dbctx"
	"github.com/yungbote/orgdesk-backend/internal/platform/logger"
)

// EntityVersion summarizes the audit trail of one entity.
type EntityVersion struct {
	EntityID   uuid.UUID
	MaxVersion int64
	RowCount   int64
}

type LogRepo interface {
	Create(dbc dbctx.Context, rows []*types.Log) ([]*types.Log, error)
	ListByEntity(dbc dbctx.Context, entityType string, entityID uuid.UUID) ([]*types.Log, error)
	// VersionsSince groups audit rows created at or after since by entity.
	VersionsSince(dbc dbctx.Context, entityType string, since time.Time, limit int) ([]EntityVersion, error)
}

type logRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLogRepo(db *gorm.DB, baseLog *logger.Logger) LogRepo {
	return &logRepo{db: db, log: baseLog.With("repo", "AuditLogRepo")}
}

func (r *logRepo) Create(dbc dbctx.Context, rows []*types.Log) ([]*types.Log, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(rows) == 0 {
		return []*types.Log{}, nil
	}
	now := time.Now().UTC()
	for _, row := range rows {
		if row.ID == uuid.Nil {
			row.ID = uuid.New()
		}
		if row.CreatedAt.IsZero() {
			row.CreatedAt = now
		}
		if len(row.Payload) == 0 {
			row.Payload = datatypes.JSON(`{}`)
		}
	}
	if err := t.WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *logRepo) ListByEntity(dbc dbctx.Context, entityType string, entityID uuid.UUID) ([]*types.Log, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*types.Log
	if entityID == uuid.Nil {
		return out, nil
	}
	if err := t.WithContext(dbc.Ctx).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("version ASC, created_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *logRepo) VersionsSince(dbc dbctx.Context, entityType string, since time.Time, limit int) ([]EntityVersion, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if limit <= 0 {
		limit = 500
	}
	var out []EntityVersion
	if err := t.WithContext(dbc.Ctx).
		Model(&types.Log{}).
		Select("entity_id, MAX(version) AS max_version, COUNT(*) AS row_count").
		Where("entity_type = ? AND created_at >= ?", entityType, since.UTC()).
		Group("entity_id").
		Order("entity_id").
		Limit(limit).
		Scan(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
