package org

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/orgdesk-backend/internal/domain/org"
	"github.com/yungbote/orgdesk-backend/internal/platform/dbctx"
	"github.com/yungbote/orgdesk-backend/internal/platform/logger"
)

type MemberRepo interface {
	Create(dbc dbctx.Context, members []*types.Member) ([]*types.Member, error)
	IsMember(dbc dbctx.Context, organizationID, userID uuid.UUID) (bool, error)
	ListOrganizationIDs(dbc dbctx.Context, userID uuid.UUID) ([]uuid.UUID, error)
}

type memberRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMemberRepo(db *gorm.DB, baseLog *logger.Logger) MemberRepo {
	return &memberRepo{db: db, log: baseLog.With("repo", "MemberRepo")}
}

func (r *memberRepo) Create(dbc dbctx.Context, members []*types.Member) ([]*types.Member, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(members) == 0 {
		return []*types.Member{}, nil
	}
	now := time.Now().UTC()
	for _, m := range members {
		if m.ID == uuid.Nil {
			m.ID = uuid.New()
		}
		if m.Role == "" {
			m.Role = types.RoleMember
		}
		if m.CreatedAt.IsZero() {
			m.CreatedAt = now
		}
		if m.UpdatedAt.IsZero() {
			m.UpdatedAt = now
		}
	}
	if err := t.WithContext(dbc.Ctx).Create(&members).Error; err != nil {
		return nil, err
	}
	return members, nil
}

func (r *memberRepo) IsMember(dbc dbctx.Context, organizationID, userID uuid.UUID) (bool, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if organizationID == uuid.Nil || userID == uuid.Nil {
		return false, nil
	}
	var count int64
	if err := t.WithContext(dbc.Ctx).
		Model(&types.Member{}).
		Where("organization_id = ? AND user_id = ?", organizationID, userID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *memberRepo) ListOrganizationIDs(dbc dbctx.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []uuid.UUID
	if userID == uuid.Nil {
		return out, nil
	}
	if err := t.WithContext(dbc.Ctx).
		Model(&types.Member{}).
		Where("user_id = ?", userID).
		Order("organization_id").
		Pluck("organization_id", &out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
