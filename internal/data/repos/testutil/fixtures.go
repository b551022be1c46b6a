package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/orgdesk-backend/internal/domain/org"
	"github.com/yungbote/orgdesk-backend/internal/domain/questionnaire"
	"github.com/yungbote/orgdesk-backend/internal/domain/user"
)

func SeedUser(tb testing.TB, ctx context.Context, tx *gorm.DB, email string) *user.User {
	tb.Helper()
	now := time.Now().UTC()
	u := &user.User{
		ID:        uuid.New(),
		Email:     email,
		Password:  "pw",
		FirstName: "A",
		LastName:  "B",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.WithContext(ctx).Create(u).Error; err != nil {
		tb.Fatalf("seed user: %v", err)
	}
	return u
}

func SeedOrganization(tb testing.TB, ctx context.Context, tx *gorm.DB, name string) *org.Organization {
	tb.Helper()
	now := time.Now().UTC()
	o := &org.Organization{
		ID:        uuid.New(),
		Name:      name,
		Slug:      name + "-" + uuid.NewString()[:8],
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.WithContext(ctx).Create(o).Error; err != nil {
		tb.Fatalf("seed organization: %v", err)
	}
	return o
}

func SeedMember(tb testing.TB, ctx context.Context, tx *gorm.DB, orgID, userID uuid.UUID) *org.Member {
	tb.Helper()
	now := time.Now().UTC()
	m := &org.Member{
		ID:             uuid.New(),
		OrganizationID: orgID,
		UserID:         userID,
		Role:           org.RoleMember,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := tx.WithContext(ctx).Create(m).Error; err != nil {
		tb.Fatalf("seed member: %v", err)
	}
	return m
}

// SessionSeed describes a session row to insert. Zero values get defaults.
type SessionSeed struct {
	OrganizationID *uuid.UUID
	UserID         uuid.UUID
	Status         string
	ContentType    string
	Answers        string
	Version        int64
	UpdatedAt      time.Time
}

func SeedSession(tb testing.TB, ctx context.Context, tx *gorm.DB, in SessionSeed) *questionnaire.Session {
	tb.Helper()
	if in.Status == "" {
		in.Status = questionnaire.StatusInProgress
	}
	if in.Answers == "" {
		in.Answers = `{}`
	}
	if in.UpdatedAt.IsZero() {
		in.UpdatedAt = time.Now().UTC().Add(-time.Minute)
	}
	if in.UserID == uuid.Nil {
		in.UserID = uuid.New()
	}
	s := &questionnaire.Session{
		ID:             uuid.New(),
		OrganizationID: in.OrganizationID,
		UserID:         in.UserID,
		Status:         in.Status,
		ContentType:    in.ContentType,
		Answers:        datatypes.JSON(in.Answers),
		Version:        in.Version,
		CreatedAt:      in.UpdatedAt,
		UpdatedAt:      questionnaire.CanonicalInstant(in.UpdatedAt),
	}
	if err := tx.WithContext(ctx).Create(s).Error; err != nil {
		tb.Fatalf("seed session: %v", err)
	}
	return s
}
