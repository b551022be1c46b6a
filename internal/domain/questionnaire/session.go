package questionnaire

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

// Session is an in-progress (or finished) questionnaire response.
// Version and UpdatedAt move together on every successful answer write.
type Session struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	OrganizationID *uuid.UUID `gorm:"type:uuid;column:organization_id;index" json:"organization_id,omitempty"`
	UserID         uuid.UUID  `gorm:"type:uuid;column:user_id;not null;index" json:"user_id"`

	Status      string `gorm:"column:status;type:text;not null;default:'in_progress';index" json:"status"`
	ContentType string `gorm:"column:content_type;type:text" json:"content_type"`

	Answers datatypes.JSON `gorm:"column:answers;type:jsonb" json:"answers"`
	Version int64          `gorm:"column:version;not null;default:0" json:"version"`

	CreatedAt time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"column:updated_at;not null;autoUpdateTime:false" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Session) TableName() string { return "questionnaire_session" }

func (s *Session) IsReadOnly() bool {
	return s != nil && s.Status == StatusCompleted
}

// Owner identifies who may write to a session.
type Owner struct {
	OrganizationID *uuid.UUID
	UserID         uuid.UUID
}

func (o Owner) IsOrganization() bool {
	return o.OrganizationID != nil && *o.OrganizationID != uuid.Nil
}

func (s *Session) Owner() Owner {
	if s == nil {
		return Owner{}
	}
	return Owner{OrganizationID: s.OrganizationID, UserID: s.UserID}
}

// Snapshot is the externally visible state of a session, returned on
// success and attached to conflicts so callers can reconcile.
type Snapshot struct {
	ID        uuid.UUID       `json:"id"`
	Version   int64           `json:"version"`
	UpdatedAt time.Time       `json:"updated_at"`
	Answers   json.RawMessage `json:"answers"`
}

func (s *Session) Snapshot() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	raw := json.RawMessage(s.Answers)
	if len(raw) == 0 || string(raw) == "null" {
		raw = json.RawMessage(`{}`)
	}
	return Snapshot{
		ID:        s.ID,
		Version:   s.Version,
		UpdatedAt: CanonicalInstant(s.UpdatedAt),
		Answers:   raw,
	}
}

// MarshalJSON renders updated_at in the same canonical form the API returns.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	type wire struct {
		ID        uuid.UUID       `json:"id"`
		Version   int64           `json:"version"`
		UpdatedAt string          `json:"updated_at"`
		Answers   json.RawMessage `json:"answers"`
	}
	answers := s.Answers
	if len(answers) == 0 {
		answers = json.RawMessage(`{}`)
	}
	return json.Marshal(wire{
		ID:        s.ID,
		Version:   s.Version,
		UpdatedAt: FormatInstant(s.UpdatedAt),
		Answers:   answers,
	})
}
