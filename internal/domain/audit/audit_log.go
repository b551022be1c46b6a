package audit

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	EntitySession = "questionnaire_session"

	ActionAnswerSet     = "session.answer_set"
	ActionAnswerCleared = "session.answer_cleared"
)

// Log is an append-only record of a change made through the API.
// Version is the entity version the change produced.
type Log struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ActorUserID    uuid.UUID      `gorm:"type:uuid;column:actor_user_id;not null;index" json:"actor_user_id"`
	OrganizationID *uuid.UUID     `gorm:"type:uuid;column:organization_id;index" json:"organization_id,omitempty"`
	EntityType     string         `gorm:"column:entity_type;type:text;not null;index:idx_audit_entity,priority:1" json:"entity_type"`
	EntityID       uuid.UUID      `gorm:"type:uuid;column:entity_id;not null;index:idx_audit_entity,priority:2" json:"entity_id"`
	Action         string         `gorm:"column:action;type:text;not null" json:"action"`
	Version        int64          `gorm:"column:version;not null;default:0" json:"version"`
	Payload        datatypes.JSON `gorm:"column:payload;type:jsonb" json:"payload,omitempty"`
	CreatedAt      time.Time      `gorm:"not null;index" json:"created_at"`
}

func (Log) TableName() string { return "audit_log" }
