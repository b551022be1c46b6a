package aggregates

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/yungbote/orgdesk-backend/internal/domain/questionnaire"
)

var AnswerSessionAggregateContract = Contract{
	Name:             "Questionnaire.AnswerSessionAggregate",
	WriteTxOwnership: WriteTxOwnedByAggregate,
	ReadPolicy:       ReadPolicyInvariantScoped,
	Notes:            "Owns the version-gated answer document write for one questionnaire session.",
}

// AnswerSessionAggregate owns questionnaire answer writes.
//
// Write method failures return *aggregates.Error with codes:
// CodeValidation, CodeNotFound, CodeReadOnly, CodeForbidden, CodeConflict
// (as *ConflictError), CodeDatabase, CodeInternal.
type AnswerSessionAggregate interface {
	Aggregate

	// SaveAnswerDiff applies one question's answer change when the caller's
	// view of the session is current. It never retries on conflict.
	SaveAnswerDiff(ctx context.Context, in SaveAnswerDiffInput) (SaveAnswerDiffResult, error)
}

type SaveAnswerDiffInput struct {
	SessionID         uuid.UUID
	CallerID          uuid.UUID
	QuestionID        string
	NewAnswer         *string
	PreviousUpdatedAt time.Time
}

type SaveAnswerDiffResult struct {
	Session        questionnaire.Snapshot
	OrganizationID *uuid.UUID
	Shape          questionnaire.Shape
	PreviousVer    int64
}
