package aggregates

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/orgdesk-backend/internal/data/repos"
	domainagg "github.com/yungbote/orgdesk-backend/internal/domain/aggregates"
	"github.com/yungbote/orgdesk-backend/internal/domain/questionnaire"
	"github.com/yungbote/orgdesk-backend/internal/platform/dbctx"
)

// SessionAuthorizer decides whether a caller may write to a session. Any
// non-nil error denies access. dbc carries the write transaction so lookups
// observe the same snapshot.
type SessionAuthorizer interface {
	AuthorizeSessionWrite(dbc dbctx.Context, callerID uuid.UUID, owner questionnaire.Owner) error
}

type AnswerSessionAggregateDeps struct {
	Base BaseDeps

	Sessions repos.SessionRepo
	Access   SessionAuthorizer
}

type answerSessionAggregate struct {
	deps AnswerSessionAggregateDeps
}

func NewAnswerSessionAggregate(deps AnswerSessionAggregateDeps) domainagg.AnswerSessionAggregate {
	deps.Base = deps.Base.withDefaults()
	return &answerSessionAggregate{deps: deps}
}

func (a *answerSessionAggregate) Contract() domainagg.Contract {
	return domainagg.AnswerSessionAggregateContract
}

func (a *answerSessionAggregate) SaveAnswerDiff(ctx context.Context, in domainagg.SaveAnswerDiffInput) (domainagg.SaveAnswerDiffResult, error) {
	const op = "Questionnaire.AnswerSession.SaveAnswerDiff"
	var out domainagg.SaveAnswerDiffResult
	if in.CallerID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeUnauthenticated, op, "missing caller", nil)
	}
	if in.SessionID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing session_id", nil)
	}
	if strings.TrimSpace(in.QuestionID) == "" {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing question_id", nil)
	}
	if in.PreviousUpdatedAt.IsZero() {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing previous_updated_at", nil)
	}
	if a.deps.Sessions == nil || a.deps.Access == nil {
		return out, domainagg.NewError(domainagg.CodeInternal, op, "answer session aggregate not configured", nil)
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		s, err := a.deps.Sessions.GetByID(dbc, in.SessionID)
		if err != nil {
			return err
		}
		if s == nil {
			return domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("session not found: %s", in.SessionID), nil)
		}
		if s.IsReadOnly() {
			return domainagg.NewError(domainagg.CodeReadOnly, op, "session is completed", nil)
		}
		if err := a.deps.Access.AuthorizeSessionWrite(dbc, in.CallerID, s.Owner()); err != nil {
			return domainagg.NewError(domainagg.CodeForbidden, op, "caller may not edit this session", err)
		}
		if !questionnaire.SameInstant(s.UpdatedAt, in.PreviousUpdatedAt) {
			return domainagg.NewConflict(op, "session was modified since previous_updated_at", s.Snapshot())
		}

		doc, err := questionnaire.ParseAnswers(s.Answers)
		if err != nil {
			return domainagg.NewError(domainagg.CodeInternal, op, "stored answers are unreadable", err)
		}
		merged, err := questionnaire.Merge(doc, questionnaire.AnswerChange{
			QuestionID:  in.QuestionID,
			Answer:      in.NewAnswer,
			ContentType: s.ContentType,
		})
		if err != nil {
			return domainagg.NewError(domainagg.CodeInternal, op, "merge answers", err)
		}
		raw, err := merged.Encode()
		if err != nil {
			return domainagg.NewError(domainagg.CodeInternal, op, "encode answers", err)
		}

		row, ok, err := a.deps.Sessions.ConditionalUpdate(dbc, s.ID, s.Version, repos.SessionAnswersUpdate{
			Answers:   datatypes.JSON(raw),
			UpdatedAt: questionnaire.NextUpdatedAt(s.UpdatedAt, a.deps.Base.Now()),
		})
		if err != nil {
			return err
		}
		if !ok || row == nil {
			return a.lostRace(dbc, op, s.ID)
		}
		if err := RequireVersionMatch(row.Version, s.Version+1); err != nil {
			return InvariantError(fmt.Sprintf("version advanced from %d to %d", s.Version, row.Version))
		}

		out = domainagg.SaveAnswerDiffResult{
			Session:        row.Snapshot(),
			OrganizationID: row.OrganizationID,
			Shape:          merged.Shape(),
			PreviousVer:    s.Version,
		}
		return nil
	})
	return out, err
}

// lostRace reports why a version-gated write matched no row.
func (a *answerSessionAggregate) lostRace(dbc dbctx.Context, op string, id uuid.UUID) error {
	latest, err := a.deps.Sessions.GetByID(dbc, id)
	if err != nil {
		return err
	}
	switch {
	case latest == nil:
		return domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("session not found: %s", id), nil)
	case latest.IsReadOnly():
		return domainagg.NewError(domainagg.CodeReadOnly, op, "session is completed", nil)
	default:
		return domainagg.NewConflict(op, "session changed during write", latest.Snapshot())
	}
}
