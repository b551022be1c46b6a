package services

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/google/uuid"

	domainagg "github.com/yungbote/orgdesk-backend/internal/domain/aggregates"
	"github.com/yungbote/orgdesk-backend/internal/domain/audit"
	"github.com/yungbote/orgdesk-backend/internal/domain/questionnaire"
	"github.com/yungbote/orgdesk-backend/internal/observability"
	"github.com/yungbote/orgdesk-backend/internal/platform/ctxutil"
	"github.com/yungbote/orgdesk-backend/internal/platform/logger"
)

var sessionIDPattern = regexp.MustCompile(`(?i)^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// ValidSessionID reports whether raw is a canonical, hyphenated UUID.
func ValidSessionID(raw string) bool {
	return sessionIDPattern.MatchString(raw)
}

// SaveAnswerDiffRequest is the body of a diff save. NewAnswer must be present;
// null and "" both clear the answer.
type SaveAnswerDiffRequest struct {
	QuestionID        string         `json:"questionId"`
	NewAnswer         OptionalString `json:"newAnswer"`
	PreviousUpdatedAt string         `json:"previousUpdatedAt"`
}

type SaveAnswerDiffResponse struct {
	OK        bool            `json:"ok"`
	UpdatedAt string          `json:"updatedAt"`
	Answers   json.RawMessage `json:"answers"`
	Version   int64           `json:"version"`
}

type AnswerDiffService interface {
	SaveAnswerDiff(ctx context.Context, sessionID string, req SaveAnswerDiffRequest) (*SaveAnswerDiffResponse, error)
}

type answerDiffService struct {
	log       *logger.Logger
	aggregate domainagg.AnswerSessionAggregate
	audit     AuditSink
	metrics   *observability.Metrics
}

// NewAnswerDiffService wires the diff save flow. sink may be nil, in which case
// no audit events are recorded.
func NewAnswerDiffService(baseLog *logger.Logger, aggregate domainagg.AnswerSessionAggregate, sink AuditSink, metrics *observability.Metrics) AnswerDiffService {
	return &answerDiffService{
		log:       baseLog.With("service", "AnswerDiffService"),
		aggregate: aggregate,
		audit:     sink,
		metrics:   metrics,
	}
}

func (s *answerDiffService) SaveAnswerDiff(ctx context.Context, sessionID string, req SaveAnswerDiffRequest) (*SaveAnswerDiffResponse, error) {
	const op = "AnswerDiffService.SaveAnswerDiff"

	in, err := s.validate(ctx, op, sessionID, req)
	if err != nil {
		s.metrics.IncAnswerSave("", saveOutcome(err))
		return nil, err
	}
	if s.aggregate == nil {
		return nil, domainagg.NewError(domainagg.CodeInternal, op, "answer session aggregate not configured", nil)
	}

	res, err := s.aggregate.SaveAnswerDiff(ctx, in)
	if err != nil {
		s.metrics.IncAnswerSave("", saveOutcome(err))
		if domainagg.IsCode(err, domainagg.CodeConflict) {
			s.log.Debug("answer save conflict", "session_id", in.SessionID, "caller_id", in.CallerID)
		}
		return nil, err
	}
	s.metrics.IncAnswerSave(string(res.Shape), "ok")

	s.recordAudit(ctx, in, res)

	return &SaveAnswerDiffResponse{
		OK:        true,
		UpdatedAt: questionnaire.FormatInstant(res.Session.UpdatedAt),
		Answers:   res.Session.Answers,
		Version:   res.Session.Version,
	}, nil
}

func (s *answerDiffService) validate(ctx context.Context, op, sessionID string, req SaveAnswerDiffRequest) (domainagg.SaveAnswerDiffInput, error) {
	var in domainagg.SaveAnswerDiffInput

	callerID := ctxutil.CallerID(ctx)
	if callerID == uuid.Nil {
		return in, domainagg.NewError(domainagg.CodeUnauthenticated, op, "authentication required", nil)
	}
	if !ValidSessionID(sessionID) {
		return in, domainagg.NewError(domainagg.CodeValidation, op, "session id must be a UUID", nil)
	}
	id, err := uuid.Parse(sessionID)
	if err != nil {
		return in, domainagg.NewError(domainagg.CodeValidation, op, "session id must be a UUID", err)
	}
	if strings.TrimSpace(req.QuestionID) == "" {
		return in, domainagg.NewError(domainagg.CodeValidation, op, "questionId is required", nil)
	}
	if !req.NewAnswer.Set {
		return in, domainagg.NewError(domainagg.CodeValidation, op, "newAnswer is required (use null to clear)", nil)
	}
	if strings.TrimSpace(req.PreviousUpdatedAt) == "" {
		return in, domainagg.NewError(domainagg.CodeValidation, op, "previousUpdatedAt is required", nil)
	}
	prev, err := questionnaire.ParseInstant(req.PreviousUpdatedAt)
	if err != nil {
		return in, domainagg.NewError(domainagg.CodeValidation, op, "previousUpdatedAt must be an ISO-8601 timestamp", err)
	}

	return domainagg.SaveAnswerDiffInput{
		SessionID:         id,
		CallerID:          callerID,
		QuestionID:        req.QuestionID,
		NewAnswer:         req.NewAnswer.Value,
		PreviousUpdatedAt: prev,
	}, nil
}

func (s *answerDiffService) recordAudit(ctx context.Context, in domainagg.SaveAnswerDiffInput, res domainagg.SaveAnswerDiffResult) {
	if s.audit == nil {
		return
	}
	change := questionnaire.AnswerChange{QuestionID: in.QuestionID, Answer: in.NewAnswer}
	action := audit.ActionAnswerSet
	if change.IsDelete() {
		action = audit.ActionAnswerCleared
	}
	payload := map[string]any{
		"question_id":      in.QuestionID,
		"previous_version": res.PreviousVer,
		"shape":            string(res.Shape),
	}
	if td := ctxutil.GetTraceData(ctx); td != nil && td.RequestID != "" {
		payload["request_id"] = td.RequestID
	}
	if !s.audit.Enqueue(AuditEvent{
		ActorUserID:    in.CallerID,
		OrganizationID: res.OrganizationID,
		EntityType:     audit.EntitySession,
		EntityID:       res.Session.ID,
		Action:         action,
		Version:        res.Session.Version,
		Payload:        payload,
		OccurredAt:     res.Session.UpdatedAt,
	}) {
		s.log.Warn("audit event not queued", "session_id", res.Session.ID, "version", res.Session.Version)
	}
}

func saveOutcome(err error) string {
	if code := domainagg.CodeOf(err); code != "" {
		return string(code)
	}
	return string(domainagg.CodeInternal)
}
