package testutil

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/orgdesk-backend/internal/data/repos"
	"github.com/yungbote/orgdesk-backend/internal/domain/questionnaire"
	"github.com/yungbote/orgdesk-backend/internal/platform/dbctx"
)

// MemorySessionStore is an in-memory repos.SessionRepo. ConditionalUpdate is
// atomic under the store's lock, which is what the aggregate relies on.
type MemorySessionStore struct {
	mu   sync.Mutex
	rows map[uuid.UUID]questionnaire.Session

	// BeforeUpdate runs (without the lock) before each ConditionalUpdate.
	BeforeUpdate func(id uuid.UUID)
	// FailGet and FailUpdate are returned from the matching calls when set.
	FailGet    error
	FailUpdate error

	Gets          int
	UpdateCalls   int
	UpdateMatched int
}

var _ repos.SessionRepo = (*MemorySessionStore)(nil)

var errDuplicateSession = errors.New("duplicate session id")

func NewMemorySessionStore(sessions ...*questionnaire.Session) *MemorySessionStore {
	s := &MemorySessionStore{rows: map[uuid.UUID]questionnaire.Session{}}
	for _, row := range sessions {
		s.Put(row)
	}
	return s
}

// Put stores a copy of row, replacing any existing row with the same id.
func (s *MemorySessionStore) Put(row *questionnaire.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *row
	cp.Answers = append(datatypes.JSON(nil), row.Answers...)
	cp.UpdatedAt = questionnaire.CanonicalInstant(row.UpdatedAt)
	s.rows[row.ID] = cp
}

// Row returns a copy of the stored row, deleted or not.
func (s *MemorySessionStore) Row(id uuid.UUID) (questionnaire.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	return row, ok
}

// Writes is the number of ConditionalUpdate calls that changed a row.
func (s *MemorySessionStore) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.UpdateMatched
}

func (s *MemorySessionStore) Create(_ dbctx.Context, sessions []*questionnaire.Session) ([]*questionnaire.Session, error) {
	for _, row := range sessions {
		if row.ID == uuid.Nil {
			row.ID = uuid.New()
		}
		if _, exists := s.Row(row.ID); exists {
			return nil, errDuplicateSession
		}
		s.Put(row)
	}
	return sessions, nil
}

func (s *MemorySessionStore) GetByID(_ dbctx.Context, id uuid.UUID) (*questionnaire.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Gets++
	if s.FailGet != nil {
		return nil, s.FailGet
	}
	row, ok := s.rows[id]
	if !ok || row.DeletedAt.Valid {
		return nil, nil
	}
	return &row, nil
}

func (s *MemorySessionStore) ListByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*questionnaire.Session, error) {
	var out []*questionnaire.Session
	for _, id := range ids {
		row, err := s.GetByID(dbc, id)
		if err != nil {
			return nil, err
		}
		if row != nil {
			out = append(out, row)
		}
	}
	return out, nil
}

func (s *MemorySessionStore) ConditionalUpdate(_ dbctx.Context, id uuid.UUID, expectedVersion int64, upd repos.SessionAnswersUpdate) (*questionnaire.Session, bool, error) {
	if s.BeforeUpdate != nil {
		s.BeforeUpdate(id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.UpdateCalls++
	if s.FailUpdate != nil {
		return nil, false, s.FailUpdate
	}
	row, ok := s.rows[id]
	if !ok || row.DeletedAt.Valid || row.Version != expectedVersion || row.Status == questionnaire.StatusCompleted {
		return nil, false, nil
	}
	row.Answers = append(datatypes.JSON(nil), upd.Answers...)
	row.Version = expectedVersion + 1
	row.UpdatedAt = questionnaire.CanonicalInstant(upd.UpdatedAt)
	s.rows[id] = row
	s.UpdateMatched++
	out := row
	return &out, true, nil
}

// Mutate applies fn to a stored row as an out-of-band writer would.
func (s *MemorySessionStore) Mutate(id uuid.UUID, fn func(row *questionnaire.Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok {
		return
	}
	fn(&row)
	s.rows[id] = row
}

// NewSession builds an in-progress personal session with the given answers.
func NewSession(owner uuid.UUID, answers string, version int64, updatedAt time.Time) *questionnaire.Session {
	return &questionnaire.Session{
		ID:        uuid.New(),
		UserID:    owner,
		Status:    questionnaire.StatusInProgress,
		Answers:   datatypes.JSON(answers),
		Version:   version,
		CreatedAt: updatedAt,
		UpdatedAt: questionnaire.CanonicalInstant(updatedAt),
	}
}
