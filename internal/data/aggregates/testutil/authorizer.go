package testutil

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/yungbote/orgdesk-backend/internal/data/aggregates"
	"github.com/yungbote/orgdesk-backend/internal/domain/questionnaire"
	"github.com/yungbote/orgdesk-backend/internal/platform/dbctx"
)

var ErrNotAllowed = errors.New("not allowed")

// StaticAuthorizer allows owners of personal sessions and the listed
// organization members. Err, when set, is returned for every call.
type StaticAuthorizer struct {
	mu      sync.Mutex
	members map[uuid.UUID]map[uuid.UUID]bool
	Err     error
	Calls   int
}

var _ aggregates.SessionAuthorizer = (*StaticAuthorizer)(nil)

func NewStaticAuthorizer() *StaticAuthorizer {
	return &StaticAuthorizer{members: map[uuid.UUID]map[uuid.UUID]bool{}}
}

func (a *StaticAuthorizer) AddMember(orgID, userID uuid.UUID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.members[orgID] == nil {
		a.members[orgID] = map[uuid.UUID]bool{}
	}
	a.members[orgID][userID] = true
}

func (a *StaticAuthorizer) AuthorizeSessionWrite(_ dbctx.Context, callerID uuid.UUID, owner questionnaire.Owner) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Calls++
	if a.Err != nil {
		return a.Err
	}
	if owner.IsOrganization() {
		if a.members[*owner.OrganizationID][callerID] {
			return nil
		}
		return ErrNotAllowed
	}
	if owner.UserID == callerID {
		return nil
	}
	return ErrNotAllowed
}
