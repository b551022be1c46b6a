package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/yungbote/orgdesk-backend/internal/data/repos"
	"github.com/yungbote/orgdesk-backend/internal/domain/questionnaire"
	"github.com/yungbote/orgdesk-backend/internal/observability"
	"github.com/yungbote/orgdesk-backend/internal/platform/ctxutil"
	"github.com/yungbote/orgdesk-backend/internal/platform/dbctx"
	"github.com/yungbote/orgdesk-backend/internal/platform/logger"
)

var (
	ErrNoCaller              = errors.New("no authenticated caller")
	ErrNotSessionOwner       = errors.New("caller does not own the session")
	ErrNotOrganizationMember = errors.New("caller is not a member of the session organization")
)

// MembershipCache remembers membership answers between requests. found=false is a miss.
type MembershipCache interface {
	Get(ctx context.Context, orgID, userID uuid.UUID) (member bool, found bool, err error)
	Set(ctx context.Context, orgID, userID uuid.UUID, member bool, ttl time.Duration) error
}

// SessionAccessService decides whether a caller may edit a questionnaire session.
// Every non-nil error is a denial.
type SessionAccessService interface {
	AuthorizeSessionWrite(dbc dbctx.Context, callerID uuid.UUID, owner questionnaire.Owner) error
}

// membershipLookupTimeout bounds a shared lookup, which no single caller can cancel.
const membershipLookupTimeout = 5 * time.Second

type sessionAccessService struct {
	log      *logger.Logger
	members  repos.MemberRepo
	cache    MembershipCache
	cacheTTL time.Duration
	metrics  *observability.Metrics
	group    singleflight.Group
}

// NewSessionAccessService builds the authorizer. cache may be nil.
func NewSessionAccessService(baseLog *logger.Logger, members repos.MemberRepo, cache MembershipCache, cacheTTL time.Duration, metrics *observability.Metrics) SessionAccessService {
	return &sessionAccessService{
		log:      baseLog.With("service", "SessionAccessService"),
		members:  members,
		cache:    cache,
		cacheTTL: cacheTTL,
		metrics:  metrics,
	}
}

func (s *sessionAccessService) AuthorizeSessionWrite(dbc dbctx.Context, callerID uuid.UUID, owner questionnaire.Owner) error {
	if callerID == uuid.Nil {
		return ErrNoCaller
	}
	if !owner.IsOrganization() {
		if owner.UserID != callerID {
			return ErrNotSessionOwner
		}
		return nil
	}
	member, err := s.isMember(dbc, *owner.OrganizationID, callerID)
	if err != nil {
		return fmt.Errorf("membership lookup: %w", err)
	}
	if !member {
		return ErrNotOrganizationMember
	}
	return nil
}

func (s *sessionAccessService) isMember(dbc dbctx.Context, orgID, userID uuid.UUID) (bool, error) {
	ctx := dbc.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	if s.cache != nil {
		member, found, err := s.cache.Get(ctx, orgID, userID)
		switch {
		case err != nil:
			s.log.Warn("membership cache read failed", "organization_id", orgID, "error", err)
		case found:
			s.metrics.IncMembershipLookup("cache", membershipResult(member))
			return member, nil
		}
	}
	if s.members == nil {
		return false, errors.New("member repo not configured")
	}

	// Shared lookups run outside the caller's tx on a detached context.
	key := orgID.String() + ":" + userID.String()
	ch := s.group.DoChan(key, func() (interface{}, error) {
		lookupCtx, cancel := context.WithTimeout(ctxutil.Detach(ctx), membershipLookupTimeout)
		defer cancel()
		return s.members.IsMember(dbctx.Background(lookupCtx), orgID, userID)
	})
	var res singleflight.Result
	select {
	case <-ctx.Done():
		s.metrics.IncMembershipLookup("db", "error")
		return false, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		s.metrics.IncMembershipLookup("db", "error")
		return false, res.Err
	}
	member, _ := res.Val.(bool)
	s.metrics.IncMembershipLookup("db", membershipResult(member))

	if s.cache != nil {
		if err := s.cache.Set(ctx, orgID, userID, member, s.cacheTTL); err != nil {
			s.log.Warn("membership cache write failed", "organization_id", orgID, "error", err)
		}
	}
	return member, nil
}

func membershipResult(member bool) string {
	if member {
		return "member"
	}
	return "non_member"
}
