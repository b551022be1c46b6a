package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/orgdesk-backend/internal/domain/org"
	"github.com/yungbote/orgdesk-backend/internal/domain/questionnaire"
	"github.com/yungbote/orgdesk-backend/internal/observability"
	"github.com/yungbote/orgdesk-backend/internal/platform/dbctx"
	"github.com/yungbote/orgdesk-backend/internal/platform/logger"
)

type fakeMemberRepo struct {
	mu      sync.Mutex
	members map[[2]uuid.UUID]bool
	err     error
	calls   atomic.Int64
	gate    chan struct{}
}

func newFakeMemberRepo() *fakeMemberRepo {
	return &fakeMemberRepo{members: map[[2]uuid.UUID]bool{}}
}

func (f *fakeMemberRepo) add(orgID, userID uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.members[[2]uuid.UUID{orgID, userID}] = true
}

func (f *fakeMemberRepo) Create(_ dbctx.Context, members []*org.Member) ([]*org.Member, error) {
	for _, m := range members {
		f.add(m.OrganizationID, m.UserID)
	}
	return members, nil
}

func (f *fakeMemberRepo) IsMember(dbc dbctx.Context, orgID, userID uuid.UUID) (bool, error) {
	f.calls.Add(1)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-dbc.Ctx.Done():
			return false, dbc.Ctx.Err()
		}
	}
	if f.err != nil {
		return false, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.members[[2]uuid.UUID{orgID, userID}], nil
}

func (f *fakeMemberRepo) ListOrganizationIDs(_ dbctx.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []uuid.UUID
	for k := range f.members {
		if k[1] == userID {
			out = append(out, k[0])
		}
	}
	return out, nil
}

type memoryMembershipCache struct {
	mu      sync.Mutex
	entries map[[2]uuid.UUID]bool
	ttls    []time.Duration
	getErr  error
}

func newMemoryMembershipCache() *memoryMembershipCache {
	return &memoryMembershipCache{entries: map[[2]uuid.UUID]bool{}}
}

func (c *memoryMembershipCache) Get(_ context.Context, orgID, userID uuid.UUID) (bool, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return false, false, c.getErr
	}
	v, ok := c.entries[[2]uuid.UUID{orgID, userID}]
	return v, ok, nil
}

func (c *memoryMembershipCache) Set(_ context.Context, orgID, userID uuid.UUID, member bool, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[[2]uuid.UUID{orgID, userID}] = member
	c.ttls = append(c.ttls, ttl)
	return nil
}

func orgOwner(orgID uuid.UUID) questionnaire.Owner {
	id := orgID
	return questionnaire.Owner{OrganizationID: &id, UserID: uuid.New()}
}

func TestSessionAccessPersonalSession(t *testing.T) {
	svc := NewSessionAccessService(logger.NewNop(), newFakeMemberRepo(), nil, 0, nil)
	owner := uuid.New()
	dbc := dbctx.Background(context.Background())

	if err := svc.AuthorizeSessionWrite(dbc, owner, questionnaire.Owner{UserID: owner}); err != nil {
		t.Fatalf("owner: want=nil got=%v", err)
	}
	if err := svc.AuthorizeSessionWrite(dbc, uuid.New(), questionnaire.Owner{UserID: owner}); !errors.Is(err, ErrNotSessionOwner) {
		t.Fatalf("stranger: want=%v got=%v", ErrNotSessionOwner, err)
	}
	if err := svc.AuthorizeSessionWrite(dbc, uuid.Nil, questionnaire.Owner{UserID: owner}); !errors.Is(err, ErrNoCaller) {
		t.Fatalf("no caller: want=%v got=%v", ErrNoCaller, err)
	}
}

func TestSessionAccessOrganizationSession(t *testing.T) {
	members := newFakeMemberRepo()
	cache := newMemoryMembershipCache()
	m := observability.New()
	svc := NewSessionAccessService(logger.NewNop(), members, cache, 5*time.Minute, m)
	dbc := dbctx.Background(context.Background())

	orgID, memberID, outsider := uuid.New(), uuid.New(), uuid.New()
	members.add(orgID, memberID)

	// Personal owner of an org session gets no special treatment.
	owner := orgOwner(orgID)
	if err := svc.AuthorizeSessionWrite(dbc, owner.UserID, owner); !errors.Is(err, ErrNotOrganizationMember) {
		t.Fatalf("org session creator without membership: want=%v got=%v", ErrNotOrganizationMember, err)
	}
	if err := svc.AuthorizeSessionWrite(dbc, memberID, owner); err != nil {
		t.Fatalf("member: want=nil got=%v", err)
	}
	if err := svc.AuthorizeSessionWrite(dbc, outsider, owner); !errors.Is(err, ErrNotOrganizationMember) {
		t.Fatalf("outsider: want=%v got=%v", ErrNotOrganizationMember, err)
	}
	if got := members.calls.Load(); got != 3 {
		t.Fatalf("repo calls before caching: want=3 got=%d", got)
	}

	// Both positive and negative answers come from the cache now.
	_ = svc.AuthorizeSessionWrite(dbc, memberID, owner)
	_ = svc.AuthorizeSessionWrite(dbc, outsider, owner)
	if got := members.calls.Load(); got != 3 {
		t.Fatalf("repo calls after caching: want=3 got=%d", got)
	}
	for _, ttl := range cache.ttls {
		if ttl != 5*time.Minute {
			t.Fatalf("cache ttl: want=%v got=%v", 5*time.Minute, ttl)
		}
	}
	if got := m.MembershipLookups("cache", "member"); got != 1 {
		t.Fatalf("cache hits: want=1 got=%v", got)
	}
}

func TestSessionAccessLookupFailureDenies(t *testing.T) {
	members := newFakeMemberRepo()
	members.err = errors.New("connection reset")
	svc := NewSessionAccessService(logger.NewNop(), members, nil, time.Minute, nil)

	owner := orgOwner(uuid.New())
	err := svc.AuthorizeSessionWrite(dbctx.Background(context.Background()), uuid.New(), owner)
	if err == nil {
		t.Fatalf("lookup failure: want error got nil")
	}
	if !errors.Is(err, members.err) {
		t.Fatalf("lookup failure cause: want=%v got=%v", members.err, err)
	}
}

func TestSessionAccessCacheErrorFallsBackToRepo(t *testing.T) {
	members := newFakeMemberRepo()
	cache := newMemoryMembershipCache()
	cache.getErr = errors.New("redis down")
	svc := NewSessionAccessService(logger.NewNop(), members, cache, time.Minute, nil)

	orgID, userID := uuid.New(), uuid.New()
	members.add(orgID, userID)
	if err := svc.AuthorizeSessionWrite(dbctx.Background(context.Background()), userID, orgOwner(orgID)); err != nil {
		t.Fatalf("cache error fallback: want=nil got=%v", err)
	}
	if got := members.calls.Load(); got != 1 {
		t.Fatalf("repo calls: want=1 got=%d", got)
	}
}

func TestSessionAccessDeduplicatesConcurrentLookups(t *testing.T) {
	members := newFakeMemberRepo()
	members.gate = make(chan struct{})
	svc := NewSessionAccessService(logger.NewNop(), members, nil, 0, nil)

	orgID, userID := uuid.New(), uuid.New()
	members.add(orgID, userID)
	owner := orgOwner(orgID)

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- svc.AuthorizeSessionWrite(dbctx.Background(context.Background()), userID, owner)
		}()
	}

	// Let the first lookup start, give the rest time to join it, then release.
	deadline := time.Now().Add(2 * time.Second)
	for members.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	close(members.gate)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent caller: want=nil got=%v", err)
		}
	}
	if got := members.calls.Load(); got >= callers {
		t.Fatalf("repo calls: want fewer than %d got=%d", callers, got)
	}
}

func TestSessionAccessSharedLookupSurvivesFirstCallerCancel(t *testing.T) {
	members := newFakeMemberRepo()
	members.gate = make(chan struct{})
	svc := NewSessionAccessService(logger.NewNop(), members, nil, 0, nil)

	orgID, userID := uuid.New(), uuid.New()
	members.add(orgID, userID)
	owner := orgOwner(orgID)

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() { errA <- svc.AuthorizeSessionWrite(dbctx.Background(ctxA), userID, owner) }()

	deadline := time.Now().Add(2 * time.Second)
	for members.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	errB := make(chan error, 1)
	go func() { errB <- svc.AuthorizeSessionWrite(dbctx.Background(context.Background()), userID, owner) }()
	time.Sleep(20 * time.Millisecond)

	cancelA()
	if err := <-errA; !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled caller: want=%v got=%v", context.Canceled, err)
	}
	close(members.gate)
	if err := <-errB; err != nil {
		t.Fatalf("live caller: want=nil got=%v", err)
	}
	if got := members.calls.Load(); got != 1 {
		t.Fatalf("repo calls: want=1 got=%d", got)
	}
}
