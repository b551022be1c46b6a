package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/orgdesk-backend/internal/platform/logger"
)

const (
	memberYes = "1"
	memberNo  = "0"
)

// MembershipCache stores organization membership answers, positive and negative.
type MembershipCache struct {
	log    *logger.Logger
	rdb    goredis.UniversalClient
	prefix string
}

func NewMembershipCache(log *logger.Logger, rdb goredis.UniversalClient, cfg Config) *MembershipCache {
	return &MembershipCache{
		log:    log.With("client", "RedisMembershipCache"),
		rdb:    rdb,
		prefix: cfg.KeyPrefix,
	}
}

func (c *MembershipCache) key(orgID, userID uuid.UUID) string {
	return prefixed(c.prefix, fmt.Sprintf("org_member:%s:%s", orgID, userID))
}

// Get returns found=false on a cache miss.
func (c *MembershipCache) Get(ctx context.Context, orgID, userID uuid.UUID) (member bool, found bool, err error) {
	if c == nil || c.rdb == nil {
		return false, false, nil
	}
	val, err := c.rdb.Get(ctx, c.key(orgID, userID)).Result()
	if errors.Is(err, goredis.Nil) {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	switch val {
	case memberYes:
		return true, true, nil
	case memberNo:
		return false, true, nil
	default:
		return false, false, nil
	}
}

func (c *MembershipCache) Set(ctx context.Context, orgID, userID uuid.UUID, member bool, ttl time.Duration) error {
	if c == nil || c.rdb == nil || ttl <= 0 {
		return nil
	}
	val := memberNo
	if member {
		val = memberYes
	}
	return c.rdb.Set(ctx, c.key(orgID, userID), val, ttl).Err()
}

func (c *MembershipCache) Invalidate(ctx context.Context, orgID, userID uuid.UUID) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Del(ctx, c.key(orgID, userID)).Err()
}
