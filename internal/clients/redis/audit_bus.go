package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/orgdesk-backend/internal/domain/audit"
	"github.com/yungbote/orgdesk-backend/internal/platform/logger"
)

// AuditBus fans committed audit rows out to downstream consumers.
type AuditBus struct {
	log     *logger.Logger
	rdb     goredis.UniversalClient
	channel string
}

func NewAuditBus(log *logger.Logger, rdb goredis.UniversalClient, cfg Config) *AuditBus {
	ch := strings.TrimSpace(cfg.AuditChannel)
	if ch == "" {
		ch = "audit"
	}
	return &AuditBus{
		log:     log.With("client", "RedisAuditBus"),
		rdb:     rdb,
		channel: ch,
	}
}

func (b *AuditBus) Channel() string { return b.channel }

func (b *AuditBus) PublishAudit(ctx context.Context, row *audit.Log) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis audit bus not initialized")
	}
	if row == nil {
		return nil
	}
	raw, err := json.Marshal(row)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}
