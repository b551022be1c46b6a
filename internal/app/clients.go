package app

import (
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/orgdesk-backend/internal/clients/redis"
	"github.com/yungbote/orgdesk-backend/internal/data/db"
	"github.com/yungbote/orgdesk-backend/internal/platform/logger"
)

type Clients struct {
	Postgres *db.PostgresService

	// Redis and the types built on it stay nil when REDIS_ADDR is unset.
	Redis           *goredis.Client
	MembershipCache *redis.MembershipCache
	AuditBus        *redis.AuditBus
}

func wireClients(log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")

	// Postgres
	pg, err := db.NewPostgresService(log, cfg.Postgres())
	if err != nil {
		return Clients{}, fmt.Errorf("init postgres: %w", err)
	}
	out := Clients{Postgres: pg}

	// Redis
	rcfg := cfg.Redis()
	if rcfg.Enabled() {
		rdb, err := redis.NewClient(log, rcfg)
		if err != nil {
			_ = pg.Close()
			return Clients{}, fmt.Errorf("init redis: %w", err)
		}
		out.Redis = rdb
		out.MembershipCache = redis.NewMembershipCache(log, rdb, rcfg)
		out.AuditBus = redis.NewAuditBus(log, rdb, rcfg)
	} else {
		log.Info("REDIS_ADDR not set; membership cache and audit fan-out disabled")
	}
	return out, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
	if c.Postgres != nil {
		_ = c.Postgres.Close()
	}
}
