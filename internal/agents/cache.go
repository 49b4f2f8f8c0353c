package agents

import (
	"context"
	"errors"
	"time"

	"callcenter-analytics/pkg/logger"
	"callcenter-analytics/pkg/utils"

	"github.com/redis/go-redis/v9"
)

const cacheTTL = 15 * time.Minute

// Directory is the lookup surface the cache wraps.
type Directory interface {
	AgentName(ctx context.Context, agentID string) (string, error)
}

// CachedDirectory memoizes agent names in Redis. Cache failures are logged
// and ignored; the inner directory remains the source of truth.
type CachedDirectory struct {
	inner Directory
	rdb   *redis.Client
}

func NewCachedDirectory(inner Directory, rdb *redis.Client) *CachedDirectory {
	return &CachedDirectory{inner: inner, rdb: rdb}
}

func (d *CachedDirectory) AgentName(ctx context.Context, agentID string) (string, error) {
	key := "agents:name:" + agentID

	var cached string
	err := utils.CacheGetJSON(ctx, d.rdb, key, &cached)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, utils.ErrCacheMiss) {
		logger.From(ctx).Warn("agent name cache read failed", "agent_id", agentID, "error", err.Error())
	}

	name, err := d.inner.AgentName(ctx, agentID)
	if err != nil {
		return "", err
	}

	if err := utils.CacheSetJSON(ctx, d.rdb, key, name, cacheTTL); err != nil {
		logger.From(ctx).Warn("agent name cache write failed", "agent_id", agentID, "error", err.Error())
	}
	return name, nil
}
