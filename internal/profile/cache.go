package profile

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"studylab/internal/practice"
)

const defaultTTL = 10 * time.Minute

// CachedStore decorates an ExperienceStore with a Redis read-through cache.
// Postgres stays the source of truth: cache failures degrade to direct reads
// and are logged, never surfaced to the caller.
type CachedStore struct {
	inner practice.ExperienceStore
	rdb   *redis.Client
	ttl   time.Duration
	log   *slog.Logger
}

func NewCachedStore(inner practice.ExperienceStore, rdb *redis.Client, log *slog.Logger) *CachedStore {
	return &CachedStore{inner: inner, rdb: rdb, ttl: defaultTTL, log: log}
}

func cacheKey(learnerID int64) string {
	return fmt.Sprintf("studylab:xp:%d", learnerID)
}

func (c *CachedStore) Experience(ctx context.Context, learnerID int64) (int, error) {
	key := cacheKey(learnerID)
	if raw, err := c.rdb.Get(ctx, key).Result(); err == nil {
		if xp, convErr := strconv.Atoi(raw); convErr == nil {
			return xp, nil
		}
		// Unparsable entry: drop it and fall through to the store.
		c.rdb.Del(ctx, key)
	} else if err != redis.Nil {
		c.log.Warn("experience cache read failed", "learner_id", learnerID, "error", err)
	}

	xp, err := c.inner.Experience(ctx, learnerID)
	if err != nil {
		return 0, err
	}
	if err := c.rdb.Set(ctx, key, strconv.Itoa(xp), c.ttl).Err(); err != nil {
		c.log.Warn("experience cache fill failed", "learner_id", learnerID, "error", err)
	}
	return xp, nil
}

func (c *CachedStore) SetExperience(ctx context.Context, learnerID int64, xp int) error {
	if err := c.inner.SetExperience(ctx, learnerID, xp); err != nil {
		return err
	}
	if err := c.rdb.Set(ctx, cacheKey(learnerID), strconv.Itoa(xp), c.ttl).Err(); err != nil {
		c.log.Warn("experience cache write failed", "learner_id", learnerID, "error", err)
	}
	return nil
}
