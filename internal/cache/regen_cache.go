package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RegenCache tracks which subjects have a narrative regeneration in flight.
// This is a best-effort optimization to avoid launching duplicate background
// regenerations; the store's uniqueness constraints remain the correctness
// guarantee. Entries expire on their own so a crashed worker cannot wedge a
// subject.
type RegenCache interface {
	// TryAcquire marks the subject as in flight. Returns false when another
	// regeneration already holds the flag.
	TryAcquire(ctx context.Context, subjectID string) (bool, error)
	Release(ctx context.Context, subjectID string) error
}

type regenCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRegenCache creates a new in-flight regeneration cache
func NewRegenCache(client *redis.Client) RegenCache {
	return &regenCache{
		client: client,
		ttl:    5 * time.Minute,
	}
}

func (c *regenCache) key(subjectID string) string {
	return fmt.Sprintf("subject:%s:regen", subjectID)
}

func (c *regenCache) TryAcquire(ctx context.Context, subjectID string) (bool, error) {
	return c.client.SetNX(ctx, c.key(subjectID), "1", c.ttl).Result()
}

func (c *regenCache) Release(ctx context.Context, subjectID string) error {
	return c.client.Del(ctx, c.key(subjectID)).Err()
}
