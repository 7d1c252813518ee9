package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/talentfold/pulse/internal/model"
)

// ProfileCache is the Redis read cache in front of the aggregate-profile rows.
// Mongo stays the source of truth; the cache is refreshed on every recompute
// and expires on its own otherwise.
type ProfileCache interface {
	Get(ctx context.Context, subjectID string) (*model.AggregateProfile, error)
	Set(ctx context.Context, profile *model.AggregateProfile) error
	Invalidate(ctx context.Context, subjectID string) error
}

type profileCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewProfileCache creates a new aggregate-profile cache
func NewProfileCache(client *redis.Client) ProfileCache {
	return &profileCache{
		client: client,
		ttl:    1 * time.Hour,
	}
}

func (c *profileCache) key(subjectID string) string {
	return fmt.Sprintf("subject:%s:profile", subjectID)
}

func (c *profileCache) Get(ctx context.Context, subjectID string) (*model.AggregateProfile, error) {
	data, err := c.client.Get(ctx, c.key(subjectID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var profile model.AggregateProfile
	if err := json.Unmarshal([]byte(data), &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

func (c *profileCache) Set(ctx context.Context, profile *model.AggregateProfile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(profile.SubjectID), data, c.ttl).Err()
}

func (c *profileCache) Invalidate(ctx context.Context, subjectID string) error {
	return c.client.Del(ctx, c.key(subjectID)).Err()
}
