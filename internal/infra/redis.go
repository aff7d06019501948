package infra

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// NewRedis creates and validates a go-redis client connection.
func NewRedis(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return rdb, nil
}

const (
	activeShiftKeyPrefix = "shift:active:operator:"
	activeShiftTTL       = 24 * time.Hour
)

// ActiveShiftCache maps operator → shift id in Redis. It implements
// service.ActiveShiftCache; entries are hints and expire after a day.
type ActiveShiftCache struct {
	rdb *redis.Client
}

func NewActiveShiftCache(rdb *redis.Client) *ActiveShiftCache {
	return &ActiveShiftCache{rdb: rdb}
}

func (c *ActiveShiftCache) Get(ctx context.Context, operatorID uuid.UUID) (uuid.UUID, bool, error) {
	v, err := c.rdb.Get(ctx, activeShiftKeyPrefix+operatorID.String()).Result()
	if errors.Is(err, redis.Nil) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, err
	}
	id, err := uuid.Parse(v)
	if err != nil {
		// garbage entry; treat as a miss
		return uuid.Nil, false, fmt.Errorf("active shift cache: bad value %q: %w", v, err)
	}
	return id, true, nil
}

func (c *ActiveShiftCache) Set(ctx context.Context, operatorID, shiftID uuid.UUID) error {
	return c.rdb.Set(ctx, activeShiftKeyPrefix+operatorID.String(), shiftID.String(), activeShiftTTL).Err()
}

func (c *ActiveShiftCache) Invalidate(ctx context.Context, operatorID uuid.UUID) error {
	return c.rdb.Del(ctx, activeShiftKeyPrefix+operatorID.String()).Err()
}
