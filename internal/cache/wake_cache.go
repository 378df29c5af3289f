package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// WakeCache is the durable "wake me at time T" primitive. Entries live in a
// redis ZSET scored by fire time, so pending wakes survive process restarts.
type WakeCache interface {
	Schedule(ctx context.Context, roomCode string, at time.Time) error
	Cancel(ctx context.Context, roomCode string) error
	// PopDue removes and returns every room whose wake time is <= now.
	PopDue(ctx context.Context, now time.Time) ([]string, error)
}

const wakeKey = "room:wakes"

type wakeCache struct {
	client *redis.Client
}

// NewWakeCache creates a redis-backed wake scheduler.
func NewWakeCache(client *redis.Client) WakeCache {
	return &wakeCache{client: client}
}

func (c *wakeCache) Schedule(ctx context.Context, roomCode string, at time.Time) error {
	return c.client.ZAdd(ctx, wakeKey, redis.Z{
		Score:  float64(at.UnixMilli()),
		Member: roomCode,
	}).Err()
}

func (c *wakeCache) Cancel(ctx context.Context, roomCode string) error {
	return c.client.ZRem(ctx, wakeKey, roomCode).Err()
}

func (c *wakeCache) PopDue(ctx context.Context, now time.Time) ([]string, error) {
	max := strconv.FormatInt(now.UnixMilli(), 10)
	codes, err := c.client.ZRangeByScore(ctx, wakeKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: max,
	}).Result()
	if err != nil || len(codes) == 0 {
		return nil, err
	}
	members := make([]interface{}, len(codes))
	for i, code := range codes {
		members[i] = code
	}
	if err := c.client.ZRem(ctx, wakeKey, members...).Err(); err != nil {
		return nil, err
	}
	return codes, nil
}
