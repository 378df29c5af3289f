package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// LeaderboardCache mirrors cumulative player scores per room in a redis
// ZSET so the REST API can serve standings without touching the room actor.
type LeaderboardCache interface {
	UpdateScore(ctx context.Context, roomCode, playerID string, score int) error
	SetName(ctx context.Context, roomCode, playerID, name string) error
	GetTop(ctx context.Context, roomCode string, limit int) ([]LeaderboardEntry, error)
	Wipe(ctx context.Context, roomCode string) error
}

// LeaderboardEntry is a single standings row.
type LeaderboardEntry struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Score    int    `json:"score"`
	Rank     int    `json:"rank"`
}

type leaderboardCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewLeaderboardCache creates a redis-backed leaderboard.
func NewLeaderboardCache(client *redis.Client) LeaderboardCache {
	return &leaderboardCache{
		client: client,
		ttl:    24 * time.Hour, // Matches the room inactivity bound
	}
}

func (c *leaderboardCache) key(roomCode string) string {
	return fmt.Sprintf("room:%s:lb", roomCode)
}

func (c *leaderboardCache) namesKey(roomCode string) string {
	return fmt.Sprintf("room:%s:names", roomCode)
}

func (c *leaderboardCache) UpdateScore(ctx context.Context, roomCode, playerID string, score int) error {
	key := c.key(roomCode)
	if err := c.client.ZAdd(ctx, key, redis.Z{
		Score:  float64(score),
		Member: playerID,
	}).Err(); err != nil {
		return err
	}
	return c.client.Expire(ctx, key, c.ttl).Err()
}

func (c *leaderboardCache) SetName(ctx context.Context, roomCode, playerID, name string) error {
	key := c.namesKey(roomCode)
	if err := c.client.HSet(ctx, key, playerID, name).Err(); err != nil {
		return err
	}
	return c.client.Expire(ctx, key, c.ttl).Err()
}

func (c *leaderboardCache) GetTop(ctx context.Context, roomCode string, limit int) ([]LeaderboardEntry, error) {
	results, err := c.client.ZRevRangeWithScores(ctx, c.key(roomCode), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	names, err := c.client.HGetAll(ctx, c.namesKey(roomCode)).Result()
	if err != nil && err != redis.Nil {
		return nil, err
	}

	entries := make([]LeaderboardEntry, len(results))
	for i, z := range results {
		id := z.Member.(string)
		entries[i] = LeaderboardEntry{
			PlayerID: id,
			Name:     names[id],
			Score:    int(z.Score),
			Rank:     i + 1,
		}
	}
	return entries, nil
}

func (c *leaderboardCache) Wipe(ctx context.Context, roomCode string) error {
	return c.client.Del(ctx, c.key(roomCode), c.namesKey(roomCode)).Err()
}
