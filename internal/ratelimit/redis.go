package ratelimit

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each window as a sorted set of hit timestamps. The
// prune and count run in one pipeline; the append runs in a second one
// and only when the key is under its limit, so a denied caller leaves
// no entry behind and cannot hold its own window full.
type RedisStore struct {
	client *redis.Client
	prefix string
	seq    atomic.Uint64
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "ratelimit:"}
}

func (s *RedisStore) Hit(ctx context.Context, key string, limit int, window time.Duration) (bool, int64, time.Time, error) {
	redisKey := s.prefix + key
	now := time.Now()
	cutoff := strconv.FormatInt(now.Add(-window).UnixNano(), 10)

	pipe := s.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "-inf", cutoff)
	countCmd := pipe.ZCard(ctx, redisKey)
	oldestCmd := pipe.ZRangeWithScores(ctx, redisKey, 0, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, time.Time{}, err
	}

	count := countCmd.Val()
	var oldest time.Time
	if entries := oldestCmd.Val(); len(entries) > 0 {
		oldest = time.Unix(0, int64(entries[0].Score))
	}
	if count >= int64(limit) {
		return false, count, oldest, nil
	}

	// Admitted: record the hit and refresh the expiry, which only needs
	// to outlive the window after the last admitted hit. Two concurrent
	// checks can both read under-limit and both append; the overshoot is
	// at most the number of racing checks and corrects on the next prune.
	member := strconv.FormatInt(now.UnixNano(), 10) + "-" + strconv.FormatUint(s.seq.Add(1), 10)
	add := s.client.TxPipeline()
	add.ZAdd(ctx, redisKey, redis.Z{
		Score:  float64(now.UnixNano()),
		Member: member,
	})
	add.PExpire(ctx, redisKey, window)
	if _, err := add.Exec(ctx); err != nil {
		return false, count, oldest, err
	}

	if oldest.IsZero() {
		oldest = now
	}
	return true, count + 1, oldest, nil
}
