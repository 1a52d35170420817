package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/weiawesome/wes-feed/feed-service/internal/config"
)

const (
	likesCountKeyPrefix   = "feed:likes_count:"
	countVersionKeyPrefix = "feed:likes_count_ver:"
	hotKeyScoresKey       = "feed:hotkey:scores"

	// countVersionTTL bounds how long a version key outlives its last
	// invalidation. It only has to exceed the longest cache fill.
	countVersionTTL = 24 * time.Hour
)

// LikeCountStore caches per-post likes counts and tracks which posts are read
// most often. The database stays authoritative; every entry here is
// disposable.
type LikeCountStore interface {
	GetLikesCount(ctx context.Context, postID int64) (int64, bool, error)
	SetLikesCount(ctx context.Context, postID int64, count int64) error
	CountVersion(ctx context.Context, postID int64) (int64, error)
	SetLikesCountIfVersion(ctx context.Context, postID int64, count, version int64) (bool, error)
	Invalidate(ctx context.Context, postIDs ...int64) error
	RecordAccess(ctx context.Context, postID int64) error
	GetTopHotKeys(ctx context.Context, n int64) ([]int64, error)
	ResetHotKeyScores(ctx context.Context) error
	Close() error
}

// RedisLikeStore implements LikeCountStore backed by Redis.
type RedisLikeStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisLikeStore connects to Redis and verifies the connection.
func NewRedisLikeStore(cfg config.RedisConfig) (*RedisLikeStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisLikeStoreWithClient(client, cfg.CountTTL), nil
}

// NewRedisLikeStoreWithClient wraps an existing client. A ttl of zero keeps
// entries until they are invalidated.
func NewRedisLikeStoreWithClient(client *redis.Client, ttl time.Duration) *RedisLikeStore {
	return &RedisLikeStore{client: client, ttl: ttl}
}

func likesCountKey(postID int64) string {
	return likesCountKeyPrefix + strconv.FormatInt(postID, 10)
}

func countVersionKey(postID int64) string {
	return countVersionKeyPrefix + strconv.FormatInt(postID, 10)
}

// GetLikesCount returns the cached likes count for a post.
// Returns (count, true, nil) on hit, (0, false, nil) on miss, (0, false, err) on error.
func (s *RedisLikeStore) GetLikesCount(ctx context.Context, postID int64) (int64, bool, error) {
	count, err := s.client.Get(ctx, likesCountKey(postID)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("redis get likes count: %w", err)
	}
	return count, true, nil
}

// SetLikesCount stores the likes count for a post.
func (s *RedisLikeStore) SetLikesCount(ctx context.Context, postID int64, count int64) error {
	if err := s.client.Set(ctx, likesCountKey(postID), count, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set likes count: %w", err)
	}
	return nil
}

// CountVersion returns the post's invalidation counter. A missing key reads
// as zero.
func (s *RedisLikeStore) CountVersion(ctx context.Context, postID int64) (int64, error) {
	v, err := s.client.Get(ctx, countVersionKey(postID)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("redis get count version: %w", err)
	}
	return v, nil
}

// setIfVersionScript stores the count only while the version key still
// holds the value read before the database load.
// Returns 1 if stored, 0 if the version moved on.
var setIfVersionScript = redis.NewScript(`
local ver = redis.call("GET", KEYS[2])
if ver == false then
  ver = "0"
end
if ver ~= ARGV[2] then
  return 0
end
local ttl = tonumber(ARGV[3])
if ttl > 0 then
  redis.call("SET", KEYS[1], ARGV[1], "PX", ttl)
else
  redis.call("SET", KEYS[1], ARGV[1])
end
return 1
`)

// SetLikesCountIfVersion stores count unless the post was invalidated after
// version was read. It reports whether the value was stored.
func (s *RedisLikeStore) SetLikesCountIfVersion(ctx context.Context, postID int64, count, version int64) (bool, error) {
	keys := []string{likesCountKey(postID), countVersionKey(postID)}
	stored, err := setIfVersionScript.Run(ctx, s.client, keys, count, version, s.ttl.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("redis set likes count if version: %w", err)
	}
	return stored == 1, nil
}

// Invalidate drops the cached counts of the given posts and bumps their
// versions, so fills that read the database before this call cannot store
// their result. Repeating it is harmless.
func (s *RedisLikeStore) Invalidate(ctx context.Context, postIDs ...int64) error {
	if len(postIDs) == 0 {
		return nil
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range postIDs {
			pipe.Incr(ctx, countVersionKey(id))
			pipe.Expire(ctx, countVersionKey(id), countVersionTTL)
			pipe.Del(ctx, likesCountKey(id))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis invalidate likes count: %w", err)
	}
	return nil
}

// RecordAccess increments the access score for a post in the hot key sorted set.
func (s *RedisLikeStore) RecordAccess(ctx context.Context, postID int64) error {
	err := s.client.ZIncrBy(ctx, hotKeyScoresKey, 1, strconv.FormatInt(postID, 10)).Err()
	if err != nil {
		return fmt.Errorf("redis record access: %w", err)
	}
	return nil
}

// GetTopHotKeys returns the ids of the n most read posts, hottest first.
// Members that do not parse as post ids are skipped.
func (s *RedisLikeStore) GetTopHotKeys(ctx context.Context, n int64) ([]int64, error) {
	if n <= 0 {
		return nil, nil
	}
	members, err := s.client.ZRevRange(ctx, hotKeyScoresKey, 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis get top hot keys: %w", err)
	}

	ids := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ResetHotKeyScores deletes the hot key scores sorted set.
func (s *RedisLikeStore) ResetHotKeyScores(ctx context.Context) error {
	if err := s.client.Del(ctx, hotKeyScoresKey).Err(); err != nil {
		return fmt.Errorf("redis reset hot key scores: %w", err)
	}
	return nil
}

// Close closes the Redis client.
func (s *RedisLikeStore) Close() error {
	return s.client.Close()
}

// Ensure interface is satisfied at compile time.
var _ LikeCountStore = (*RedisLikeStore)(nil)
