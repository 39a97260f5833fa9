// Package redis caches the newest messages for the home-page chat preview,
// so the preview widget renders without a full fetch.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/edgeee/chathub/chat"
	"github.com/redis/go-redis/v9"
)

// Redis provides the preview cache.
type Redis struct {
	cli *redis.Client
}

// Connect connects to the Redis server and pings it to ensure the
// connection is working.
func Connect(ctx context.Context, addr string) (*Redis, error) {
	cli := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	if err := cli.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Redis{
		cli: cli,
	}, nil
}

const (
	messagePrefix = "chat:messages"
	maxSize       = 20
)

// ListMessages returns the cached messages sorted by created_at ascending.
func (r *Redis) ListMessages(ctx context.Context) ([]chat.Message, error) {
	keys, err := r.cli.ZRangeByScore(ctx, messagePrefix, &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%d", time.Now().UnixNano()),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("zrange: %w", err)
	}

	out := make([]chat.Message, 0, len(keys))
	for _, key := range keys {
		var msg message
		if err := r.cli.HGetAll(ctx, key).Scan(&msg); err != nil {
			return nil, fmt.Errorf("hgetall: %w", err)
		}
		if msg.ID == "" {
			// Hash expired between ZRANGE and HGETALL.
			continue
		}
		out = append(out, msg.ChatMessage())
	}
	return out, nil
}

// InsertMessage adds the message under chat:messages:MESSAGE_ID and scores
// it by created_at in the sorted set, then evicts beyond the cache size.
func (r *Redis) InsertMessage(ctx context.Context, msg chat.Message) error {
	m := fromChat(msg)
	err := r.cli.Watch(ctx, func(tx *redis.Tx) error {
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			key := fmt.Sprintf("%s:%s", messagePrefix, m.ID)
			pipe.HSet(ctx, key, m)
			pipe.ZAdd(ctx, messagePrefix, redis.Z{
				Score:  float64(msg.CreatedAt.UnixNano()),
				Member: key,
			})
			return nil
		})
		return err
	}, m.ID)
	if err != nil {
		return fmt.Errorf("redis insert message: %w", err)
	}

	if err := r.evictOldest(ctx); err != nil {
		return fmt.Errorf("evict oldest: %w", err)
	}
	return nil
}

// DeleteMessage drops a message from the cache. Unknown ids are a no-op.
func (r *Redis) DeleteMessage(ctx context.Context, id string) error {
	key := fmt.Sprintf("%s:%s", messagePrefix, id)
	if err := r.cli.ZRem(ctx, messagePrefix, key).Err(); err != nil {
		return fmt.Errorf("zrem: %w", err)
	}
	if err := r.cli.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("del: %w", err)
	}
	return nil
}

// SetReplyCount rewrites the cached reply count after an update event. Ids
// not in the cache are left alone.
func (r *Redis) SetReplyCount(ctx context.Context, id string, count int) error {
	key := fmt.Sprintf("%s:%s", messagePrefix, id)
	exists, err := r.cli.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("exists: %w", err)
	}
	if exists == 0 {
		return nil
	}
	if err := r.cli.HSet(ctx, key, "reply_count", count).Err(); err != nil {
		return fmt.Errorf("hset: %w", err)
	}
	return nil
}

func (r *Redis) evictOldest(ctx context.Context) error {
	keys, err := r.cli.ZRange(ctx, messagePrefix, 0, int64(-maxSize-1)).Result()
	if err != nil {
		return fmt.Errorf("zrange: %w", err)
	}
	for _, key := range keys {
		_ = r.cli.ZRem(ctx, messagePrefix, key).Err()
		_ = r.cli.Del(ctx, key).Err()
	}
	return nil
}
