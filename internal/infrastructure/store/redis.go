package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"brieflybot/internal/ports"
)

const dedupeKey = "brieflybot:dedupe"

// RedisStore persists dedupe cache entries in a Redis hash mapping content
// hash to first-seen unix time.
type RedisStore struct {
	client *redis.Client
}

var _ ports.DedupeStore = (*RedisStore)(nil)

// OpenRedis connects to the given address and verifies it with a short ping.
func OpenRedis(ctx context.Context, addr string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}

	return &RedisStore{client: client}, nil
}

// NewRedisStore wires an existing client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Close releases the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Load returns every persisted entry.
func (s *RedisStore) Load(ctx context.Context) (map[string]time.Time, error) {
	raw, err := s.client.HGetAll(ctx, dedupeKey).Result()
	if err != nil {
		return nil, fmt.Errorf("load dedupe entries: %w", err)
	}

	entries := make(map[string]time.Time, len(raw))
	for hash, value := range raw {
		unix, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			continue
		}
		entries[hash] = time.Unix(unix, 0).UTC()
	}
	return entries, nil
}

// Persist replaces the stored snapshot with the given entries atomically.
func (s *RedisStore) Persist(ctx context.Context, entries map[string]time.Time) error {
	fields := make(map[string]interface{}, len(entries))
	for hash, firstSeen := range entries {
		fields[hash] = strconv.FormatInt(firstSeen.Unix(), 10)
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, dedupeKey)
	if len(fields) > 0 {
		pipe.HSet(ctx, dedupeKey, fields)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("persist dedupe entries: %w", err)
	}
	return nil
}
