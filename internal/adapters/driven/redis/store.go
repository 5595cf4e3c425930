package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/designpm/designpm-core/internal/core/domain"
	"github.com/designpm/designpm-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.KeyValueStore = (*Store)(nil)

const (
	// Key prefix for stored values
	kvPrefix = "designpm:kv:"

	// Hash of stored key -> accounted size, used for quota checks
	kvSizes = "designpm:kv:sizes"
)

// Store implements driven.KeyValueStore on Redis with a byte quota
// modelled on browser local storage. A key's accounted size is the length
// of its name plus its value.
type Store struct {
	client *redis.Client
	quota  int64
}

// NewStore creates a Redis-backed store. quota <= 0 means unlimited.
func NewStore(client *redis.Client, quota int64) *Store {
	if quota < 0 {
		quota = 0
	}
	return &Store{client: client, quota: quota}
}

// setScript checks the quota and writes atomically.
// KEYS[1] = value key, KEYS[2] = sizes hash
// ARGV[1] = value, ARGV[2] = accounted size, ARGV[3] = quota
var setScript = redis.NewScript(`
	local quota = tonumber(ARGV[3])
	local size = tonumber(ARGV[2])
	if quota > 0 then
		local used = 0
		local sizes = redis.call("hvals", KEYS[2])
		for i = 1, #sizes do
			used = used + tonumber(sizes[i])
		end
		local prev = tonumber(redis.call("hget", KEYS[2], KEYS[1]) or "0")
		if used - prev + size > quota then
			return 0
		end
	end
	redis.call("set", KEYS[1], ARGV[1])
	redis.call("hset", KEYS[2], KEYS[1], size)
	return 1
`)

// Get returns the value stored under key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, kvPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return data, nil
}

// Set stores value under key unless the write would exceed the quota.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	size := int64(len(key) + len(value))
	ok, err := setScript.Run(ctx, s.client, []string{kvPrefix + key, kvSizes}, value, size, s.quota).Int()
	if err != nil {
		if isOutOfMemory(err) {
			return fmt.Errorf("set %s: %w", key, domain.ErrStorageQuotaExceeded)
		}
		return fmt.Errorf("set %s: %w", key, err)
	}
	if ok == 0 {
		return fmt.Errorf("set %s (%d bytes, quota %d): %w", key, size, s.quota, domain.ErrStorageQuotaExceeded)
	}
	return nil
}

// Delete removes keys and their size accounting.
func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = kvPrefix + k
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, full...)
	pipe.HDel(ctx, kvSizes, full...)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return nil
}

// Usage sums the accounted sizes of every stored key.
func (s *Store) Usage(ctx context.Context) (int64, int64, error) {
	vals, err := s.client.HVals(ctx, kvSizes).Result()
	if err != nil {
		return 0, s.quota, fmt.Errorf("usage: %w", err)
	}
	var used int64
	for _, v := range vals {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			continue
		}
		used += n
	}
	return used, s.quota, nil
}

// Ping checks if Redis is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// isOutOfMemory reports whether Redis refused a write under maxmemory.
func isOutOfMemory(err error) bool {
	var rerr redis.Error
	if errors.As(err, &rerr) {
		return strings.HasPrefix(rerr.Error(), "OOM")
	}
	return false
}
