package store

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"askbridge/internal/domain"
)

const redisKeyPrefix = "botresp:"

// RedisStore implements domain.TokenStore on Redis, for deployments where
// bot instances don't share a filesystem. Records are kept without a TTL:
// continuation tokens have no defined expiry and are superseded, never
// deleted.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore wraps an existing Redis client.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func redisKey(tenantID, messageTS string) string {
	return fmt.Sprintf("%s%s:%s", redisKeyPrefix, tenantID, messageTS)
}

// GetContinuationToken returns the token recorded for a bot message, or ""
// when no record exists.
func (s *RedisStore) GetContinuationToken(ctx context.Context, tenantID, messageTS string) (string, error) {
	token, err := s.rdb.Get(ctx, redisKey(tenantID, messageTS)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: redis lookup: %v", domain.ErrStorageUnavailable, err)
	}
	return token, nil
}

// StoreMessage records a posted bot message and its token.
func (s *RedisStore) StoreMessage(ctx context.Context, rec domain.BotResponseRecord) error {
	if err := s.rdb.Set(ctx, redisKey(rec.TenantID, rec.MessageTS), rec.Token, 0).Err(); err != nil {
		return fmt.Errorf("%w: redis set: %v", domain.ErrStorageUnavailable, err)
	}
	return nil
}
