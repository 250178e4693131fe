package session

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the tag -> session id mapping in a Redis hash so sessions
// survive process restarts.
type RedisStore struct {
	rdb *redis.Client
	key string
}

const defaultSessionsKey = "callbridge:sessions"

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb, key: defaultSessionsKey}
}

func (s *RedisStore) Get(ctx context.Context, tag string) (string, bool, error) {
	id, err := s.rdb.HGet(ctx, s.key, tag).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

func (s *RedisStore) Put(ctx context.Context, tag, sessionID string) error {
	// HSetNX keeps the first write; the mapping is immutable once created.
	return s.rdb.HSetNX(ctx, s.key, tag, sessionID).Err()
}
