package calls

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"
)

// RedisBindingStore keeps call bindings as JSON values in a Redis hash keyed
// by call id. FindBySession scans the hash; volume is one call per agent, so
// a secondary index is not worth its consistency bookkeeping yet.
type RedisBindingStore struct {
	rdb *redis.Client
	key string
}

const defaultBindingsKey = "callbridge:bindings"

func NewRedisBindingStore(rdb *redis.Client) *RedisBindingStore {
	return &RedisBindingStore{rdb: rdb, key: defaultBindingsKey}
}

func (s *RedisBindingStore) Put(ctx context.Context, b Binding) error {
	raw, err := json.Marshal(b)
	if err != nil {
		return err
	}
	return s.rdb.HSet(ctx, s.key, b.CallID, raw).Err()
}

func (s *RedisBindingStore) Get(ctx context.Context, callID string) (Binding, bool, error) {
	raw, err := s.rdb.HGet(ctx, s.key, callID).Result()
	if errors.Is(err, redis.Nil) {
		return Binding{}, false, nil
	}
	if err != nil {
		return Binding{}, false, err
	}
	var b Binding
	if err := json.Unmarshal([]byte(raw), &b); err != nil {
		return Binding{}, false, err
	}
	return b, true, nil
}

func (s *RedisBindingStore) Delete(ctx context.Context, callID string) error {
	return s.rdb.HDel(ctx, s.key, callID).Err()
}

func (s *RedisBindingStore) FindBySession(ctx context.Context, sessionID string) (Binding, bool, error) {
	all, err := s.rdb.HGetAll(ctx, s.key).Result()
	if err != nil {
		return Binding{}, false, err
	}
	for _, raw := range all {
		var b Binding
		if err := json.Unmarshal([]byte(raw), &b); err != nil {
			return Binding{}, false, err
		}
		if b.SessionID == sessionID {
			return b, true, nil
		}
	}
	return Binding{}, false, nil
}
