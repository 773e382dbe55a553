package db

import (
	"context"
	"encoding"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Implements the LimitedRedis client struct
// Only suitable for testing and local development
// The value set for the IntCmd or similar results is always 1 regardless of how many records were affected
// Contexts are completely ignored
type MockRedisClient struct {
	store map[string]map[string]any
	lock  sync.RWMutex
}

func NewMockRedisClient() *MockRedisClient {
	return &MockRedisClient{store: map[string]map[string]any{}}
}

// NewMockRedisAdapter creates an adapter backed by an in-memory mock client
func NewMockRedisAdapter(options ...RedisAdapterOption) (*RedisAdapter, error) {
	options = append([]RedisAdapterOption{WithRedisClient(NewMockRedisClient())}, options...)
	return NewRedisAdapter(options...)
}

func convertValuesToMap(values ...any) (map[string]any, error) {
	if len(values)%2 != 0 {
		return map[string]any{}, fmt.Errorf("number of provided values must be even")
	}
	output := map[string]any{}
	for i := 0; i < len(values); i += 2 {
		key, ok := values[i].(string)
		if !ok {
			return map[string]any{}, fmt.Errorf("hash field names must be strings, got %T", values[i])
		}
		output[key] = values[i+1]
	}
	return output, nil
}

func (m *MockRedisClient) HSet(_ context.Context, key string, values ...any) *redis.IntCmd {
	res := redis.IntCmd{}
	val, err := convertValuesToMap(values...)
	if err != nil {
		res.SetErr(err)
		return &res
	}

	m.lock.Lock()
	defer m.lock.Unlock()
	existing, found := m.store[key]
	if !found {
		existing = map[string]any{}
		m.store[key] = existing
	}
	for k, v := range val {
		existing[k] = v
	}
	res.SetVal(1)
	return &res
}

func (m *MockRedisClient) Del(_ context.Context, keys ...string) *redis.IntCmd {
	m.lock.Lock()
	defer m.lock.Unlock()
	for _, k := range keys {
		delete(m.store, k)
	}
	res := redis.IntCmd{}
	res.SetVal(1)
	return &res
}

func (m *MockRedisClient) Ping(_ context.Context) *redis.StatusCmd {
	res := redis.StatusCmd{}
	res.SetVal("PONG")
	return &res
}

func (m *MockRedisClient) HGetAll(_ context.Context, key string) *redis.MapStringStringCmd {
	m.lock.RLock()
	defer m.lock.RUnlock()
	res := redis.MapStringStringCmd{}
	res.SetVal(map[string]string{})
	val, found := m.store[key]
	if !found {
		return &res
	}
	output := map[string]string{}
	for k, v := range val {
		switch typed := v.(type) {
		case string:
			output[k] = typed
		case encoding.TextMarshaler:
			raw, err := typed.MarshalText()
			if err != nil {
				res.SetErr(err)
				return &res
			}
			output[k] = string(raw)
		default:
			output[k] = fmt.Sprint(typed)
		}
	}
	res.SetVal(output)
	return &res
}
