// Copyright (c) 2025, WSO2 LLC. (https://www.wso2.com).
//
// WSO2 LLC. licenses this file to you under the Apache License,
// Version 2.0 (the "License"); you may not use this file except
// in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied. See the License for the
// specific language governing permissions and limitations
// under the License.

package views

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/maniacs-ops/Chronicle-Engine/internal/wire"
	"github.com/maniacs-ops/Chronicle-Engine/pkg/core"
)

const (
	redisMapPrefix = "chronicle:map:"
	redisCloseWait = 5 * time.Second
)

// RedisMap keeps a map view in one redis hash per asset path. Keys and
// values are stored as JSON. The hash lives as long as the view: Close,
// called when the owning asset is removed, deletes it.
type RedisMap[K comparable, V any] struct {
	desc   core.RequestDescriptor
	client redis.UniversalClient
	hash   string
}

func NewRedisMap[K comparable, V any](desc core.RequestDescriptor, client redis.UniversalClient) *RedisMap[K, V] {
	return &RedisMap[K, V]{
		desc:   desc,
		client: client,
		hash:   redisMapPrefix + desc.Path,
	}
}

func (m *RedisMap[K, V]) Descriptor() core.RequestDescriptor { return m.desc }

func (m *RedisMap[K, V]) field(key K) (string, error) {
	b, err := json.Marshal(key)
	if err != nil {
		return "", fmt.Errorf("failed to marshal key: %w", err)
	}
	return string(b), nil
}

func (m *RedisMap[K, V]) Get(ctx context.Context, key K) (V, bool, error) {
	var v V
	f, err := m.field(key)
	if err != nil {
		return v, false, err
	}
	data, err := m.client.HGet(ctx, m.hash, f).Bytes()
	if errors.Is(err, redis.Nil) {
		return v, false, nil
	}
	if err != nil {
		return v, false, fmt.Errorf("redis hget %s: %w", m.hash, err)
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, false, fmt.Errorf("failed to unmarshal value: %w", err)
	}
	return v, true, nil
}

func (m *RedisMap[K, V]) Put(ctx context.Context, key K, value V) error {
	f, err := m.field(key)
	if err != nil {
		return err
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	if err := m.client.HSet(ctx, m.hash, f, data).Err(); err != nil {
		return fmt.Errorf("redis hset %s: %w", m.hash, err)
	}
	return nil
}

func (m *RedisMap[K, V]) Remove(ctx context.Context, key K) error {
	f, err := m.field(key)
	if err != nil {
		return err
	}
	if err := m.client.HDel(ctx, m.hash, f).Err(); err != nil {
		return fmt.Errorf("redis hdel %s: %w", m.hash, err)
	}
	return nil
}

func (m *RedisMap[K, V]) Size(ctx context.Context) (int, error) {
	n, err := m.client.HLen(ctx, m.hash).Result()
	if err != nil {
		return 0, fmt.Errorf("redis hlen %s: %w", m.hash, err)
	}
	return int(n), nil
}

func (m *RedisMap[K, V]) EntrySet(ctx context.Context) ([]core.Entry[K, V], error) {
	all, err := m.client.HGetAll(ctx, m.hash).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall %s: %w", m.hash, err)
	}
	out := make([]core.Entry[K, V], 0, len(all))
	for f, data := range all {
		var e core.Entry[K, V]
		if err := json.Unmarshal([]byte(f), &e.Key); err != nil {
			return nil, fmt.Errorf("failed to unmarshal key %q: %w", f, err)
		}
		if err := json.Unmarshal([]byte(data), &e.Value); err != nil {
			return nil, fmt.Errorf("failed to unmarshal value for %q: %w", f, err)
		}
		out = append(out, e)
	}
	return out, nil
}

func (m *RedisMap[K, V]) Dispatch(ctx context.Context, op wire.Op, args []json.RawMessage) (json.RawMessage, error) {
	return wire.DispatchMap[K, V](ctx, m, op, args)
}

func (m *RedisMap[K, V]) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), redisCloseWait)
	defer cancel()
	if err := m.client.Del(ctx, m.hash).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", m.hash, err)
	}
	return nil
}
