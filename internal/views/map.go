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
	"sync"

	"github.com/maniacs-ops/Chronicle-Engine/internal/wire"
	"github.com/maniacs-ops/Chronicle-Engine/pkg/core"
)

// Map is an in-memory map view. Every write touches a single key.
type Map[K comparable, V any] struct {
	desc core.RequestDescriptor
	mu   sync.RWMutex
	data map[K]V
}

func NewMap[K comparable, V any](desc core.RequestDescriptor) *Map[K, V] {
	return &Map[K, V]{desc: desc, data: make(map[K]V)}
}

func (m *Map[K, V]) Descriptor() core.RequestDescriptor { return m.desc }

func (m *Map[K, V]) Get(_ context.Context, key K) (V, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *Map[K, V]) Put(_ context.Context, key K, value V) error {
	m.mu.Lock()
	m.data[key] = value
	m.mu.Unlock()
	return nil
}

func (m *Map[K, V]) Remove(_ context.Context, key K) error {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
	return nil
}

func (m *Map[K, V]) Size(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data), nil
}

func (m *Map[K, V]) EntrySet(_ context.Context) ([]core.Entry[K, V], error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]core.Entry[K, V], 0, len(m.data))
	for k, v := range m.data {
		out = append(out, core.Entry[K, V]{Key: k, Value: v})
	}
	return out, nil
}

func (m *Map[K, V]) Dispatch(ctx context.Context, op wire.Op, args []json.RawMessage) (json.RawMessage, error) {
	return wire.DispatchMap[K, V](ctx, m, op, args)
}

func (m *Map[K, V]) Close() error {
	m.mu.Lock()
	m.data = make(map[K]V)
	m.mu.Unlock()
	return nil
}
