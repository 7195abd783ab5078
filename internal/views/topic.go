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
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/maniacs-ops/Chronicle-Engine/internal/wire"
	"github.com/maniacs-ops/Chronicle-Engine/pkg/core"
)

// Topic fans published messages out to its subscribers. Nothing is
// retained.
type Topic[T, M any] struct {
	desc core.RequestDescriptor

	mu      sync.RWMutex
	subs    map[uint64]func(topic T, message M)
	nextSub uint64
}

func NewTopic[T, M any](desc core.RequestDescriptor) *Topic[T, M] {
	return &Topic[T, M]{desc: desc, subs: make(map[uint64]func(T, M))}
}

func (t *Topic[T, M]) Descriptor() core.RequestDescriptor { return t.desc }

func (t *Topic[T, M]) Publish(_ context.Context, topic T, message M) error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, fn := range t.subs {
		fn(topic, message)
	}
	return nil
}

func (t *Topic[T, M]) Subscribe(fn func(topic T, message M)) func() {
	t.mu.Lock()
	t.nextSub++
	id := t.nextSub
	t.subs[id] = fn
	t.mu.Unlock()
	return func() {
		t.mu.Lock()
		delete(t.subs, id)
		t.mu.Unlock()
	}
}

func (t *Topic[T, M]) Tail(fn func(core.Record)) func() {
	return t.Subscribe(func(topic T, message M) {
		payload, _ := json.Marshal(message)
		fn(core.Record{
			ID:        uuid.New().String(),
			Kind:      core.RecordMessage,
			Source:    t.desc.Path,
			Topic:     fmt.Sprint(topic),
			Payload:   payload,
			Timestamp: time.Now().UTC(),
		})
	})
}

func (t *Topic[T, M]) Dispatch(ctx context.Context, op wire.Op, args []json.RawMessage) (json.RawMessage, error) {
	return wire.DispatchTopic[T, M](ctx, t, op, args)
}

func (t *Topic[T, M]) Close() error {
	t.mu.Lock()
	t.subs = make(map[uint64]func(T, M))
	t.mu.Unlock()
	return nil
}
