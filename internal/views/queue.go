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

// Queue is an append-only in-memory queue. Indices start at 0 and grow by
// one per publish.
type Queue[T comparable, M any] struct {
	desc core.RequestDescriptor

	mu      sync.RWMutex
	entries []core.Excerpt[T, M]
	cursors map[T]int
	tails   map[uint64]func(core.Record)
	nextTap uint64
}

func NewQueue[T comparable, M any](desc core.RequestDescriptor) *Queue[T, M] {
	return &Queue[T, M]{
		desc:    desc,
		cursors: make(map[T]int),
		tails:   make(map[uint64]func(core.Record)),
	}
}

func (q *Queue[T, M]) Descriptor() core.RequestDescriptor { return q.desc }

func (q *Queue[T, M]) PublishAndIndex(_ context.Context, topic T, message M) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	ex := core.Excerpt[T, M]{Index: int64(len(q.entries)), Topic: topic, Message: message}
	q.entries = append(q.entries, ex)
	if len(q.tails) > 0 {
		rec := excerptRecord(q.desc.Path, ex)
		for _, fn := range q.tails {
			fn(rec)
		}
	}
	return ex.Index, nil
}

func (q *Queue[T, M]) Publish(ctx context.Context, topic T, message M) error {
	_, err := q.PublishAndIndex(ctx, topic, message)
	return err
}

func (q *Queue[T, M]) Get(_ context.Context, index int64) (core.Excerpt[T, M], error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if index < 0 || index >= int64(len(q.entries)) {
		return core.Excerpt[T, M]{}, fmt.Errorf("%w: %s has no index %d", core.ErrNotFound, q.desc.Path, index)
	}
	return q.entries[index], nil
}

// GetNextAtTopic advances this queue's cursor for topic past the returned
// excerpt. The cursor is shared by every reader of the view.
func (q *Queue[T, M]) GetNextAtTopic(_ context.Context, topic T) (core.Excerpt[T, M], error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := q.cursors[topic]; i < len(q.entries); i++ {
		if q.entries[i].Topic == topic {
			q.cursors[topic] = i + 1
			return q.entries[i], nil
		}
	}
	q.cursors[topic] = len(q.entries)
	return core.Excerpt[T, M]{}, fmt.Errorf("%w: no unread excerpt for topic %v on %s", core.ErrNotFound, topic, q.desc.Path)
}

func (q *Queue[T, M]) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.entries)
}

// Tail calls fn with every excerpt published after Tail returns. fn runs
// under the queue lock and must not block.
func (q *Queue[T, M]) Tail(fn func(core.Record)) func() {
	q.mu.Lock()
	q.nextTap++
	id := q.nextTap
	q.tails[id] = fn
	q.mu.Unlock()
	return func() {
		q.mu.Lock()
		delete(q.tails, id)
		q.mu.Unlock()
	}
}

func (q *Queue[T, M]) Dispatch(ctx context.Context, op wire.Op, args []json.RawMessage) (json.RawMessage, error) {
	return wire.DispatchQueue[T, M](ctx, q, op, args)
}

func (q *Queue[T, M]) Close() error {
	q.mu.Lock()
	q.tails = make(map[uint64]func(core.Record))
	q.mu.Unlock()
	return nil
}

func excerptRecord[T, M any](path string, ex core.Excerpt[T, M]) core.Record {
	payload, _ := json.Marshal(ex.Message)
	return core.Record{
		ID:        uuid.New().String(),
		Kind:      core.RecordExcerpt,
		Source:    path,
		Topic:     fmt.Sprint(ex.Topic),
		Index:     ex.Index,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}
