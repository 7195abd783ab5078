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

package remote

import (
	"context"
	"fmt"
	"time"

	"github.com/maniacs-ops/Chronicle-Engine/internal/metrics"
	"github.com/maniacs-ops/Chronicle-Engine/internal/wire"
	"github.com/maniacs-ops/Chronicle-Engine/pkg/core"
)

// proxy turns view calls into request frames for the host behind caller.
type proxy struct {
	desc    core.RequestDescriptor
	caller  Caller
	metrics *metrics.Metrics
}

func (p proxy) Descriptor() core.RequestDescriptor { return p.desc }

// invoke performs one round trip and decodes the result into out, which
// may be nil for operations without a result.
func (p proxy) invoke(ctx context.Context, op wire.Op, out any, args ...any) error {
	start := time.Now()
	err := p.roundTrip(ctx, op, out, args...)
	p.metrics.ObserveCall(string(op), start, err)
	return err
}

func (p proxy) roundTrip(ctx context.Context, op wire.Op, out any, args ...any) error {
	req, err := wire.NewRequest(p.desc, op, args...)
	if err != nil {
		return fmt.Errorf("%w: encode %s arguments: %v", core.ErrProtocol, op, err)
	}
	resp, err := p.caller.Call(ctx, req)
	if err != nil {
		return err
	}
	if err := resp.Err(); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return wire.Decode(resp.Result, out)
}

// Map is a map view served by another host.
type Map[K comparable, V any] struct{ proxy }

func NewMap[K comparable, V any](desc core.RequestDescriptor, caller Caller, m *metrics.Metrics) *Map[K, V] {
	return &Map[K, V]{proxy{desc: desc, caller: caller, metrics: m}}
}

func (m *Map[K, V]) Get(ctx context.Context, key K) (V, bool, error) {
	var res wire.MapGetResult[V]
	err := m.invoke(ctx, wire.OpGet, &res, key)
	return res.Value, res.Found, err
}

func (m *Map[K, V]) Put(ctx context.Context, key K, value V) error {
	return m.invoke(ctx, wire.OpPut, nil, key, value)
}

func (m *Map[K, V]) Remove(ctx context.Context, key K) error {
	return m.invoke(ctx, wire.OpRemove, nil, key)
}

func (m *Map[K, V]) Size(ctx context.Context) (int, error) {
	var n int
	err := m.invoke(ctx, wire.OpSize, &n)
	return n, err
}

func (m *Map[K, V]) EntrySet(ctx context.Context) ([]core.Entry[K, V], error) {
	var entries []core.Entry[K, V]
	err := m.invoke(ctx, wire.OpEntrySet, &entries)
	return entries, err
}

// Queue is a queue view served by another host.
type Queue[T, M any] struct{ proxy }

func NewQueue[T, M any](desc core.RequestDescriptor, caller Caller, m *metrics.Metrics) *Queue[T, M] {
	return &Queue[T, M]{proxy{desc: desc, caller: caller, metrics: m}}
}

func (q *Queue[T, M]) PublishAndIndex(ctx context.Context, topic T, message M) (int64, error) {
	var index int64
	err := q.invoke(ctx, wire.OpPublishAndIndex, &index, topic, message)
	return index, err
}

func (q *Queue[T, M]) Publish(ctx context.Context, topic T, message M) error {
	return q.invoke(ctx, wire.OpPublish, nil, topic, message)
}

func (q *Queue[T, M]) Get(ctx context.Context, index int64) (core.Excerpt[T, M], error) {
	var ex core.Excerpt[T, M]
	err := q.GetInto(ctx, index, &ex)
	return ex, err
}

// GetInto decodes the excerpt at index into dst. A worker that reads in a
// loop can keep one dst for its own use; dst must not be shared between
// goroutines.
func (q *Queue[T, M]) GetInto(ctx context.Context, index int64, dst *core.Excerpt[T, M]) error {
	return q.invoke(ctx, wire.OpGetNextAtIndex, dst, index)
}

func (q *Queue[T, M]) GetNextAtTopic(ctx context.Context, topic T) (core.Excerpt[T, M], error) {
	var ex core.Excerpt[T, M]
	err := q.GetNextAtTopicInto(ctx, topic, &ex)
	return ex, err
}

func (q *Queue[T, M]) GetNextAtTopicInto(ctx context.Context, topic T, dst *core.Excerpt[T, M]) error {
	return q.invoke(ctx, wire.OpGetNextAtTopic, dst, topic)
}

// Topic publishes to a topic served by another host. Subscriptions are not
// carried over the wire.
type Topic[T, M any] struct{ proxy }

func NewTopic[T, M any](desc core.RequestDescriptor, caller Caller, m *metrics.Metrics) *Topic[T, M] {
	return &Topic[T, M]{proxy{desc: desc, caller: caller, metrics: m}}
}

func (t *Topic[T, M]) Publish(ctx context.Context, topic T, message M) error {
	return t.invoke(ctx, wire.OpPublish, nil, topic, message)
}
