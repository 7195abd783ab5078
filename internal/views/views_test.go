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
	"log/slog"
	"os"
	"sort"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maniacs-ops/Chronicle-Engine/internal/registry"
	"github.com/maniacs-ops/Chronicle-Engine/internal/wire"
	"github.com/maniacs-ops/Chronicle-Engine/pkg/core"
)

func TestMapSingleKeyWrites(t *testing.T) {
	ctx := context.Background()
	m := NewMap[core.ConnectionDetails, core.ConnectionStatus](core.Request(core.ConnectivityPath))

	a := core.ConnectionDetails{LocalIdentifier: 1, RemoteIdentifier: 2}
	b := core.ConnectionDetails{LocalIdentifier: 1, RemoteIdentifier: 3}
	require.NoError(t, m.Put(ctx, a, core.StatusConnected))
	require.NoError(t, m.Put(ctx, b, core.StatusConnected))
	require.NoError(t, m.Put(ctx, a, core.StatusDisconnected))

	got, ok, err := m.Get(ctx, a)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, core.StatusDisconnected, got)

	got, _, _ = m.Get(ctx, core.ConnectionDetails{LocalIdentifier: 1, RemoteIdentifier: 3})
	assert.Equal(t, core.StatusConnected, got)

	require.NoError(t, m.Remove(ctx, b))
	n, err := m.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestQueueIndicesAndTopicCursor(t *testing.T) {
	ctx := context.Background()
	q := NewQueue[string, string](core.Request("/q"))

	for i, p := range [][2]string{{"a", "1"}, {"b", "2"}, {"a", "3"}} {
		idx, err := q.PublishAndIndex(ctx, p[0], p[1])
		require.NoError(t, err)
		assert.Equal(t, int64(i), idx)
	}

	ex, err := q.GetNextAtTopic(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "1", ex.Message)
	ex, err = q.GetNextAtTopic(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(2), ex.Index)
	_, err = q.GetNextAtTopic(ctx, "a")
	assert.ErrorIs(t, err, core.ErrNotFound)

	require.NoError(t, q.Publish(ctx, "a", "4"))
	ex, err = q.GetNextAtTopic(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "4", ex.Message)

	_, err = q.Get(ctx, 99)
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = q.Get(ctx, -1)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestQueueTail(t *testing.T) {
	ctx := context.Background()
	q := NewQueue[string, string](core.Request("/tapped"))
	_, _ = q.PublishAndIndex(ctx, "t", "before")

	var got []core.Record
	cancel := q.Tail(func(r core.Record) { got = append(got, r) })
	_, _ = q.PublishAndIndex(ctx, "t", "after")
	cancel()
	_, _ = q.PublishAndIndex(ctx, "t", "ignored")

	require.Len(t, got, 1)
	assert.Equal(t, core.RecordExcerpt, got[0].Kind)
	assert.Equal(t, "/tapped", got[0].Source)
	assert.Equal(t, int64(1), got[0].Index)
	assert.JSONEq(t, `"after"`, string(got[0].Payload))
}

func TestQueueDispatch(t *testing.T) {
	ctx := context.Background()
	q := NewQueue[string, string](core.Request("/data/queue1"))

	args := func(vs ...any) []json.RawMessage {
		out := make([]json.RawMessage, 0, len(vs))
		for _, v := range vs {
			b, _ := json.Marshal(v)
			out = append(out, b)
		}
		return out
	}

	res, err := q.Dispatch(ctx, wire.OpPublishAndIndex, args("topicA", "hello"))
	require.NoError(t, err)
	assert.JSONEq(t, `0`, string(res))

	res, err = q.Dispatch(ctx, wire.OpGetNextAtIndex, args(0))
	require.NoError(t, err)
	var ex core.Excerpt[string, string]
	require.NoError(t, wire.Decode(res, &ex))
	assert.Equal(t, "hello", ex.Message)

	_, err = q.Dispatch(ctx, wire.OpGetNextAtIndex, args("zero"))
	assert.ErrorIs(t, err, core.ErrProtocol)
}

func TestTopicFanOut(t *testing.T) {
	ctx := context.Background()
	tp := NewTopic[string, []byte](core.Request("/events"))

	var first, second []string
	cancel := tp.Subscribe(func(topic string, msg []byte) { first = append(first, topic+"="+string(msg)) })
	tp.Subscribe(func(topic string, msg []byte) { second = append(second, topic) })

	require.NoError(t, tp.Publish(ctx, "x", []byte("1")))
	cancel()
	require.NoError(t, tp.Publish(ctx, "y", []byte("2")))

	assert.Equal(t, []string{"x=1"}, first)
	assert.Equal(t, []string{"x", "y"}, second)

	require.NoError(t, tp.Close())
	require.NoError(t, tp.Publish(ctx, "z", nil))
	assert.Len(t, second, 2)
}

func newRedis(t *testing.T) redis.UniversalClient {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRedisMap(t *testing.T) {
	ctx := context.Background()
	rdb := newRedis(t)
	m := NewRedisMap[core.SocketID, core.Handler](core.Request(core.HandlersPath), rdb)

	_, ok, err := m.Get(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Put(ctx, "s1", core.Handler{Protocol: "engine", Version: 1}))
	require.NoError(t, m.Put(ctx, "s2", core.Handler{Protocol: "handshake", Version: 1}))

	h, ok, err := m.Get(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "engine", h.Protocol)

	entries, err := m.EntrySet(ctx)
	require.NoError(t, err)
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		keys = append(keys, string(e.Key))
	}
	sort.Strings(keys)
	assert.Equal(t, []string{"s1", "s2"}, keys)

	require.NoError(t, m.Remove(ctx, "s1"))
	n, err := m.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// a second view over the same path sees the same hash
	again := NewRedisMap[core.SocketID, core.Handler](core.Request(core.HandlersPath), rdb)
	n, err = again.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, m.Close())
	n, err = again.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestRegisteredMapStoreOption(t *testing.T) {
	ctx := context.Background()
	key := registry.Key{View: core.CapabilityMap, Type: core.TagString, Type2: core.TagString}

	reg := registry.New(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})))
	RegisterDefaults(reg, nil)
	f, err := reg.Lookup(key, registry.Local)
	require.NoError(t, err)

	v, err := f(ctx, core.Request("/plain"), 0)
	require.NoError(t, err)
	assert.IsType(t, &Map[string, string]{}, v)

	_, err = f(ctx, core.Request("/stored").WithOption(core.OptionStore, StoreRedis), 0)
	assert.ErrorIs(t, err, core.ErrUnsupportedView)

	RegisterMap[string, string](reg, core.TagString, core.TagString, newRedis(t))
	f, err = reg.Lookup(key, registry.Local)
	require.NoError(t, err)
	v, err = f(ctx, core.Request("/stored").WithOption(core.OptionStore, StoreRedis), 0)
	require.NoError(t, err)
	assert.IsType(t, &RedisMap[string, string]{}, v)
}
