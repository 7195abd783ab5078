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

package bridge

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maniacs-ops/Chronicle-Engine/internal/metrics"
	"github.com/maniacs-ops/Chronicle-Engine/internal/registry"
	"github.com/maniacs-ops/Chronicle-Engine/internal/tree"
	"github.com/maniacs-ops/Chronicle-Engine/internal/views"
	"github.com/maniacs-ops/Chronicle-Engine/pkg/core"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type captureSink struct {
	name  string
	fail  bool
	panic bool

	mu      sync.Mutex
	records []core.Record
}

func (c *captureSink) Name() string                     { return c.name }
func (c *captureSink) Type() string                     { return "capture" }
func (c *captureSink) Connect(context.Context) error    { return nil }
func (c *captureSink) Disconnect(context.Context) error { return nil }

func (c *captureSink) Export(_ context.Context, rec core.Record) error {
	if c.panic {
		panic("sink exploded")
	}
	if c.fail {
		return errors.New("broker down")
	}
	c.mu.Lock()
	c.records = append(c.records, rec)
	c.mu.Unlock()
	return nil
}

func (c *captureSink) kinds() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.records))
	for _, r := range c.records {
		out = append(out, r.Kind+" "+r.Source)
	}
	return out
}

type sinkList []core.Sink

func (s sinkList) HealthySinks() []core.Sink { return s }

func newTree() *tree.Tree {
	reg := registry.New(testLogger())
	views.RegisterDefaults(reg, nil)
	return tree.New(reg, nil, testLogger())
}

func TestRelayExportsTopologyAndTaps(t *testing.T) {
	tr := newTree()
	good := &captureSink{name: "good"}
	exploding := &captureSink{name: "exploding", panic: true}
	failing := &captureSink{name: "failing", fail: true}
	m := metrics.New()
	relay := NewRelay(64, sinkList{exploding, failing, good}, testLogger(), m)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tap := core.Request("/data/events").
		WithView(core.CapabilityQueue).
		WithType(core.TagString).
		WithType2(core.TagString)
	require.NoError(t, relay.Attach(ctx, tr, []core.RequestDescriptor{tap}))
	defer relay.Detach()
	go relay.Run(ctx)

	q, err := tree.AcquireQueue[string, string](ctx, tr, tap)
	require.NoError(t, err)
	_, err = q.PublishAndIndex(ctx, "orders", "created")
	require.NoError(t, err)
	_, err = tr.Resolve("/data/other")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(good.kinds()) == 4
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{
		"topology /",
		"topology /data",
		"excerpt /data/events",
		"topology /data",
	}, good.kinds())

	// good/ok and failing/error; a panicking sink records nothing.
	series, err := testutil.GatherAndCount(m.Registry(), "chronicle_relay_exported_total")
	require.NoError(t, err)
	assert.Equal(t, 2, series)
}

func TestRelayRejectsUntailableTap(t *testing.T) {
	tr := newTree()
	relay := NewRelay(1, sinkList{}, testLogger(), nil)

	tap := core.Request("/data/m").
		WithView(core.CapabilityMap).
		WithType(core.TagString).
		WithType2(core.TagString)
	err := relay.Attach(context.Background(), tr, []core.RequestDescriptor{tap})
	assert.ErrorIs(t, err, core.ErrUnsupportedView)
}

func TestRelayDropsWhenFull(t *testing.T) {
	relay := NewRelay(1, sinkList{}, testLogger(), nil)
	relay.Offer(core.Record{Kind: core.RecordMessage})
	relay.Offer(core.Record{Kind: core.RecordMessage})
	relay.Offer(core.Record{Kind: core.RecordMessage})
	assert.Equal(t, int64(2), relay.Dropped())
}
