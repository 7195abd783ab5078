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

package plugins

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maniacs-ops/Chronicle-Engine/pkg/core"
)

type fakeSink struct {
	name         string
	connectErr   error
	disconnected bool
}

func (f *fakeSink) Name() string                              { return f.name }
func (f *fakeSink) Type() string                              { return "fake" }
func (f *fakeSink) Connect(context.Context) error             { return f.connectErr }
func (f *fakeSink) Disconnect(context.Context) error          { f.disconnected = true; return nil }
func (f *fakeSink) Export(context.Context, core.Record) error { return nil }

type fakeEntrypoint struct {
	name    string
	started chan struct{}
	stopped bool
}

func (f *fakeEntrypoint) Name() string { return f.name }
func (f *fakeEntrypoint) Type() string { return "fake" }
func (f *fakeEntrypoint) Start(ctx context.Context) error {
	close(f.started)
	<-ctx.Done()
	return nil
}
func (f *fakeEntrypoint) Stop(context.Context) error { f.stopped = true; return nil }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestConnectSinksTracksHealth(t *testing.T) {
	r := NewRegistry(quietLogger())
	good := &fakeSink{name: "b-good"}
	other := &fakeSink{name: "a-good"}
	bad := &fakeSink{name: "bad", connectErr: errors.New("refused")}
	r.RegisterSink(good)
	r.RegisterSink(other)
	r.RegisterSink(bad)

	assert.Equal(t, 2, r.ConnectSinks(context.Background()))
	assert.True(t, r.IsSinkHealthy("b-good"))
	assert.False(t, r.IsSinkHealthy("bad"))

	healthy := r.HealthySinks()
	require.Len(t, healthy, 2)
	assert.Equal(t, "a-good", healthy[0].Name())

	r.StopAll(context.Background())
	assert.True(t, good.disconnected)
	assert.False(t, bad.disconnected)
	assert.Empty(t, r.HealthySinks())
}

func TestStartAndStopEntrypoints(t *testing.T) {
	r := NewRegistry(quietLogger())
	ep := &fakeEntrypoint{name: "ws", started: make(chan struct{})}
	r.RegisterEntrypoint(ep)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ep.started
	}()
	r.StartEntrypoints(ctx)
	wg.Wait()

	r.StopAll(context.Background())
	assert.True(t, ep.stopped)
}

func TestTracedSinkDelegates(t *testing.T) {
	inner := &fakeSink{name: "inner"}
	traced := Traced(inner, quietLogger())
	assert.Equal(t, "inner", traced.Name())
	require.NoError(t, traced.Connect(context.Background()))
	require.NoError(t, traced.Export(context.Background(), core.Record{Kind: core.RecordExcerpt}))
	require.NoError(t, traced.Disconnect(context.Background()))
	assert.True(t, inner.disconnected)
}
