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

package ws

import (
	"context"
	"log/slog"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maniacs-ops/Chronicle-Engine/internal/network"
	"github.com/maniacs-ops/Chronicle-Engine/internal/registry"
	"github.com/maniacs-ops/Chronicle-Engine/internal/remote"
	"github.com/maniacs-ops/Chronicle-Engine/internal/tree"
	"github.com/maniacs-ops/Chronicle-Engine/internal/views"
	"github.com/maniacs-ops/Chronicle-Engine/internal/wire"
	"github.com/maniacs-ops/Chronicle-Engine/pkg/core"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestEntrypointServesEngineConnections(t *testing.T) {
	logger := testLogger()
	reg := registry.New(logger)
	views.RegisterDefaults(reg, nil)
	tr := tree.New(reg, nil, logger)
	mgr := network.NewManager(tr, 2, logger, nil)
	ep := New("engine", 0, remote.NewServer(tr, mgr, logger, nil, nil), logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hs := httptest.NewServer(ep.Handler(ctx))
	defer hs.Close()
	url := "ws" + strings.TrimPrefix(hs.URL, "http") + Path

	conn, err := remote.Dial(ctx, url, 7, wire.JSON{}, logger, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, conn.Remote())

	tracker, err := network.NewTracker(ctx, tr)
	require.NoError(t, err)
	status, known, err := tracker.Status(ctx, 2, 7)
	require.NoError(t, err)
	assert.True(t, known)
	assert.Equal(t, core.StatusConnected, status)

	handlersAtClose := make(chan int, 1)
	conn.OnClose(func() {
		entries, err := tracker.Handlers(context.Background())
		if err != nil {
			handlersAtClose <- -1
			return
		}
		handlersAtClose <- len(entries)
	})

	require.NoError(t, ep.Stop(context.Background()))
	select {
	case <-conn.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("client connection still open after Stop")
	}

	// the registry entry is released before the server closes the socket
	assert.Equal(t, 0, <-handlersAtClose)
	assert.Equal(t, 0, mgr.ActiveCount())
	status, _, err = tracker.Status(ctx, 2, 7)
	require.NoError(t, err)
	assert.Equal(t, core.StatusDisconnected, status)
}

func TestEntrypointRejectsUnknownCodec(t *testing.T) {
	logger := testLogger()
	reg := registry.New(logger)
	tr := tree.New(reg, nil, logger)
	mgr := network.NewManager(tr, 2, logger, nil)
	ep := New("engine", 0, remote.NewServer(tr, mgr, logger, nil, nil), logger)

	hs := httptest.NewServer(ep.Handler(context.Background()))
	defer hs.Close()

	resp, err := hs.Client().Get(hs.URL + Path + "?codec=xml")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, 400, resp.StatusCode)
}
