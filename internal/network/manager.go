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

package network

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/maniacs-ops/Chronicle-Engine/internal/metrics"
	"github.com/maniacs-ops/Chronicle-Engine/internal/tree"
	"github.com/maniacs-ops/Chronicle-Engine/pkg/core"
)

type activeContext struct {
	nc       *Context
	remote   int
	listener core.ConnectionListener
	opened   time.Time
}

// Manager owns the network contexts of every live socket. Two engines may
// hold more than one socket between them; a link is reported down only once
// the last of them closes.
type Manager struct {
	contexts sync.Map
	linksMu  sync.Mutex
	links    map[int]int
	tree     *tree.Tree
	local    int
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

func NewManager(t *tree.Tree, local int, logger *slog.Logger, m *metrics.Metrics) *Manager {
	return &Manager{
		links:   make(map[int]int),
		tree:    t,
		local:   local,
		logger:  logger,
		metrics: m,
	}
}

func (m *Manager) LocalID() int { return m.local }

// Open creates the context for a socket whose peer announced remote as its
// host id. A remote of 0 is a plain client rather than a cluster member and
// is not tracked in the connectivity map.
func (m *Manager) Open(ctx context.Context, socket core.SocketID, remote int) (*Context, error) {
	nc, err := NewContext(ctx, m.tree, socket, m.logger)
	if err != nil {
		return nil, fmt.Errorf("network context for %s: %w", socket, err)
	}

	ac := &activeContext{
		nc:       nc,
		remote:   remote,
		listener: nc.ConnectionListener(),
		opened:   time.Now(),
	}
	if _, loaded := m.contexts.LoadOrStore(socket, ac); loaded {
		return nil, fmt.Errorf("network context for %s already open", socket)
	}

	if remote > 0 {
		m.linksMu.Lock()
		m.links[remote]++
		if m.links[remote] == 1 {
			ac.listener.OnConnected(m.local, remote)
		}
		m.linksMu.Unlock()
	}
	m.metrics.ConnectionOpened()

	m.logger.Info("network context created",
		"socket_id", string(socket),
		"local_id", m.local,
		"remote_id", remote,
	)
	return nc, nil
}

// Close tears down the context of socket: its handler registry entry goes
// first, then the link is reported down.
func (m *Manager) Close(socket core.SocketID) error {
	val, ok := m.contexts.LoadAndDelete(socket)
	if !ok {
		return fmt.Errorf("%w: socket=%s", core.ErrNotFound, socket)
	}

	ac := val.(*activeContext)
	ac.nc.Close()
	if ac.remote > 0 {
		m.linksMu.Lock()
		m.links[ac.remote]--
		if m.links[ac.remote] == 0 {
			delete(m.links, ac.remote)
			ac.listener.OnDisconnected(m.local, ac.remote)
		}
		m.linksMu.Unlock()
	}
	m.metrics.ConnectionClosed()

	m.logger.Info("network context destroyed",
		"socket_id", string(socket),
		"remote_id", ac.remote,
		"uptime", time.Since(ac.opened).String(),
	)
	return nil
}

func (m *Manager) DestroyAll() {
	m.contexts.Range(func(key, _ any) bool {
		_ = m.Close(key.(core.SocketID))
		return true
	})
}

func (m *Manager) ActiveCount() int {
	count := 0
	m.contexts.Range(func(_, _ any) bool {
		count++
		return true
	})
	return count
}

func (m *Manager) Lookup(socket core.SocketID) (*Context, bool) {
	val, ok := m.contexts.Load(socket)
	if !ok {
		return nil, false
	}
	return val.(*activeContext).nc, true
}
