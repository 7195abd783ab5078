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
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/maniacs-ops/Chronicle-Engine/internal/logging"
	"github.com/maniacs-ops/Chronicle-Engine/internal/metrics"
	"github.com/maniacs-ops/Chronicle-Engine/internal/network"
	"github.com/maniacs-ops/Chronicle-Engine/internal/wire"
	"github.com/maniacs-ops/Chronicle-Engine/pkg/core"
)

// Host is a peer engine in the cluster directory.
type Host struct {
	ID   int
	Name string
	URL  string
}

// Pool keeps at most one connection per peer host. It re-dials lost hosts
// from Maintain; individual calls are never retried.
type Pool struct {
	local    int
	codec    wire.Codec
	manager  *network.Manager
	logger   *slog.Logger
	frameLog *logging.FrameLogger
	metrics  *metrics.Metrics

	callTimeout time.Duration

	dialMu sync.Mutex
	mu     sync.RWMutex
	hosts  map[int]Host
	conns  map[int]*Conn
}

func NewPool(local int, codec wire.Codec, manager *network.Manager, logger *slog.Logger, frameLog *logging.FrameLogger, m *metrics.Metrics) *Pool {
	return &Pool{
		local:    local,
		codec:    codec,
		manager:  manager,
		logger:   logger,
		frameLog: frameLog,
		metrics:  m,
		hosts:    make(map[int]Host),
		conns:    make(map[int]*Conn),
	}
}

// SetHosts replaces the host directory. Connections to hosts that left the
// directory are closed; the local host is ignored.
func (p *Pool) SetHosts(hosts []Host) {
	next := make(map[int]Host, len(hosts))
	for _, h := range hosts {
		if h.ID == p.local {
			continue
		}
		next[h.ID] = h
	}

	p.mu.Lock()
	var stale []*Conn
	for id, c := range p.conns {
		if h, ok := next[id]; !ok || h.URL != p.hosts[id].URL {
			stale = append(stale, c)
		}
	}
	p.hosts = next
	p.mu.Unlock()

	for _, c := range stale {
		c.Close()
	}
	p.logger.Info("host directory updated", "hosts", len(next))
}

func (p *Pool) Hosts() []Host {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Host, 0, len(p.hosts))
	for _, h := range p.hosts {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (p *Pool) Conn(id int) (*Conn, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	c, ok := p.conns[id]
	return c, ok
}

// Connect returns the live connection to host id, dialing it if needed. A
// dialed link gets a network context like an accepted one; if that context
// cannot be created the link is dropped.
func (p *Pool) Connect(ctx context.Context, id int) (*Conn, error) {
	p.dialMu.Lock()
	defer p.dialMu.Unlock()

	if c, ok := p.Conn(id); ok {
		return c, nil
	}
	p.mu.RLock()
	h, ok := p.hosts[id]
	p.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: host %d is not in the directory", core.ErrNotConnected, id)
	}

	c, err := Dial(ctx, h.URL, p.local, p.codec, p.logger, p.frameLog)
	if err != nil {
		return nil, err
	}
	if c.Remote() != id {
		c.Close()
		return nil, fmt.Errorf("%w: %s answered as host %d, want %d", core.ErrProtocol, h.URL, c.Remote(), id)
	}

	if p.manager != nil {
		socket := core.DialedSocketID(id)
		nc, err := p.manager.Open(ctx, socket, id)
		if err != nil {
			c.Close()
			return nil, err
		}
		nc.OnHandlerChanged(core.Handler{Protocol: ProtocolEngine, Version: wire.ProtocolVersion, Codec: p.codec.Name(), Since: time.Now().UTC()})
		c.OnClose(func() {
			if err := p.manager.Close(socket); err != nil {
				p.logger.Warn("network context close failed", "socket_id", string(socket), "error", err)
			}
		})
	}
	c.OnClose(func() { p.drop(id, c) })

	p.mu.Lock()
	p.conns[id] = c
	p.mu.Unlock()

	p.logger.Info("connected to host", "host_id", id, "name", h.Name, "url", h.URL, "codec", p.codec.Name())
	return c, nil
}

func (p *Pool) drop(id int, c *Conn) {
	p.mu.Lock()
	if p.conns[id] == c {
		delete(p.conns, id)
	}
	p.mu.Unlock()
}

// Maintain dials every disconnected host now and then once per interval
// until ctx is done.
func (p *Pool) Maintain(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		for _, h := range p.Hosts() {
			if _, ok := p.Conn(h.ID); ok {
				continue
			}
			dialCtx, cancel := context.WithTimeout(ctx, interval)
			if _, err := p.Connect(dialCtx, h.ID); err != nil && ctx.Err() == nil {
				p.logger.Warn("host unreachable", "host_id", h.ID, "name", h.Name, "error", err)
			}
			cancel()
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// SetCallTimeout bounds calls whose context carries no deadline of its own.
// Zero leaves such calls unbounded.
func (p *Pool) SetCallTimeout(d time.Duration) {
	p.callTimeout = d
}

// Caller returns a Caller bound to host id. It resolves the live connection
// on every call, so it keeps working across reconnects.
func (p *Pool) Caller(id int) Caller {
	return hostCaller{pool: p, host: id}
}

func (p *Pool) Close() {
	p.mu.Lock()
	conns := make([]*Conn, 0, len(p.conns))
	for _, c := range p.conns {
		conns = append(conns, c)
	}
	p.mu.Unlock()
	for _, c := range conns {
		c.Close()
	}
}

type hostCaller struct {
	pool *Pool
	host int
}

func (h hostCaller) Call(ctx context.Context, req *wire.Frame) (*wire.Frame, error) {
	c, ok := h.pool.Conn(h.host)
	if !ok {
		return nil, fmt.Errorf("%w: host %d", core.ErrNotConnected, h.host)
	}
	if _, ok := ctx.Deadline(); !ok && h.pool.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.pool.callTimeout)
		defer cancel()
	}
	return c.Call(ctx, req)
}
