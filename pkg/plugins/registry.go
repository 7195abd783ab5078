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
	"log/slog"
	"sort"
	"sync"

	"github.com/maniacs-ops/Chronicle-Engine/pkg/core"
)

// Registry holds the configured entrypoints and sinks and tracks which sinks
// connected successfully.
type Registry struct {
	entrypoints map[string]core.Entrypoint
	sinks       map[string]core.Sink
	healthy     map[string]bool
	logger      *slog.Logger
	mu          sync.RWMutex
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		entrypoints: make(map[string]core.Entrypoint),
		sinks:       make(map[string]core.Sink),
		healthy:     make(map[string]bool),
		logger:      logger,
	}
}

func (r *Registry) RegisterEntrypoint(e core.Entrypoint) {
	r.mu.Lock()
	r.entrypoints[e.Name()] = e
	r.mu.Unlock()
	r.logger.Info("registered entrypoint", "name", e.Name(), "type", e.Type())
}

func (r *Registry) RegisterSink(s core.Sink) {
	r.mu.Lock()
	r.sinks[s.Name()] = s
	r.mu.Unlock()
	r.logger.Info("registered sink", "name", s.Name(), "type", s.Type())
}

func (r *Registry) Entrypoints() map[string]core.Entrypoint {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cp := make(map[string]core.Entrypoint, len(r.entrypoints))
	for k, v := range r.entrypoints {
		cp[k] = v
	}
	return cp
}

// HealthySinks returns the sinks that connected, ordered by name.
func (r *Registry) HealthySinks() []core.Sink {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.Sink, 0, len(r.sinks))
	for name, s := range r.sinks {
		if r.healthy[name] {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// ConnectSinks connects every sink. A sink that fails stays registered but
// receives no records.
func (r *Registry) ConnectSinks(ctx context.Context) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	connected := 0
	for name, s := range r.sinks {
		if err := s.Connect(ctx); err != nil {
			r.logger.Error("sink connect failed", "name", name, "error", err)
			r.healthy[name] = false
		} else {
			r.healthy[name] = true
			connected++
		}
	}
	return connected
}

func (r *Registry) IsSinkHealthy(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.healthy[name]
}

func (r *Registry) StartEntrypoints(ctx context.Context) {
	for name, ep := range r.Entrypoints() {
		go func(n string, e core.Entrypoint) {
			if err := e.Start(ctx); err != nil {
				r.logger.Error("entrypoint failed", "name", n, "error", err)
			}
		}(name, ep)
	}
}

func (r *Registry) StopAll(ctx context.Context) {
	for name, ep := range r.Entrypoints() {
		r.logger.Info("stopping entrypoint", "name", name)
		if err := ep.Stop(ctx); err != nil {
			r.logger.Warn("entrypoint stop failed", "name", name, "error", err)
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, s := range r.sinks {
		if !r.healthy[name] {
			continue
		}
		r.logger.Info("stopping sink", "name", name)
		if err := s.Disconnect(ctx); err != nil {
			r.logger.Warn("sink disconnect failed", "name", name, "error", err)
		}
		r.healthy[name] = false
	}
}
