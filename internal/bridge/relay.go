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

// Package bridge relays what happens in the tree to external sinks.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/maniacs-ops/Chronicle-Engine/internal/metrics"
	"github.com/maniacs-ops/Chronicle-Engine/internal/tree"
	"github.com/maniacs-ops/Chronicle-Engine/pkg/core"
)

const exportTimeout = 5 * time.Second

// SinkSet supplies the sinks a record is exported to.
type SinkSet interface {
	HealthySinks() []core.Sink
}

// Relay buffers records and exports each one to every sink. Offer never
// blocks: when the buffer is full the record is dropped and counted, so a
// slow broker cannot stall a tree writer.
type Relay struct {
	records chan core.Record
	sinks   SinkSet
	logger  *slog.Logger
	metrics *metrics.Metrics
	dropped atomic.Int64

	mu      sync.Mutex
	cancels []func()
}

func NewRelay(buffer int, sinks SinkSet, logger *slog.Logger, m *metrics.Metrics) *Relay {
	if buffer <= 0 {
		buffer = 1
	}
	return &Relay{
		records: make(chan core.Record, buffer),
		sinks:   sinks,
		logger:  logger,
		metrics: m,
	}
}

func (r *Relay) Offer(rec core.Record) {
	select {
	case r.records <- rec:
	default:
		n := r.dropped.Add(1)
		r.metrics.RelayDropped()
		r.logger.Warn("relay buffer full, record dropped",
			"kind", rec.Kind,
			"source", rec.Source,
			"dropped_total", n,
		)
	}
}

func (r *Relay) Dropped() int64 { return r.dropped.Load() }

// Attach subscribes the relay to topology changes under the root and to the
// writes of every tapped view. Taps must name local views that can be
// tailed.
func (r *Relay) Attach(ctx context.Context, t *tree.Tree, taps []core.RequestDescriptor) error {
	cancel, err := t.Subscribe("/", func(ev core.TopologicalEvent) {
		r.Offer(topologyRecord(ev))
	})
	if err != nil {
		return fmt.Errorf("subscribe to root: %w", err)
	}
	r.track(cancel)

	for _, desc := range taps {
		view, err := t.AcquireView(ctx, desc)
		if err != nil {
			return fmt.Errorf("tap %s: %w", desc, err)
		}
		tailer, ok := view.(core.Tailer)
		if !ok {
			return fmt.Errorf("tap %s: %w: view cannot be tailed", desc, core.ErrUnsupportedView)
		}
		r.track(tailer.Tail(r.Offer))
		r.logger.Info("tap attached", "path", desc.Path, "view", string(desc.View))
	}
	return nil
}

func (r *Relay) track(cancel func()) {
	r.mu.Lock()
	r.cancels = append(r.cancels, cancel)
	r.mu.Unlock()
}

// Detach drops every subscription made by Attach.
func (r *Relay) Detach() {
	r.mu.Lock()
	cancels := r.cancels
	r.cancels = nil
	r.mu.Unlock()
	for _, c := range cancels {
		c()
	}
}

// Run exports buffered records until ctx is done.
func (r *Relay) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case rec := <-r.records:
			for _, s := range r.sinks.HealthySinks() {
				r.export(ctx, s, rec)
			}
		}
	}
}

func (r *Relay) export(ctx context.Context, s core.Sink, rec core.Record) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("sink panic recovered", "sink", s.Name(), "error", p)
		}
	}()

	exportCtx, cancel := context.WithTimeout(ctx, exportTimeout)
	defer cancel()

	err := s.Export(exportCtx, rec)
	r.metrics.RelayExported(s.Name(), err)
	if err != nil && ctx.Err() == nil {
		r.logger.Error("export failed",
			"sink", s.Name(),
			"kind", rec.Kind,
			"source", rec.Source,
			"error", err,
		)
	}
}

func topologyRecord(ev core.TopologicalEvent) core.Record {
	payload, _ := json.Marshal(ev)
	return core.Record{
		ID:        uuid.New().String(),
		Kind:      core.RecordTopology,
		Source:    ev.AssetPath,
		Topic:     ev.Name,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}
