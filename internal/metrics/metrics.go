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

package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/maniacs-ops/Chronicle-Engine/internal/tree"
	"github.com/maniacs-ops/Chronicle-Engine/pkg/core"
)

// Metrics holds the engine's collectors. All methods accept a nil receiver
// so components can run without instrumentation.
type Metrics struct {
	registry *prometheus.Registry

	proxyCalls    *prometheus.CounterVec
	proxyLatency  *prometheus.HistogramVec
	served        *prometheus.CounterVec
	connections   prometheus.Gauge
	assets        prometheus.Gauge
	relayDropped  prometheus.Counter
	relayExported *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		proxyCalls: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chronicle_proxy_calls_total",
			Help: "Remote view calls by operation and outcome.",
		}, []string{"op", "outcome"}),
		proxyLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "chronicle_proxy_call_seconds",
			Help:    "Round trip time of remote view calls.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"op"}),
		served: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chronicle_requests_served_total",
			Help: "Requests served for remote peers by operation and result code.",
		}, []string{"op", "code"}),
		connections: f.NewGauge(prometheus.GaugeOpts{
			Name: "chronicle_connections",
			Help: "Live engine connections.",
		}),
		assets: f.NewGauge(prometheus.GaugeOpts{
			Name: "chronicle_assets",
			Help: "Assets in the tree, root included.",
		}),
		relayDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "chronicle_relay_dropped_total",
			Help: "Records dropped because the relay buffer was full.",
		}),
		relayExported: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chronicle_relay_exported_total",
			Help: "Records handed to sinks by sink and outcome.",
		}, []string{"sink", "outcome"}),
	}
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveCall(op string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.proxyLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	m.proxyCalls.WithLabelValues(op, outcome(err)).Inc()
}

func (m *Metrics) ObserveServed(op string, err error) {
	if m == nil {
		return
	}
	code := "OK"
	if err != nil {
		code = core.CodeOf(err)
	}
	m.served.WithLabelValues(op, code).Inc()
}

func (m *Metrics) ConnectionOpened() {
	if m != nil {
		m.connections.Inc()
	}
}

func (m *Metrics) ConnectionClosed() {
	if m != nil {
		m.connections.Dec()
	}
}

func (m *Metrics) RelayDropped() {
	if m != nil {
		m.relayDropped.Inc()
	}
}

func (m *Metrics) RelayExported(sink string, err error) {
	if m == nil {
		return
	}
	m.relayExported.WithLabelValues(sink, outcome(err)).Inc()
}

// TrackTree keeps the asset gauge in step with t.
func (m *Metrics) TrackTree(t *tree.Tree) (cancel func(), err error) {
	if m == nil {
		return func() {}, nil
	}
	m.assets.Set(float64(t.Len()))
	return t.Subscribe("/", func(ev core.TopologicalEvent) {
		if ev.Added() {
			m.assets.Inc()
		} else {
			m.assets.Dec()
		}
	})
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, core.ErrNotConnected):
		return "not_connected"
	case errors.Is(err, core.ErrConnectionLost):
		return "connection_lost"
	case errors.Is(err, core.ErrProtocol):
		return "protocol_error"
	default:
		return "error"
	}
}
