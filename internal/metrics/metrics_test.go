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
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maniacs-ops/Chronicle-Engine/internal/registry"
	"github.com/maniacs-ops/Chronicle-Engine/internal/tree"
	"github.com/maniacs-ops/Chronicle-Engine/pkg/core"
)

func TestTrackTree(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	tr := tree.New(registry.New(logger), nil, logger)
	m := New()

	cancel, err := m.TrackTree(tr)
	require.NoError(t, err)
	defer cancel()

	_, err = tr.Resolve("/a/b")
	require.NoError(t, err)
	assert.Equal(t, float64(3), testutil.ToFloat64(m.assets))

	require.NoError(t, tr.Remove("/a"))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.assets))
}

func TestCallOutcomes(t *testing.T) {
	m := New()
	m.ObserveCall("get", time.Now(), nil)
	m.ObserveCall("get", time.Now(), fmt.Errorf("%w: closed", core.ErrNotConnected))
	m.ObserveServed("put", fmt.Errorf("%w: bad arg", core.ErrProtocol))

	assert.Equal(t, float64(1), testutil.ToFloat64(m.proxyCalls.WithLabelValues("get", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.proxyCalls.WithLabelValues("get", "not_connected")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.served.WithLabelValues("put", core.CodeProtocol)))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.True(t, strings.Contains(rec.Body.String(), "chronicle_proxy_calls_total"))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.ObserveCall("get", time.Now(), nil)
	m.ConnectionOpened()
	m.RelayDropped()
	cancel, err := m.TrackTree(nil)
	require.NoError(t, err)
	cancel()
}
