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

package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maniacs-ops/Chronicle-Engine/internal/metrics"
	"github.com/maniacs-ops/Chronicle-Engine/internal/network"
	"github.com/maniacs-ops/Chronicle-Engine/internal/registry"
	"github.com/maniacs-ops/Chronicle-Engine/internal/remote"
	"github.com/maniacs-ops/Chronicle-Engine/internal/routing"
	"github.com/maniacs-ops/Chronicle-Engine/internal/tree"
	"github.com/maniacs-ops/Chronicle-Engine/internal/views"
	"github.com/maniacs-ops/Chronicle-Engine/internal/wire"
	"github.com/maniacs-ops/Chronicle-Engine/pkg/config"
	"github.com/maniacs-ops/Chronicle-Engine/pkg/core"
)

type fixture struct {
	tree    *tree.Tree
	manager *network.Manager
	server  *Server
	router  *gin.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	hosting := routing.NewTable(1)
	hosting.Add(&routing.Route{Prefix: "/remote", Host: 2})

	reg := registry.New(logger)
	views.RegisterDefaults(reg, nil)
	tr := tree.New(reg, hosting, logger)
	m := metrics.New()
	_, err := m.TrackTree(tr)
	require.NoError(t, err)

	mgr := network.NewManager(tr, 1, logger, m)
	pool := remote.NewPool(1, wire.JSON{}, mgr, logger, nil, m)
	pool.SetHosts([]remote.Host{{ID: 2, Name: "peer", URL: "ws://peer:8066/engine"}})

	tracker, err := network.NewTracker(context.Background(), tr)
	require.NoError(t, err)

	s := New(config.AdminConfig{Enabled: true}, 1, tr, tracker, hosting, pool, m, logger)
	return &fixture{tree: tr, manager: mgr, server: s, router: s.Router()}
}

func (f *fixture) do(method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	w := f.do(http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(1), body["host_id"])
}

func TestTreeEndpoints(t *testing.T) {
	f := newFixture(t)
	_, err := tree.AcquireMap[string, string](context.Background(), f.tree,
		core.Request("/data/users").WithType(core.TagString).WithType2(core.TagString))
	require.NoError(t, err)

	w := f.do(http.MethodGet, "/tree?path=/data")
	require.Equal(t, http.StatusOK, w.Code)
	var asset struct {
		Path     string   `json:"path"`
		Children []string `json:"children"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &asset))
	assert.Equal(t, "/data", asset.Path)
	assert.Equal(t, []string{"users"}, asset.Children)

	w = f.do(http.MethodGet, "/tree?path=/data/users")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "map")

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/tree?path=/missing").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/tree?path=relative").Code)

	assert.Equal(t, http.StatusNoContent, f.do(http.MethodDelete, "/tree?path=/data").Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/tree?path=/data").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodDelete, "/tree?path=/").Code)
}

func TestDeleteReservedTreeRefused(t *testing.T) {
	f := newFixture(t)
	nc, err := f.manager.Open(context.Background(), "sock-1", 2)
	require.NoError(t, err)
	require.NotNil(t, nc)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodDelete, "/tree?path=/proc").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodDelete, "/tree?path="+core.ConnectivityPath).Code)

	w := f.do(http.MethodGet, "/connectivity")
	require.Equal(t, http.StatusOK, w.Code)
	var links []network.Link
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &links))
	require.Len(t, links, 1)
	assert.Equal(t, core.StatusConnected, links[0].Status)
}

func TestFailureStatusCodes(t *testing.T) {
	f := newFixture(t)
	cases := map[error]int{
		fmt.Errorf("%w: /x", core.ErrNotFound):        http.StatusNotFound,
		fmt.Errorf("%w: x", core.ErrInvalidPath):      http.StatusBadRequest,
		fmt.Errorf("%w: /x", core.ErrUnsupportedView): http.StatusBadRequest,
		fmt.Errorf("%w: /x", core.ErrTypeConflict):    http.StatusConflict,
		fmt.Errorf("boom"):                            http.StatusInternalServerError,
	}
	for err, want := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/tree", nil)
		f.server.fail(c, err)
		assert.Equal(t, want, w.Code, err.Error())
	}
}

func TestConnectivityAndHandlers(t *testing.T) {
	f := newFixture(t)
	nc, err := f.manager.Open(context.Background(), "sock-1", 5)
	require.NoError(t, err)
	nc.OnHandlerChanged(core.Handler{Protocol: "engine", Version: 1, Since: time.Now().UTC()})

	w := f.do(http.MethodGet, "/connectivity")
	require.Equal(t, http.StatusOK, w.Code)
	var links []network.Link
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &links))
	require.Len(t, links, 1)
	assert.Equal(t, 5, links[0].Details.RemoteIdentifier)
	assert.Equal(t, core.StatusConnected, links[0].Status)

	w = f.do(http.MethodGet, "/handlers")
	require.Equal(t, http.StatusOK, w.Code)
	var handlers map[string]core.Handler
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &handlers))
	assert.Equal(t, "engine", handlers["sock-1"].Protocol)

	require.NoError(t, f.manager.Close("sock-1"))
	w = f.do(http.MethodGet, "/handlers")
	assert.JSONEq(t, "{}", w.Body.String())
}

func TestHostsAndHosting(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodGet, "/hosts")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[{"id":2,"name":"peer","url":"ws://peer:8066/engine","connected":false}]`, w.Body.String())

	w = f.do(http.MethodGet, "/hosting?path=/remote/q")
	assert.JSONEq(t, `{"path":"/remote/q","host":2,"remote":true}`, w.Body.String())
	w = f.do(http.MethodGet, "/hosting?path=/local")
	assert.JSONEq(t, `{"path":"/local","host":1,"remote":false}`, w.Body.String())
}

func TestMetrics(t *testing.T) {
	f := newFixture(t)
	_, err := f.tree.Resolve("/a/b")
	require.NoError(t, err)

	w := f.do(http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), fmt.Sprintf("chronicle_assets %d", f.tree.Len()))
}
