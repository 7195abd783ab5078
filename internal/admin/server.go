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

// Package admin serves a read-mostly HTTP view of the engine: the tree,
// cluster connectivity, the host directory and metrics.
package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/maniacs-ops/Chronicle-Engine/internal/metrics"
	"github.com/maniacs-ops/Chronicle-Engine/internal/network"
	"github.com/maniacs-ops/Chronicle-Engine/internal/remote"
	"github.com/maniacs-ops/Chronicle-Engine/internal/routing"
	"github.com/maniacs-ops/Chronicle-Engine/internal/tree"
	"github.com/maniacs-ops/Chronicle-Engine/pkg/config"
	"github.com/maniacs-ops/Chronicle-Engine/pkg/core"
)

type Server struct {
	cfg     config.AdminConfig
	hostID  int
	tree    *tree.Tree
	tracker *network.Tracker
	hosting *routing.Table
	pool    *remote.Pool
	metrics *metrics.Metrics
	logger  *slog.Logger
	server  *http.Server
}

func New(cfg config.AdminConfig, hostID int, t *tree.Tree, tracker *network.Tracker, hosting *routing.Table, pool *remote.Pool, m *metrics.Metrics, logger *slog.Logger) *Server {
	return &Server{
		cfg:     cfg,
		hostID:  hostID,
		tree:    t,
		tracker: tracker,
		hosting: hosting,
		pool:    pool,
		metrics: m,
		logger:  logger,
	}
}

func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	if s.cfg.Debug {
		router.Use(gin.Logger())
	}

	router.GET("/healthz", s.health)
	router.GET("/tree", s.getAsset)
	router.DELETE("/tree", s.removeAsset)
	router.GET("/connectivity", s.connectivity)
	router.GET("/handlers", s.handlers)
	router.GET("/hosts", s.hosts)
	router.GET("/hosting", s.locate)
	router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	return router
}

// Install starts the admin listener when the feature is enabled. It returns
// once the listener is running or has failed.
func (s *Server) Install(errorCallback func(err error)) {
	if !s.cfg.Enabled {
		s.logger.Info("admin service disabled")
		return
	}
	if !s.cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	s.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler: s.Router(),
	}
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errorCallback(err)
		}
	}()
	s.logger.Info("admin service started", "addr", s.server.Addr)
}

func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("admin server forced to shutdown: %w", err)
	}
	s.server = nil
	return nil
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"host_id": s.hostID,
		"assets":  s.tree.Len(),
	})
}

func (s *Server) getAsset(c *gin.Context) {
	a, err := s.tree.Lookup(c.DefaultQuery("path", "/"))
	if err != nil {
		s.fail(c, err)
		return
	}
	keys := a.ViewKeys()
	views := make([]string, 0, len(keys))
	for _, k := range keys {
		views = append(views, k.String())
	}
	c.JSON(http.StatusOK, gin.H{
		"id":       a.ID(),
		"path":     a.Path(),
		"children": a.Children(),
		"views":    views,
	})
}

func (s *Server) removeAsset(c *gin.Context) {
	if err := s.tree.Remove(c.Query("path")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) connectivity(c *gin.Context) {
	links, err := s.tracker.Links(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, links)
}

func (s *Server) handlers(c *gin.Context) {
	entries, err := s.tracker.Handlers(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	out := make(map[core.SocketID]core.Handler, len(entries))
	for _, e := range entries {
		out[e.Key] = e.Value
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) hosts(c *gin.Context) {
	hosts := s.pool.Hosts()
	out := make([]gin.H, 0, len(hosts))
	for _, h := range hosts {
		_, connected := s.pool.Conn(h.ID)
		out = append(out, gin.H{
			"id":        h.ID,
			"name":      h.Name,
			"url":       h.URL,
			"connected": connected,
		})
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) locate(c *gin.Context) {
	path := c.DefaultQuery("path", "/")
	host, remote := s.hosting.Locate(path)
	if !remote {
		host = s.hostID
	}
	c.JSON(http.StatusOK, gin.H{
		"path":   path,
		"host":   host,
		"remote": remote,
	})
}

func (s *Server) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, core.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, core.ErrInvalidPath), errors.Is(err, core.ErrUnsupportedView):
		status = http.StatusBadRequest
	case errors.Is(err, core.ErrTypeConflict):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("admin request failed", "path", c.Request.URL.Path, "error", err)
	}
	c.JSON(status, gin.H{"code": core.CodeOf(err), "message": err.Error()})
}
