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

package sse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/maniacs-ops/Chronicle-Engine/internal/tree"
	"github.com/maniacs-ops/Chronicle-Engine/pkg/core"
)

const streamBuffer = 64

// Entrypoint streams topological events of a subtree to HTTP clients as
// server-sent events. The subtree is chosen with the path query parameter.
type Entrypoint struct {
	name    string
	port    int
	tree    *tree.Tree
	server  *http.Server
	logger  *slog.Logger
	streams sync.Map
}

func New(name string, port int, t *tree.Tree, logger *slog.Logger) *Entrypoint {
	return &Entrypoint{name: name, port: port, tree: t, logger: logger}
}

func (e *Entrypoint) Name() string { return e.name }
func (e *Entrypoint) Type() string { return "sse" }

func (e *Entrypoint) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/events", e.handleSSE)
	return mux
}

func (e *Entrypoint) Start(ctx context.Context) error {
	e.server = &http.Server{Addr: fmt.Sprintf(":%d", e.port), Handler: e.Handler()}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		e.server.Shutdown(shutdownCtx)
	}()

	e.logger.Info("sse entrypoint starting", "name", e.name, "port", e.port)
	if err := e.server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (e *Entrypoint) Stop(ctx context.Context) error {
	e.streams.Range(func(_, val any) bool {
		val.(context.CancelFunc)()
		return true
	})
	if e.server != nil {
		return e.server.Shutdown(ctx)
	}
	return nil
}

func (e *Entrypoint) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	path := r.URL.Query().Get("path")
	if path == "" {
		path = "/"
	}

	events := make(chan core.TopologicalEvent, streamBuffer)
	clientID := uuid.New().String()
	unsubscribe, err := e.tree.SubscribeExisting(path, func(ev core.TopologicalEvent) {
		select {
		case events <- ev:
		default:
			e.logger.Warn("sse client too slow, event dropped", "client_id", clientID, "path", ev.FullName())
		}
	})
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, core.ErrNotFound) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}
	defer unsubscribe()

	ctx, cancel := context.WithCancel(r.Context())
	e.streams.Store(clientID, cancel)
	defer func() {
		cancel()
		e.streams.Delete(clientID)
		e.logger.Info("sse client disconnected", "client_id", clientID)
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	e.logger.Info("sse client connected", "client_id", clientID, "path", path)

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			data, err := json.Marshal(ev)
			if err != nil {
				e.logger.Error("marshal sse event failed", "error", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\nid: %s\ndata: %s\n\n", ev.Kind, uuid.New().String(), data)
			flusher.Flush()
		}
	}
}
