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
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/maniacs-ops/Chronicle-Engine/internal/remote"
	"github.com/maniacs-ops/Chronicle-Engine/internal/wire"
	"github.com/maniacs-ops/Chronicle-Engine/pkg/core"
)

// Path is where peers and clients open engine connections.
const Path = "/engine"

// Entrypoint accepts engine connections over websocket and hands each one
// to the remote view server.
type Entrypoint struct {
	name     string
	port     int
	upgrader websocket.Upgrader
	engine   *remote.Server
	server   *http.Server
	logger   *slog.Logger
	conns    sync.Map
	wg       sync.WaitGroup
}

func New(name string, port int, engine *remote.Server, logger *slog.Logger) *Entrypoint {
	return &Entrypoint{
		name: name,
		port: port,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		engine: engine,
		logger: logger,
	}
}

func (e *Entrypoint) Name() string { return e.name }
func (e *Entrypoint) Type() string { return "websocket" }

func (e *Entrypoint) Handler(ctx context.Context) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(Path, func(w http.ResponseWriter, r *http.Request) {
		e.handleConnection(ctx, w, r)
	})
	return mux
}

func (e *Entrypoint) Start(ctx context.Context) error {
	e.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", e.port),
		Handler: e.Handler(ctx),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		e.server.Shutdown(shutdownCtx)
	}()

	e.logger.Info("websocket entrypoint starting", "name", e.name, "port", e.port)
	if err := e.server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop ends every live engine connection, waits for their contexts to be
// torn down and shuts the listener. Each socket is closed by its own Serve
// after its handler registry entry is gone.
func (e *Entrypoint) Stop(ctx context.Context) error {
	e.conns.Range(func(_, val any) bool {
		val.(context.CancelFunc)()
		return true
	})

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		e.logger.Warn("engine connections still draining", "name", e.name)
	}

	if e.server != nil {
		return e.server.Shutdown(ctx)
	}
	return nil
}

func (e *Entrypoint) handleConnection(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	codec, err := wire.Lookup(r.URL.Query().Get("codec"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := e.upgrader.Upgrade(w, r, nil)
	if err != nil {
		e.logger.Error("ws upgrade failed", "error", err)
		return
	}

	socket := core.NewSocketID(r)
	connCtx, cancel := context.WithCancel(ctx)
	e.conns.Store(socket, cancel)
	e.wg.Add(1)
	defer func() {
		cancel()
		e.conns.Delete(socket)
		e.wg.Done()
		e.logger.Info("ws peer disconnected", "socket_id", string(socket))
	}()

	e.logger.Info("ws peer connected", "socket_id", string(socket), "codec", codec.Name())
	if err := e.engine.Serve(connCtx, conn, codec, socket); err != nil {
		e.logger.Warn("engine connection ended with error", "socket_id", string(socket), "error", err)
	}
}
