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
	"time"

	"github.com/maniacs-ops/Chronicle-Engine/internal/tree"
	"github.com/maniacs-ops/Chronicle-Engine/pkg/core"
)

// observeTimeout bounds the bookkeeping writes a context makes, so a slow
// map store cannot stall a connect or disconnect.
const observeTimeout = 2 * time.Second

func connectivityRequest() core.RequestDescriptor {
	return core.Request(core.ConnectivityPath).
		WithType(core.TagConnectionDetails).
		WithType2(core.TagConnectionStatus)
}

func handlersRequest() core.RequestDescriptor {
	return core.Request(core.HandlersPath).
		WithType(core.TagSocketID).
		WithType2(core.TagHandler)
}

// Context is the per-socket view of the engine's connection bookkeeping.
type Context struct {
	socket       core.SocketID
	connectivity core.MapView[core.ConnectionDetails, core.ConnectionStatus]
	handlers     core.MapView[core.SocketID, core.Handler]
	logger       *slog.Logger
}

// NewContext resolves the connectivity map and the handler registry. If
// either cannot be resolved the connection must not be established.
func NewContext(ctx context.Context, t *tree.Tree, socket core.SocketID, logger *slog.Logger) (*Context, error) {
	connectivity, err := tree.AcquireMap[core.ConnectionDetails, core.ConnectionStatus](ctx, t, connectivityRequest())
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", core.ConnectivityPath, err)
	}
	handlers, err := tree.AcquireMap[core.SocketID, core.Handler](ctx, t, handlersRequest())
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", core.HandlersPath, err)
	}
	return &Context{
		socket:       socket,
		connectivity: connectivity,
		handlers:     handlers,
		logger:       logger.With("socket_id", string(socket)),
	}, nil
}

func (c *Context) Socket() core.SocketID { return c.socket }

// OnHandlerChanged records h as the active handler of this socket.
func (c *Context) OnHandlerChanged(h core.Handler) {
	ctx, cancel := context.WithTimeout(context.Background(), observeTimeout)
	defer cancel()
	if err := c.handlers.Put(ctx, c.socket, h); err != nil {
		c.logger.Warn("handler registry update failed", "protocol", h.Protocol, "error", err)
		return
	}
	c.logger.Debug("handler changed", "protocol", h.Protocol, "version", h.Version)
}

// ConnectionListener returns the callbacks the transport layer invokes when
// the link behind this socket comes up or goes down.
func (c *Context) ConnectionListener() core.ConnectionListener {
	return core.ConnectionListener{
		OnConnected: func(localID, remoteID int) {
			c.setStatus(localID, remoteID, core.StatusConnected)
		},
		OnDisconnected: func(localID, remoteID int) {
			c.setStatus(localID, remoteID, core.StatusDisconnected)
		},
	}
}

func (c *Context) setStatus(localID, remoteID int, status core.ConnectionStatus) {
	details := core.ConnectionDetails{LocalIdentifier: localID, RemoteIdentifier: remoteID}
	ctx, cancel := context.WithTimeout(context.Background(), observeTimeout)
	defer cancel()
	if err := c.connectivity.Put(ctx, details, status); err != nil {
		c.logger.Warn("connectivity update failed", "details", details.String(), "status", status.String(), "error", err)
		return
	}
	c.logger.Info("cluster link "+status.String(), "details", details.String())
}

// Close drops this socket from the handler registry. The transport closes
// the socket only after Close returns.
func (c *Context) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), observeTimeout)
	defer cancel()
	if err := c.handlers.Remove(ctx, c.socket); err != nil {
		c.logger.Warn("handler registry cleanup failed", "error", err)
	}
}
