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
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/maniacs-ops/Chronicle-Engine/internal/logging"
	"github.com/maniacs-ops/Chronicle-Engine/internal/metrics"
	"github.com/maniacs-ops/Chronicle-Engine/internal/network"
	"github.com/maniacs-ops/Chronicle-Engine/internal/tree"
	"github.com/maniacs-ops/Chronicle-Engine/internal/wire"
	"github.com/maniacs-ops/Chronicle-Engine/pkg/core"
)

// Protocols a socket moves through. Every accepted socket starts in the
// handshake and is upgraded once the hello exchange succeeds.
const (
	ProtocolHandshake = "handshake"
	ProtocolEngine    = "engine"
)

// Server serves view requests from peers against the local tree.
type Server struct {
	tree     *tree.Tree
	local    int
	manager  *network.Manager
	logger   *slog.Logger
	frameLog *logging.FrameLogger
	metrics  *metrics.Metrics
}

func NewServer(t *tree.Tree, manager *network.Manager, logger *slog.Logger, frameLog *logging.FrameLogger, m *metrics.Metrics) *Server {
	return &Server{
		tree:     t,
		local:    manager.LocalID(),
		manager:  manager,
		logger:   logger,
		frameLog: frameLog,
		metrics:  m,
	}
}

type serverConn struct {
	ws      *websocket.Conn
	codec   wire.Codec
	remote  int
	writeMu sync.Mutex
}

// Serve runs one accepted connection until it closes or ctx is done. The
// socket's handler registry entry is released before the socket is closed.
func (s *Server) Serve(ctx context.Context, ws *websocket.Conn, codec wire.Codec, socket core.SocketID) error {
	sc := &serverConn{ws: ws, codec: codec}
	defer func() {
		if ctx.Err() != nil {
			msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "engine shutting down")
			ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout))
		}
		ws.Close()
	}()

	ws.SetReadDeadline(time.Now().Add(handshakeTimeout))
	hello, err := s.read(sc)
	if err != nil {
		return fmt.Errorf("read hello: %w", err)
	}
	ws.SetReadDeadline(time.Time{})
	if hello.Kind != wire.KindHello {
		return fmt.Errorf("%w: expected hello, got %s", core.ErrProtocol, hello.Kind)
	}
	sc.remote = hello.Host
	logger := s.logger.With("socket_id", string(socket), "remote_id", sc.remote)

	nc, err := s.manager.Open(ctx, socket, sc.remote)
	if err != nil {
		s.write(sc, &wire.Frame{Kind: wire.KindHello, Host: s.local, Version: wire.ProtocolVersion,
			Error: &wire.FrameError{Code: core.CodeOf(err), Message: err.Error()}})
		return err
	}
	defer func() {
		if err := s.manager.Close(socket); err != nil {
			logger.Warn("network context close failed", "error", err)
		}
	}()
	nc.OnHandlerChanged(core.Handler{Protocol: ProtocolHandshake, Version: hello.Version, Codec: codec.Name(), Since: time.Now().UTC()})

	if hello.Version != wire.ProtocolVersion {
		err := fmt.Errorf("%w: peer speaks version %d, want %d", core.ErrProtocol, hello.Version, wire.ProtocolVersion)
		s.write(sc, &wire.Frame{Kind: wire.KindHello, Host: s.local, Version: wire.ProtocolVersion,
			Error: &wire.FrameError{Code: core.CodeProtocol, Message: err.Error()}})
		return err
	}
	if err := s.write(sc, &wire.Frame{Kind: wire.KindHello, Host: s.local, Version: wire.ProtocolVersion}); err != nil {
		return fmt.Errorf("send hello: %w", err)
	}
	nc.OnHandlerChanged(core.Handler{Protocol: ProtocolEngine, Version: wire.ProtocolVersion, Codec: codec.Name(), Since: time.Now().UTC()})
	logger.Info("engine connection established", "codec", codec.Name())

	var inflight sync.WaitGroup
	defer inflight.Wait()

	// Cancellation only unblocks the read loop; the socket stays open until
	// the context above has been released.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			ws.SetReadDeadline(time.Now())
		case <-done:
		}
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) && ctx.Err() == nil {
				logger.Warn("engine connection read error", "error", err)
			}
			return nil
		}

		var req wire.Frame
		if err := codec.Unmarshal(data, &req); err != nil {
			logger.Error("dropping undecodable frame", "size", len(data), "error", err)
			continue
		}
		s.frameLog.Log(&req, sc.remote, "in", len(data))
		if req.Kind != wire.KindRequest {
			logger.Warn("unexpected frame on server connection", "kind", req.Kind)
			continue
		}

		inflight.Add(1)
		go func(req *wire.Frame) {
			defer inflight.Done()
			defer func() {
				if r := recover(); r != nil {
					logger.Error("request panic recovered", "op", req.Op, "path", req.Path, "error", r)
					s.write(sc, wire.Reply(req, nil, fmt.Errorf("panic serving %s", req.Op)))
				}
			}()
			resp := s.handle(ctx, req)
			if err := s.write(sc, resp); err != nil {
				logger.Warn("response write failed", "cid", req.CID, "error", err)
			}
		}(&req)
	}
}

func (s *Server) handle(ctx context.Context, req *wire.Frame) *wire.Frame {
	v, err := s.tree.AcquireView(ctx, req.Descriptor())
	if err != nil {
		s.metrics.ObserveServed(string(req.Op), err)
		return wire.Reply(req, nil, err)
	}
	d, ok := v.(wire.Dispatcher)
	if !ok {
		err := fmt.Errorf("%w: %s is not hosted by engine %d", core.ErrUnsupportedView, req.Path, s.local)
		s.metrics.ObserveServed(string(req.Op), err)
		return wire.Reply(req, nil, err)
	}
	res, err := d.Dispatch(ctx, req.Op, req.Args)
	s.metrics.ObserveServed(string(req.Op), err)
	return wire.Reply(req, res, err)
}

func (s *Server) read(sc *serverConn) (*wire.Frame, error) {
	_, data, err := sc.ws.ReadMessage()
	if err != nil {
		return nil, err
	}
	var f wire.Frame
	if err := sc.codec.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	s.frameLog.Log(&f, sc.remote, "in", len(data))
	return &f, nil
}

func (s *Server) write(sc *serverConn, f *wire.Frame) error {
	data, err := sc.codec.Marshal(f)
	if err != nil {
		return err
	}
	sc.writeMu.Lock()
	defer sc.writeMu.Unlock()
	sc.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := sc.ws.WriteMessage(messageType(sc.codec), data); err != nil {
		return err
	}
	s.frameLog.Log(f, sc.remote, "out", len(data))
	return nil
}
