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
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/maniacs-ops/Chronicle-Engine/internal/logging"
	"github.com/maniacs-ops/Chronicle-Engine/internal/wire"
	"github.com/maniacs-ops/Chronicle-Engine/pkg/core"
)

const (
	writeTimeout     = 10 * time.Second
	handshakeTimeout = 10 * time.Second
)

var errClosed = errors.New("closed by local engine")

// Caller sends a request frame and waits for its response.
type Caller interface {
	Call(ctx context.Context, req *wire.Frame) (*wire.Frame, error)
}

// Conn is the dialing side of one engine connection. Calls are correlated
// by id, so any number of goroutines may have calls in flight.
type Conn struct {
	ws       *websocket.Conn
	codec    wire.Codec
	local    int
	remote   int
	logger   *slog.Logger
	frameLog *logging.FrameLogger

	nextCID atomic.Uint64
	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[uint64]chan *wire.Frame
	onClose []func()

	closed    chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// Dial connects to the engine at rawURL and performs the hello exchange.
func Dial(ctx context.Context, rawURL string, local int, codec wire.Codec, logger *slog.Logger, frameLog *logging.FrameLogger) (*Conn, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid engine url %q: %w", rawURL, err)
	}
	q := u.Query()
	q.Set("codec", codec.Name())
	u.RawQuery = q.Encode()

	ws, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", core.ErrNotConnected, rawURL, err)
	}

	c := &Conn{
		ws:       ws,
		codec:    codec,
		local:    local,
		logger:   logger,
		frameLog: frameLog,
		pending:  make(map[uint64]chan *wire.Frame),
		closed:   make(chan struct{}),
	}
	if err := c.handshake(ctx); err != nil {
		ws.Close()
		return nil, err
	}
	c.logger = logger.With("remote_id", c.remote)

	go c.readLoop()
	return c, nil
}

func (c *Conn) handshake(ctx context.Context) error {
	if err := c.write(&wire.Frame{Kind: wire.KindHello, Host: c.local, Version: wire.ProtocolVersion}); err != nil {
		return fmt.Errorf("%w: send hello: %v", core.ErrNotConnected, err)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(handshakeTimeout)
	}
	c.ws.SetReadDeadline(deadline)
	defer c.ws.SetReadDeadline(time.Time{})

	resp, err := c.read()
	if err != nil {
		return fmt.Errorf("%w: read hello: %v", core.ErrNotConnected, err)
	}
	if resp.Kind != wire.KindHello {
		return fmt.Errorf("%w: expected hello, got %s", core.ErrProtocol, resp.Kind)
	}
	if err := resp.Err(); err != nil {
		return err
	}
	if resp.Version != wire.ProtocolVersion {
		return fmt.Errorf("%w: peer speaks version %d, want %d", core.ErrProtocol, resp.Version, wire.ProtocolVersion)
	}
	c.remote = resp.Host
	return nil
}

func (c *Conn) Local() int            { return c.local }
func (c *Conn) Remote() int           { return c.remote }
func (c *Conn) Codec() wire.Codec     { return c.codec }
func (c *Conn) Done() <-chan struct{} { return c.closed }

// OnClose registers fn to run once when the connection shuts down, before
// the socket is closed.
func (c *Conn) OnClose(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-c.closed:
		go fn()
	default:
		c.onClose = append(c.onClose, fn)
	}
}

// Call sends req and blocks until its response arrives. It never retries: a
// closed connection fails with ErrNotConnected, and a connection that drops
// or a ctx that expires while waiting fails with ErrConnectionLost.
func (c *Conn) Call(ctx context.Context, req *wire.Frame) (*wire.Frame, error) {
	cid := c.nextCID.Add(1)
	req.CID = cid
	data, err := c.codec.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("%w: encode %s %s: %v", core.ErrProtocol, req.Op, req.Path, err)
	}
	ch := make(chan *wire.Frame, 1)

	c.mu.Lock()
	if c.pending == nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: host %d", core.ErrNotConnected, c.remote)
	}
	c.pending[cid] = ch
	c.mu.Unlock()
	defer c.forget(cid)

	if err := c.send(req, data); err != nil {
		c.shutdown(err)
		return nil, fmt.Errorf("%w: write to host %d: %v", core.ErrConnectionLost, c.remote, err)
	}

	select {
	case resp := <-ch:
		return resp, nil
	case <-c.closed:
		select {
		case resp := <-ch:
			return resp, nil
		default:
		}
		return nil, fmt.Errorf("%w: host %d: %v", core.ErrConnectionLost, c.remote, c.closeErr)
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: host %d: %v", core.ErrConnectionLost, c.remote, ctx.Err())
	}
}

func (c *Conn) forget(cid uint64) {
	c.mu.Lock()
	if c.pending != nil {
		delete(c.pending, cid)
	}
	c.mu.Unlock()
}

func (c *Conn) readLoop() {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("engine connection read error", "error", err)
			}
			c.shutdown(err)
			return
		}

		var f wire.Frame
		if err := c.codec.Unmarshal(data, &f); err != nil {
			c.logger.Error("dropping undecodable frame", "size", len(data), "error", err)
			continue
		}
		c.frameLog.Log(&f, c.remote, "in", len(data))
		if f.Kind != wire.KindResponse {
			c.logger.Warn("unexpected frame on client connection", "kind", f.Kind)
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[f.CID]
		c.mu.Unlock()
		if !ok {
			c.logger.Debug("response for abandoned call", "cid", f.CID)
			continue
		}
		ch <- &f
	}
}

func (c *Conn) read() (*wire.Frame, error) {
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return nil, err
	}
	var f wire.Frame
	if err := c.codec.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	c.frameLog.Log(&f, c.remote, "in", len(data))
	return &f, nil
}

func (c *Conn) write(f *wire.Frame) error {
	data, err := c.codec.Marshal(f)
	if err != nil {
		return err
	}
	return c.send(f, data)
}

// send writes an encoded frame. Any error it returns is a socket failure.
func (c *Conn) send(f *wire.Frame, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.ws.WriteMessage(messageType(c.codec), data); err != nil {
		return err
	}
	c.frameLog.Log(f, c.remote, "out", len(data))
	return nil
}

// Close shuts the connection down. Calls still waiting fail with
// ErrConnectionLost.
func (c *Conn) Close() error {
	c.writeMu.Lock()
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()
	c.shutdown(errClosed)
	return nil
}

func (c *Conn) shutdown(cause error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closeErr = cause
		c.pending = nil
		hooks := c.onClose
		c.onClose = nil
		close(c.closed)
		c.mu.Unlock()

		for _, fn := range hooks {
			fn()
		}
		c.ws.Close()
		c.logger.Info("engine connection closed", "cause", cause)
	})
}

func messageType(c wire.Codec) int {
	if c.Binary() {
		return websocket.BinaryMessage
	}
	return websocket.TextMessage
}
