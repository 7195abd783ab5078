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

package jms

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Azure/go-amqp"

	"github.com/maniacs-ops/Chronicle-Engine/pkg/core"
)

// Sink sends records to an AMQP 1.0 address, the usual bridge into JMS
// brokers such as ActiveMQ Artemis.
type Sink struct {
	name    string
	url     string
	address string
	logger  *slog.Logger

	mu     sync.Mutex
	conn   *amqp.Conn
	sess   *amqp.Session
	sender *amqp.Sender
}

func New(name string, cfg map[string]string, logger *slog.Logger) *Sink {
	address := cfg["queue"]
	if address == "" {
		address = "chronicle." + name
	}
	return &Sink{
		name:    name,
		url:     cfg["url"],
		address: address,
		logger:  logger,
	}
}

func (s *Sink) Name() string { return s.name }
func (s *Sink) Type() string { return "jms" }

func (s *Sink) Connect(ctx context.Context) error {
	conn, err := amqp.Dial(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("jms dial: %w", err)
	}
	sess, err := conn.NewSession(ctx, nil)
	if err != nil {
		conn.Close()
		return fmt.Errorf("jms send session: %w", err)
	}
	sender, err := sess.NewSender(ctx, s.address, nil)
	if err != nil {
		conn.Close()
		return fmt.Errorf("jms sender: %w", err)
	}

	s.mu.Lock()
	s.conn, s.sess, s.sender = conn, sess, sender
	s.mu.Unlock()

	s.logger.Info("jms sink connected", "name", s.name, "address", s.address)
	return nil
}

func (s *Sink) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sender != nil {
		s.sender.Close(ctx)
		s.sender = nil
	}
	if s.sess != nil {
		s.sess.Close(ctx)
		s.sess = nil
	}
	if s.conn != nil {
		err := s.conn.Close()
		s.conn = nil
		return err
	}
	return nil
}

func (s *Sink) Export(ctx context.Context, rec core.Record) error {
	s.mu.Lock()
	sender := s.sender
	s.mu.Unlock()
	if sender == nil {
		return fmt.Errorf("%w: jms sink %s", core.ErrNotConnected, s.name)
	}
	return sender.Send(ctx, Message(rec), nil)
}

func Message(rec core.Record) *amqp.Message {
	contentType := "application/json"
	created := rec.Timestamp
	subject := rec.Kind
	return &amqp.Message{
		Data: [][]byte{rec.Payload},
		Properties: &amqp.MessageProperties{
			MessageID:    rec.ID,
			ContentType:  &contentType,
			CreationTime: &created,
			Subject:      &subject,
		},
		ApplicationProperties: map[string]any{
			"source": rec.Source,
			"topic":  rec.Topic,
			"index":  rec.Index,
		},
	}
}
