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

package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/maniacs-ops/Chronicle-Engine/pkg/core"
)

// Sink publishes records to a topic exchange with the record kind and
// asset path as the routing key.
type Sink struct {
	name     string
	url      string
	exchange string
	queue    string
	logger   *slog.Logger

	mu    sync.Mutex
	conn  *amqp.Connection
	pubCh *amqp.Channel
}

func New(name string, cfg map[string]string, logger *slog.Logger) *Sink {
	exchange := cfg["exchange"]
	if exchange == "" {
		exchange = "chronicle"
	}
	return &Sink{
		name:     name,
		url:      cfg["url"],
		exchange: exchange,
		queue:    cfg["queue"],
		logger:   logger,
	}
}

func (s *Sink) Name() string { return s.name }
func (s *Sink) Type() string { return "rabbitmq" }

func (s *Sink) Connect(ctx context.Context) error {
	conn, err := amqp.Dial(s.url)
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("rabbitmq publish channel: %w", err)
	}

	if err := ch.ExchangeDeclare(s.exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		conn.Close()
		return fmt.Errorf("rabbitmq exchange declare %s: %w", s.exchange, err)
	}
	if s.queue != "" {
		if _, err := ch.QueueDeclare(s.queue, true, false, false, false, nil); err != nil {
			conn.Close()
			return fmt.Errorf("rabbitmq queue declare %s: %w", s.queue, err)
		}
		if err := ch.QueueBind(s.queue, "#", s.exchange, false, nil); err != nil {
			conn.Close()
			return fmt.Errorf("rabbitmq queue bind %s: %w", s.queue, err)
		}
	}

	s.mu.Lock()
	s.conn, s.pubCh = conn, ch
	s.mu.Unlock()

	s.logger.Info("rabbitmq sink connected", "name", s.name, "exchange", s.exchange)
	return nil
}

func (s *Sink) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pubCh != nil {
		s.pubCh.Close()
		s.pubCh = nil
	}
	if s.conn != nil {
		err := s.conn.Close()
		s.conn = nil
		return err
	}
	return nil
}

// amqp channels are not safe for concurrent publishes, so Export holds mu.
func (s *Sink) Export(ctx context.Context, rec core.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pubCh == nil {
		return fmt.Errorf("%w: rabbitmq sink %s", core.ErrNotConnected, s.name)
	}
	return s.pubCh.PublishWithContext(ctx,
		s.exchange,
		RoutingKey(rec),
		false,
		false,
		Publishing(rec),
	)
}

// RoutingKey is the record kind followed by the dotted asset path, so
// "/data/orders" tapped as an excerpt routes as "excerpt.data.orders".
func RoutingKey(rec core.Record) string {
	segs := strings.FieldsFunc(rec.Source, func(r rune) bool { return r == '/' })
	return strings.Join(append([]string{rec.Kind}, segs...), ".")
}

func Publishing(rec core.Record) amqp.Publishing {
	return amqp.Publishing{
		ContentType: "application/json",
		Body:        rec.Payload,
		MessageId:   rec.ID,
		Timestamp:   rec.Timestamp,
		Type:        rec.Kind,
		Headers: amqp.Table{
			"source": rec.Source,
			"topic":  rec.Topic,
			"index":  rec.Index,
		},
	}
}
