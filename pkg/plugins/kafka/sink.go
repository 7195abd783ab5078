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

package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/segmentio/kafka-go"

	"github.com/maniacs-ops/Chronicle-Engine/pkg/core"
)

// Sink writes every exported record to one kafka topic, keyed by the asset
// path it came from so a path's records stay ordered within a partition.
type Sink struct {
	name    string
	brokers []string
	topic   string
	logger  *slog.Logger

	mu     sync.RWMutex
	writer *kafka.Writer
}

func New(name string, cfg map[string]string, logger *slog.Logger) *Sink {
	var brokers []string
	for _, b := range strings.Split(cfg["brokers"], ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	topic := cfg["topic"]
	if topic == "" {
		topic = "chronicle-" + name
	}
	return &Sink{
		name:    name,
		brokers: brokers,
		topic:   topic,
		logger:  logger,
	}
}

func (s *Sink) Name() string { return s.name }
func (s *Sink) Type() string { return "kafka" }

func (s *Sink) Connect(ctx context.Context) error {
	if len(s.brokers) == 0 {
		return fmt.Errorf("kafka sink %s: no brokers configured", s.name)
	}
	s.mu.Lock()
	s.writer = &kafka.Writer{
		Addr:     kafka.TCP(s.brokers...),
		Topic:    s.topic,
		Balancer: &kafka.Hash{},
	}
	s.mu.Unlock()
	s.logger.Info("kafka sink connected",
		"name", s.name,
		"brokers", strings.Join(s.brokers, ","),
		"topic", s.topic,
	)
	return nil
}

func (s *Sink) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	w := s.writer
	s.writer = nil
	s.mu.Unlock()
	if w != nil {
		return w.Close()
	}
	return nil
}

func (s *Sink) Export(ctx context.Context, rec core.Record) error {
	s.mu.RLock()
	w := s.writer
	s.mu.RUnlock()
	if w == nil {
		return fmt.Errorf("%w: kafka sink %s", core.ErrNotConnected, s.name)
	}
	return w.WriteMessages(ctx, Message(rec))
}

// Message converts a record into the kafka message the sink writes.
func Message(rec core.Record) kafka.Message {
	return kafka.Message{
		Key:   []byte(rec.Source),
		Value: rec.Payload,
		Time:  rec.Timestamp,
		Headers: []kafka.Header{
			{Key: "id", Value: []byte(rec.ID)},
			{Key: "kind", Value: []byte(rec.Kind)},
			{Key: "topic", Value: []byte(rec.Topic)},
			{Key: "index", Value: []byte(strconv.FormatInt(rec.Index, 10))},
		},
	}
}
