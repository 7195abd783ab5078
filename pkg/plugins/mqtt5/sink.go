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

package mqtt5

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
	"github.com/google/uuid"

	"github.com/maniacs-ops/Chronicle-Engine/pkg/core"
)

// Sink publishes records under a topic prefix followed by the asset path,
// so subscribers can use MQTT wildcards over the tree.
type Sink struct {
	name      string
	brokerURL string
	prefix    string
	qos       byte
	logger    *slog.Logger

	mu sync.RWMutex
	cm *autopaho.ConnectionManager
}

func New(name string, cfg map[string]string, logger *slog.Logger) *Sink {
	prefix := strings.Trim(cfg["topic_prefix"], "/")
	if prefix == "" {
		prefix = "chronicle"
	}
	var qos byte = 1
	if q, err := strconv.Atoi(cfg["qos"]); err == nil && q >= 0 && q <= 2 {
		qos = byte(q)
	}
	return &Sink{
		name:      name,
		brokerURL: cfg["url"],
		prefix:    prefix,
		qos:       qos,
		logger:    logger,
	}
}

func (s *Sink) Name() string { return s.name }
func (s *Sink) Type() string { return "mqtt5" }

func (s *Sink) Connect(ctx context.Context) error {
	serverURL, err := url.Parse(s.brokerURL)
	if err != nil {
		return fmt.Errorf("mqtt5 invalid URL: %w", err)
	}

	cfg := autopaho.ClientConfig{
		ServerUrls:                    []*url.URL{serverURL},
		KeepAlive:                     30,
		CleanStartOnInitialConnection: true,
		SessionExpiryInterval:         60,
		OnConnectionUp: func(cm *autopaho.ConnectionManager, connAck *paho.Connack) {
			s.logger.Info("mqtt5 connection up", "name", s.name)
		},
		OnConnectError: func(err error) {
			s.logger.Warn("mqtt5 connect attempt failed", "name", s.name, "error", err)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: "chronicle-" + s.name + "-" + uuid.New().String()[:8],
		},
	}

	cm, err := autopaho.NewConnection(ctx, cfg)
	if err != nil {
		return fmt.Errorf("mqtt5 connection: %w", err)
	}
	if err := cm.AwaitConnection(ctx); err != nil {
		return fmt.Errorf("mqtt5 await connection: %w", err)
	}

	s.mu.Lock()
	s.cm = cm
	s.mu.Unlock()

	s.logger.Info("mqtt5 sink connected", "name", s.name, "broker", s.brokerURL)
	return nil
}

func (s *Sink) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	cm := s.cm
	s.cm = nil
	s.mu.Unlock()
	if cm != nil {
		return cm.Disconnect(ctx)
	}
	return nil
}

func (s *Sink) Export(ctx context.Context, rec core.Record) error {
	s.mu.RLock()
	cm := s.cm
	s.mu.RUnlock()
	if cm == nil {
		return fmt.Errorf("%w: mqtt5 sink %s", core.ErrNotConnected, s.name)
	}
	_, err := cm.Publish(ctx, s.publish(rec))
	return err
}

func (s *Sink) publish(rec core.Record) *paho.Publish {
	return &paho.Publish{
		Topic:   s.prefix + "/" + rec.Kind + rec.Source,
		QoS:     s.qos,
		Payload: rec.Payload,
		Properties: &paho.PublishProperties{
			ContentType: "application/json",
			User: paho.UserProperties{
				{Key: "id", Value: rec.ID},
				{Key: "topic", Value: rec.Topic},
				{Key: "index", Value: strconv.FormatInt(rec.Index, 10)},
			},
		},
	}
}
