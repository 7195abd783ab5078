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

package solace

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"solace.dev/go/messaging"
	"solace.dev/go/messaging/pkg/solace"
	"solace.dev/go/messaging/pkg/solace/config"
	"solace.dev/go/messaging/pkg/solace/resource"

	"github.com/maniacs-ops/Chronicle-Engine/pkg/core"
)

// Sink publishes records as direct messages on a topic hierarchy that
// mirrors the asset path.
type Sink struct {
	name     string
	host     string
	vpn      string
	username string
	password string
	prefix   string
	logger   *slog.Logger

	mu        sync.Mutex
	service   solace.MessagingService
	publisher solace.DirectMessagePublisher
}

func New(name string, cfg map[string]string, logger *slog.Logger) *Sink {
	prefix := strings.Trim(cfg["topic_prefix"], "/")
	if prefix == "" {
		prefix = "chronicle"
	}
	return &Sink{
		name:     name,
		host:     cfg["host"],
		vpn:      cfg["vpn"],
		username: cfg["username"],
		password: cfg["password"],
		prefix:   prefix,
		logger:   logger,
	}
}

func (s *Sink) Name() string { return s.name }
func (s *Sink) Type() string { return "solace" }

func (s *Sink) Connect(ctx context.Context) error {
	service, err := messaging.NewMessagingServiceBuilder().
		FromConfigurationProvider(config.ServicePropertyMap{
			config.TransportLayerPropertyHost:                s.host,
			config.ServicePropertyVPNName:                    s.vpn,
			config.AuthenticationPropertySchemeBasicUserName: s.username,
			config.AuthenticationPropertySchemeBasicPassword: s.password,
		}).Build()
	if err != nil {
		return fmt.Errorf("solace build: %w", err)
	}
	if err = service.Connect(); err != nil {
		return fmt.Errorf("solace connect: %w", err)
	}

	publisher, err := service.CreateDirectMessagePublisherBuilder().Build()
	if err != nil {
		service.Disconnect()
		return fmt.Errorf("solace publisher build: %w", err)
	}
	if err = publisher.Start(); err != nil {
		service.Disconnect()
		return fmt.Errorf("solace publisher start: %w", err)
	}

	s.mu.Lock()
	s.service, s.publisher = service, publisher
	s.mu.Unlock()

	s.logger.Info("solace sink connected", "name", s.name, "host", s.host)
	return nil
}

func (s *Sink) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.publisher != nil {
		s.publisher.Terminate(5 * time.Second)
		s.publisher = nil
	}
	if s.service != nil {
		err := s.service.Disconnect()
		s.service = nil
		return err
	}
	return nil
}

func (s *Sink) Export(ctx context.Context, rec core.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.publisher == nil {
		return fmt.Errorf("%w: solace sink %s", core.ErrNotConnected, s.name)
	}
	msg, err := s.service.MessageBuilder().
		WithProperty("source", rec.Source).
		WithProperty("kind", rec.Kind).
		WithApplicationMessageID(rec.ID).
		BuildWithByteArrayPayload(rec.Payload)
	if err != nil {
		return fmt.Errorf("solace message: %w", err)
	}
	return s.publisher.Publish(msg, resource.TopicOf(s.Topic(rec)))
}

// Topic is the solace topic a record is published on.
func (s *Sink) Topic(rec core.Record) string {
	return s.prefix + "/" + rec.Kind + "/" + strings.Trim(rec.Source, "/")
}
