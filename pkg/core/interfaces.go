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

package core

import (
	"context"
	"time"
)

// View is implemented by every object an asset can host.
type View interface {
	Descriptor() RequestDescriptor
}

type MapView[K comparable, V any] interface {
	View
	Get(ctx context.Context, key K) (V, bool, error)
	Put(ctx context.Context, key K, value V) error
	Remove(ctx context.Context, key K) error
	Size(ctx context.Context) (int, error)
	EntrySet(ctx context.Context) ([]Entry[K, V], error)
}

type TopicPublisher[T, M any] interface {
	View
	Publish(ctx context.Context, topic T, message M) error
}

type QueueView[T, M any] interface {
	TopicPublisher[T, M]
	PublishAndIndex(ctx context.Context, topic T, message M) (int64, error)
	// Get returns the excerpt written at index.
	Get(ctx context.Context, index int64) (Excerpt[T, M], error)
	// GetNextAtTopic returns the next excerpt for topic that this view has
	// not yet handed out.
	GetNextAtTopic(ctx context.Context, topic T) (Excerpt[T, M], error)
}

// Tailer is implemented by local views that can stream their writes.
type Tailer interface {
	Tail(fn func(Record)) (cancel func())
}

// Handler describes the protocol handler currently bound to a socket.
type Handler struct {
	Protocol string    `json:"protocol"`
	Version  int       `json:"version"`
	Codec    string    `json:"codec,omitempty"`
	Since    time.Time `json:"since"`
}

// ConnectionListener is handed to the transport layer, which calls it when a
// cluster link comes up or goes down.
type ConnectionListener struct {
	OnConnected    func(localID, remoteID int)
	OnDisconnected func(localID, remoteID int)
}

// Record is a type-erased copy of something that happened in the tree,
// suitable for export to external systems.
type Record struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Source    string    `json:"source"`
	Topic     string    `json:"topic,omitempty"`
	Index     int64     `json:"index,omitempty"`
	Payload   []byte    `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	RecordTopology = "topology"
	RecordExcerpt  = "excerpt"
	RecordMessage  = "message"
)

// Sink exports records to an external broker.
type Sink interface {
	Name() string
	Type() string
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	Export(ctx context.Context, rec Record) error
}

// Entrypoint accepts external connections into the engine.
type Entrypoint interface {
	Name() string
	Type() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
