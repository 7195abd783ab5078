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
	"fmt"
	"strings"
)

// Capability names the operation surface a view exposes.
type Capability string

const (
	CapabilityMap            Capability = "map"
	CapabilityQueue          Capability = "queue"
	CapabilityTopicPublisher Capability = "topic-publisher"
)

// TypeTag names a parameter type of a view. Views are selected by tag, so
// peers only have to agree on the tag text.
type TypeTag string

const (
	TagAny               TypeTag = ""
	TagString            TypeTag = "string"
	TagInt64             TypeTag = "int64"
	TagBytes             TypeTag = "bytes"
	TagConnectionDetails TypeTag = "ConnectionDetails"
	TagConnectionStatus  TypeTag = "ConnectionStatus"
	TagSocketID          TypeTag = "SocketID"
	TagHandler           TypeTag = "Handler"
)

// Engine-reserved paths. They are resolved before any connection is served.
const (
	ConnectivityPath = "/proc/connections/cluster/connectivity"
	HandlersPath     = "/proc/connections/handlers"
)

const (
	OptionExclusive = "exclusive"
	OptionStore     = "store"
)

// RequestDescriptor describes a view acquisition. It is a value type; the
// With* methods return modified copies and never touch the receiver.
type RequestDescriptor struct {
	Path    string
	Type    TypeTag
	Type2   TypeTag
	View    Capability
	options map[string]string
}

func Request(path string) RequestDescriptor {
	return RequestDescriptor{Path: path}
}

func (d RequestDescriptor) WithType(t TypeTag) RequestDescriptor {
	d.Type = t
	return d
}

func (d RequestDescriptor) WithType2(t TypeTag) RequestDescriptor {
	d.Type2 = t
	return d
}

func (d RequestDescriptor) WithView(c Capability) RequestDescriptor {
	d.View = c
	return d
}

func (d RequestDescriptor) WithOption(key, value string) RequestDescriptor {
	opts := make(map[string]string, len(d.options)+1)
	for k, v := range d.options {
		opts[k] = v
	}
	opts[key] = value
	d.options = opts
	return d
}

// Option returns the named option or "" when absent.
func (d RequestDescriptor) Option(key string) string {
	return d.options[key]
}

func (d RequestDescriptor) Options() map[string]string {
	cp := make(map[string]string, len(d.options))
	for k, v := range d.options {
		cp[k] = v
	}
	return cp
}

func (d RequestDescriptor) Exclusive() bool {
	return d.options[OptionExclusive] == "true"
}

func (d RequestDescriptor) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s?view=%s&type=%s", d.Path, d.View, d.Type)
	if d.Type2 != TagAny {
		fmt.Fprintf(&b, "&type2=%s", d.Type2)
	}
	return b.String()
}

// Excerpt is one indexed entry read from a queue.
type Excerpt[T, M any] struct {
	Index   int64 `json:"index"`
	Topic   T     `json:"topic"`
	Message M     `json:"message"`
}

// Entry is a single key/value pair of a map view.
type Entry[K, V any] struct {
	Key   K `json:"key"`
	Value V `json:"value"`
}

// ConnectionDetails identifies one cluster link.
type ConnectionDetails struct {
	LocalIdentifier  int `json:"localIdentifier"`
	RemoteIdentifier int `json:"remoteIdentifier"`
}

func (c ConnectionDetails) String() string {
	return fmt.Sprintf("localId=%d, remoteId=%d", c.LocalIdentifier, c.RemoteIdentifier)
}

type ConnectionStatus int

const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnected
)

func (s ConnectionStatus) String() string {
	if s == StatusConnected {
		return "CONNECTED"
	}
	return "DISCONNECTED"
}

func (s ConnectionStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *ConnectionStatus) UnmarshalText(text []byte) error {
	switch string(text) {
	case "CONNECTED":
		*s = StatusConnected
	case "DISCONNECTED":
		*s = StatusDisconnected
	default:
		return fmt.Errorf("%w: unknown connection status %q", ErrProtocol, text)
	}
	return nil
}

type TopologyKind int

const (
	TopologyAdded TopologyKind = iota
	TopologyRemoved
)

func (k TopologyKind) String() string {
	if k == TopologyRemoved {
		return "removed"
	}
	return "added"
}

func (k TopologyKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *TopologyKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "added":
		*k = TopologyAdded
	case "removed":
		*k = TopologyRemoved
	default:
		return fmt.Errorf("%w: unknown topology kind %q", ErrProtocol, text)
	}
	return nil
}

// TopologicalEvent reports that Name was added to or removed from the asset
// at AssetPath.
type TopologicalEvent struct {
	Kind      TopologyKind `json:"kind"`
	AssetPath string       `json:"assetPath"`
	Name      string       `json:"name"`
}

func (e TopologicalEvent) Added() bool { return e.Kind == TopologyAdded }

// FullName is the path of the node the event is about.
func (e TopologicalEvent) FullName() string {
	if e.AssetPath == "/" {
		return "/" + e.Name
	}
	return e.AssetPath + "/" + e.Name
}

// NodeID is the identity of one asset incarnation.
type NodeID string

// SocketID is the identity of one accepted or dialed connection.
type SocketID string
