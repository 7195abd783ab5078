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

package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/maniacs-ops/Chronicle-Engine/internal/remote"
	"github.com/maniacs-ops/Chronicle-Engine/internal/routing"
	"github.com/maniacs-ops/Chronicle-Engine/pkg/core"
)

const sample = `
engine:
  host_id: 1
  port: 8066
  codec: proto
  call_timeout: 2s
hosts:
  - id: 1
    name: self
    url: ws://localhost:8066/engine
  - id: 2
    name: peer
    url: ws://peer:8066/engine
hosting:
  - path: /data
    host: 2
  - path: /data/local
    host: 1
admin:
  enabled: true
  port: 9191
sinks:
  - name: kafka-main
    type: kafka
    enabled: true
    config:
      brokers: "localhost:9092"
      topic: chronicle
taps:
  - path: /data/local/events
    type: string
    type2: string
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sample))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Engine.HostID != 1 {
		t.Fatalf("expected host id 1, got %d", cfg.Engine.HostID)
	}
	if cfg.Engine.Codec != "proto" {
		t.Fatalf("expected proto codec, got %s", cfg.Engine.Codec)
	}
	if cfg.Engine.CallTimeout != 2*time.Second {
		t.Fatalf("expected 2s call timeout, got %s", cfg.Engine.CallTimeout)
	}
	if len(cfg.Hosts) != 2 || len(cfg.ToHosts()) != 2 {
		t.Fatalf("expected 2 hosts, got %d", len(cfg.Hosts))
	}
	if !cfg.Admin.Enabled || cfg.Admin.Port != 9191 {
		t.Fatalf("unexpected admin config: %+v", cfg.Admin)
	}
	if len(cfg.Sinks) != 1 || cfg.Sinks[0].Config["topic"] != "chronicle" {
		t.Fatalf("unexpected sinks: %+v", cfg.Sinks)
	}

	routes := cfg.ToRoutes()
	if len(routes) != 2 {
		t.Fatalf("expected 2 routes, got %d", len(routes))
	}
	if routes[0].Prefix != "/data" || routes[0].Host != 2 {
		t.Fatalf("unexpected route: %+v", routes[0])
	}

	desc := cfg.Taps[0].Descriptor()
	if desc.View != core.CapabilityQueue || desc.Type != core.TagString {
		t.Fatalf("unexpected tap descriptor: %s", desc)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Parse([]byte("engine:\n  host_id: 3\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Engine.Port != defaultPort {
		t.Fatalf("expected default port, got %d", cfg.Engine.Port)
	}
	if cfg.Engine.Codec != "json" {
		t.Fatalf("expected json codec, got %s", cfg.Engine.Codec)
	}
	if cfg.Engine.ReconnectInterval != defaultReconnectInterval {
		t.Fatalf("expected default reconnect interval, got %s", cfg.Engine.ReconnectInterval)
	}
	if cfg.Admin.Enabled {
		t.Fatal("expected admin to be disabled by default")
	}
	if cfg.Relay.Buffer != defaultRelayBuffer {
		t.Fatalf("expected default relay buffer, got %d", cfg.Relay.Buffer)
	}
}

func TestLoadRejectsUnknownHostingHost(t *testing.T) {
	_, err := Parse([]byte("engine:\n  host_id: 1\nhosting:\n  - path: /x\n    host: 7\n"))
	if err == nil {
		t.Fatal("expected error for hosting entry naming an unknown host")
	}
}

func TestLoadRejectsDuplicateHosts(t *testing.T) {
	_, err := Parse([]byte("hosts:\n  - id: 2\n  - id: 2\n"))
	if err == nil {
		t.Fatal("expected error for duplicate host ids")
	}
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

type hostRecorder struct {
	hosts []remote.Host
}

func (h *hostRecorder) SetHosts(hosts []remote.Host) { h.hosts = hosts }

func TestWatcherReload(t *testing.T) {
	path := writeConfig(t, sample)
	table := routing.NewTable(1)
	dir := &hostRecorder{}
	w := NewWatcher(path, table, dir, slog.New(slog.NewTextHandler(io.Discard, nil)))

	if !w.poll() {
		t.Fatal("expected first poll to load the file")
	}
	if table.Len() != 2 {
		t.Fatalf("expected 2 routes, got %d", table.Len())
	}
	if len(dir.hosts) != 2 {
		t.Fatalf("expected 2 hosts, got %d", len(dir.hosts))
	}
	if w.poll() {
		t.Fatal("expected unchanged file to be skipped")
	}

	updated := "engine:\n  host_id: 1\nhosts:\n  - id: 3\n    url: ws://other\nhosting:\n  - path: /moved\n    host: 3\n"
	if err := os.WriteFile(path, []byte(updated), 0644); err != nil {
		t.Fatal(err)
	}
	future := time.Now().Add(time.Minute)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatal(err)
	}

	if !w.poll() {
		t.Fatal("expected changed file to be reloaded")
	}
	if host, isRemote := table.Locate("/moved/q"); !isRemote || host != 3 {
		t.Fatalf("expected /moved to be on host 3, got %d,%v", host, isRemote)
	}
	if _, ok := table.Lookup("/data"); ok {
		t.Fatal("expected old route to be dropped")
	}
}
