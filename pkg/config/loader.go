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
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/maniacs-ops/Chronicle-Engine/internal/remote"
	"github.com/maniacs-ops/Chronicle-Engine/internal/routing"
	"github.com/maniacs-ops/Chronicle-Engine/pkg/core"
)

const (
	DefaultPath              = "/etc/chronicle/config.yaml"
	defaultPort              = 8066
	defaultAdminPort         = 9090
	defaultCallTimeout       = 10 * time.Second
	defaultReconnectInterval = 5 * time.Second
	defaultRelayBuffer       = 1024
)

type Config struct {
	Engine      EngineConfig       `yaml:"engine"`
	Hosts       []HostConfig       `yaml:"hosts"`
	Hosting     []routing.Route    `yaml:"hosting"`
	Redis       RedisConfig        `yaml:"redis"`
	Admin       AdminConfig        `yaml:"admin"`
	Entrypoints []EntrypointConfig `yaml:"entrypoints"`
	Sinks       []SinkConfig       `yaml:"sinks"`
	Taps        []TapConfig        `yaml:"taps"`
	Relay       RelayConfig        `yaml:"relay"`
}

type EngineConfig struct {
	HostID            int           `yaml:"host_id"`
	Port              int           `yaml:"port"`
	Codec             string        `yaml:"codec"`
	CallTimeout       time.Duration `yaml:"call_timeout"`
	ReconnectInterval time.Duration `yaml:"reconnect_interval"`
	Debug             bool          `yaml:"debug"`
}

type HostConfig struct {
	ID   int    `yaml:"id"`
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// AdminConfig, like every installable feature, is skipped unless enabled.
type AdminConfig struct {
	Enabled bool   `yaml:"enabled"`
	Debug   bool   `yaml:"debug"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

type EntrypointConfig struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
	Port int    `yaml:"port"`
}

type SinkConfig struct {
	Name    string            `yaml:"name"`
	Type    string            `yaml:"type"`
	Enabled bool              `yaml:"enabled"`
	Debug   bool              `yaml:"debug"`
	Config  map[string]string `yaml:"config"`
}

// TapConfig names a local queue or topic whose writes are relayed to sinks.
type TapConfig struct {
	Path  string       `yaml:"path"`
	View  string       `yaml:"view"`
	Type  core.TypeTag `yaml:"type"`
	Type2 core.TypeTag `yaml:"type2"`
}

type RelayConfig struct {
	Buffer int `yaml:"buffer"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Engine.Port == 0 {
		c.Engine.Port = defaultPort
	}
	if c.Engine.Codec == "" {
		c.Engine.Codec = "json"
	}
	if c.Engine.CallTimeout <= 0 {
		c.Engine.CallTimeout = defaultCallTimeout
	}
	if c.Engine.ReconnectInterval <= 0 {
		c.Engine.ReconnectInterval = defaultReconnectInterval
	}
	if c.Admin.Port == 0 {
		c.Admin.Port = defaultAdminPort
	}
	if c.Relay.Buffer <= 0 {
		c.Relay.Buffer = defaultRelayBuffer
	}
	for i := range c.Taps {
		if c.Taps[i].View == "" {
			c.Taps[i].View = string(core.CapabilityQueue)
		}
	}
}

func (c *Config) validate() error {
	if c.Engine.HostID < 0 {
		return fmt.Errorf("engine.host_id must not be negative, got %d", c.Engine.HostID)
	}
	seen := make(map[int]bool, len(c.Hosts))
	for _, h := range c.Hosts {
		if h.ID <= 0 {
			return fmt.Errorf("host %q: id must be positive", h.Name)
		}
		if seen[h.ID] {
			return fmt.Errorf("host id %d listed twice", h.ID)
		}
		seen[h.ID] = true
	}
	for _, r := range c.Hosting {
		if r.Host != c.Engine.HostID && !seen[r.Host] {
			return fmt.Errorf("hosting %s: unknown host %d", r.Prefix, r.Host)
		}
	}
	return nil
}

// ToRoutes returns the hosting section as routing table entries.
func (c *Config) ToRoutes() []*routing.Route {
	routes := make([]*routing.Route, 0, len(c.Hosting))
	for i := range c.Hosting {
		r := c.Hosting[i]
		routes = append(routes, &r)
	}
	return routes
}

func (c *Config) ToHosts() []remote.Host {
	hosts := make([]remote.Host, 0, len(c.Hosts))
	for _, h := range c.Hosts {
		hosts = append(hosts, remote.Host{ID: h.ID, Name: h.Name, URL: h.URL})
	}
	return hosts
}

// Descriptor returns the request that acquires the tapped view.
func (t TapConfig) Descriptor() core.RequestDescriptor {
	return core.Request(t.Path).
		WithView(core.Capability(t.View)).
		WithType(t.Type).
		WithType2(t.Type2)
}
