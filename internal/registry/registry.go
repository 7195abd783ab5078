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

package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/maniacs-ops/Chronicle-Engine/pkg/core"
)

type Locality int

const (
	Local Locality = iota
	Remote
)

func (l Locality) String() string {
	if l == Remote {
		return "remote"
	}
	return "local"
}

// Key selects a factory. It is also the cache key of a view on an asset.
type Key struct {
	View  core.Capability
	Type  core.TypeTag
	Type2 core.TypeTag
}

func KeyOf(d core.RequestDescriptor) Key {
	return Key{View: d.View, Type: d.Type, Type2: d.Type2}
}

func (k Key) String() string {
	return fmt.Sprintf("%s<%s,%s>", k.View, k.Type, k.Type2)
}

// Factory builds a view for desc. host is the id of the owning peer and is
// only meaningful for remote factories.
type Factory func(ctx context.Context, desc core.RequestDescriptor, host int) (core.View, error)

type entry struct {
	local  Factory
	remote Factory
}

type Registry struct {
	mu        sync.RWMutex
	factories map[Key]*entry
	logger    *slog.Logger
}

func New(logger *slog.Logger) *Registry {
	return &Registry{
		factories: make(map[Key]*entry),
		logger:    logger,
	}
}

// Register installs f for key. Registering the same key and locality twice
// replaces the earlier factory.
func (r *Registry) Register(key Key, loc Locality, f Factory) {
	r.mu.Lock()
	e, ok := r.factories[key]
	if !ok {
		e = &entry{}
		r.factories[key] = e
	}
	if loc == Remote {
		e.remote = f
	} else {
		e.local = f
	}
	r.mu.Unlock()
	r.logger.Debug("registered view factory", "key", key.String(), "locality", loc.String())
}

// Lookup tries the exact key, then the key with its secondary type widened,
// then the capability-wide wildcard.
func (r *Registry) Lookup(key Key, loc Locality) (Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	candidates := []Key{
		key,
		{View: key.View, Type: key.Type, Type2: core.TagAny},
		{View: key.View, Type: core.TagAny, Type2: core.TagAny},
	}
	for _, k := range candidates {
		e, ok := r.factories[k]
		if !ok {
			continue
		}
		f := e.local
		if loc == Remote {
			f = e.remote
		}
		if f != nil {
			return f, nil
		}
	}
	return nil, fmt.Errorf("%w: %s (%s)", core.ErrUnsupportedView, key, loc)
}

func (r *Registry) Keys() []Key {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]Key, 0, len(r.factories))
	for k := range r.factories {
		keys = append(keys, k)
	}
	return keys
}
