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

package tree

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/maniacs-ops/Chronicle-Engine/internal/registry"
	"github.com/maniacs-ops/Chronicle-Engine/pkg/core"
)

// viewEntry is a view slot. The creator closes ready once view or err is
// set; every other caller waits on it.
type viewEntry struct {
	ready chan struct{}
	view  core.View
	err   error
}

// Asset is a node of the tree. Each asset guards its own children and view
// slots; there is no lock spanning the tree.
type Asset struct {
	tree   *Tree
	id     core.NodeID
	parent core.NodeID
	name   string
	path   string

	mu        sync.Mutex
	children  map[string]*Asset
	views     map[registry.Key]*viewEntry
	exclusive *registry.Key
	removed   bool

	// emitMu is taken before mu is released whenever a mutation emits an
	// event, so listeners see this node's mutations in order.
	emitMu sync.Mutex

	subsMu sync.RWMutex
	subs   map[uint64]func(core.TopologicalEvent)
}

func (a *Asset) ID() core.NodeID { return a.id }
func (a *Asset) Name() string    { return a.name }
func (a *Asset) Path() string    { return a.path }

// Parent returns the parent asset, or nil for the root and for assets whose
// parent has already left the node table.
func (a *Asset) Parent() *Asset {
	if a.parent == "" {
		return nil
	}
	return a.tree.node(a.parent)
}

func (a *Asset) Removed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.removed
}

// Children returns the child names in lexical order.
func (a *Asset) Children() []string {
	a.mu.Lock()
	names := make([]string, 0, len(a.children))
	for name := range a.children {
		names = append(names, name)
	}
	a.mu.Unlock()
	sort.Strings(names)
	return names
}

func (a *Asset) Child(name string) (*Asset, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	c, ok := a.children[name]
	return c, ok
}

// ViewKeys lists the keys of views that finished construction.
func (a *Asset) ViewKeys() []registry.Key {
	a.mu.Lock()
	defer a.mu.Unlock()
	keys := make([]registry.Key, 0, len(a.views))
	for k, e := range a.views {
		select {
		case <-e.ready:
			if e.err == nil {
				keys = append(keys, k)
			}
		default:
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}

// acquireView returns the view cached for desc on this asset, building it
// with build on first use. Concurrent callers for the same key share one
// build; a failed build leaves the slot empty so a later call can retry.
func (a *Asset) acquireView(ctx context.Context, desc core.RequestDescriptor, build func() (core.View, error)) (core.View, error) {
	key := registry.KeyOf(desc)

	a.mu.Lock()
	if a.removed {
		a.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", core.ErrAssetRemoved, a.path)
	}
	if e, ok := a.views[key]; ok {
		a.mu.Unlock()
		return e.wait(ctx)
	}
	if a.exclusive != nil {
		held := *a.exclusive
		a.mu.Unlock()
		return nil, fmt.Errorf("%w: %s is held exclusively as %s", core.ErrTypeConflict, a.path, held)
	}
	if desc.Exclusive() && len(a.views) > 0 {
		a.mu.Unlock()
		return nil, fmt.Errorf("%w: %s already hosts other views, cannot host %s exclusively", core.ErrTypeConflict, a.path, key)
	}
	e := &viewEntry{ready: make(chan struct{})}
	if a.views == nil {
		a.views = make(map[registry.Key]*viewEntry)
	}
	a.views[key] = e
	if desc.Exclusive() {
		a.exclusive = &key
	}
	a.mu.Unlock()

	v, err := build()

	a.mu.Lock()
	switch {
	case err != nil:
		e.err = err
		a.forget(key, e)
	case a.removed:
		e.err = fmt.Errorf("%w: %s", core.ErrAssetRemoved, a.path)
		release(v)
	default:
		e.view = v
	}
	close(e.ready)
	a.mu.Unlock()

	return e.view, e.err
}

// forget drops a failed slot. Callers hold a.mu.
func (a *Asset) forget(key registry.Key, e *viewEntry) {
	if a.views[key] == e {
		delete(a.views, key)
	}
	if a.exclusive != nil && *a.exclusive == key {
		a.exclusive = nil
	}
}

func (e *viewEntry) wait(ctx context.Context) (core.View, error) {
	select {
	case <-e.ready:
		return e.view, e.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (a *Asset) subscribe(fn func(core.TopologicalEvent)) func() {
	id := a.tree.nextSub.Add(1)
	a.subsMu.Lock()
	if a.subs == nil {
		a.subs = make(map[uint64]func(core.TopologicalEvent))
	}
	a.subs[id] = fn
	a.subsMu.Unlock()
	return func() {
		a.subsMu.Lock()
		delete(a.subs, id)
		a.subsMu.Unlock()
	}
}

func (a *Asset) listeners() []func(core.TopologicalEvent) {
	a.subsMu.RLock()
	defer a.subsMu.RUnlock()
	if len(a.subs) == 0 {
		return nil
	}
	ids := make([]uint64, 0, len(a.subs))
	for id := range a.subs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	fns := make([]func(core.TopologicalEvent), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, a.subs[id])
	}
	return fns
}

func release(v core.View) {
	if c, ok := v.(io.Closer); ok {
		_ = c.Close()
	}
}
