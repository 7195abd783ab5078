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
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/maniacs-ops/Chronicle-Engine/internal/registry"
	"github.com/maniacs-ops/Chronicle-Engine/pkg/core"
)

// Locator reports which host owns a path.
type Locator interface {
	Locate(path string) (host int, remote bool)
}

// errRestart signals that a walk reached an asset removed under it.
var errRestart = errors.New("restart walk")

type Tree struct {
	root     *Asset
	nodes    sync.Map
	nextSub  atomic.Uint64
	registry *registry.Registry
	locator  Locator
	logger   *slog.Logger
}

// New returns a tree holding only the root asset. locator may be nil, in
// which case every view is built locally.
func New(reg *registry.Registry, locator Locator, logger *slog.Logger) *Tree {
	t := &Tree{
		registry: reg,
		locator:  locator,
		logger:   logger,
	}
	t.root = &Asset{
		tree: t,
		id:   core.NodeID(uuid.New().String()),
		path: "/",
	}
	t.nodes.Store(t.root.id, t.root)
	return t
}

func (t *Tree) Root() *Asset { return t.root }

func (t *Tree) node(id core.NodeID) *Asset {
	v, ok := t.nodes.Load(id)
	if !ok {
		return nil
	}
	return v.(*Asset)
}

// Len counts the live assets, root included.
func (t *Tree) Len() int {
	n := 0
	t.nodes.Range(func(_, v any) bool {
		if !v.(*Asset).Removed() {
			n++
		}
		return true
	})
	return n
}

// Resolve returns the asset at path, creating it and any missing ancestors.
// One Added event is delivered per created asset, root to leaf, before
// Resolve returns.
func (t *Tree) Resolve(path string) (*Asset, error) {
	names, err := split(path)
	if err != nil {
		return nil, err
	}
	for {
		a, err := t.walk(names, true)
		if errors.Is(err, errRestart) {
			continue
		}
		return a, err
	}
}

// Lookup returns the asset at path without creating anything.
func (t *Tree) Lookup(path string) (*Asset, error) {
	names, err := split(path)
	if err != nil {
		return nil, err
	}
	a, err := t.walk(names, false)
	if errors.Is(err, errRestart) {
		return nil, fmt.Errorf("%w: %s", core.ErrNotFound, path)
	}
	return a, err
}

func (t *Tree) walk(names []string, create bool) (*Asset, error) {
	cur := t.root
	for _, name := range names {
		cur.mu.Lock()
		if cur.removed {
			cur.mu.Unlock()
			return nil, errRestart
		}
		if child, ok := cur.children[name]; ok {
			cur.mu.Unlock()
			cur = child
			continue
		}
		if !create {
			cur.mu.Unlock()
			return nil, fmt.Errorf("%w: %s", core.ErrNotFound, join(cur.path, name))
		}

		child := &Asset{
			tree:   t,
			id:     core.NodeID(uuid.New().String()),
			parent: cur.id,
			name:   name,
			path:   join(cur.path, name),
		}
		if cur.children == nil {
			cur.children = make(map[string]*Asset)
		}
		cur.children[name] = child
		t.nodes.Store(child.id, child)

		cur.emitMu.Lock()
		cur.mu.Unlock()
		t.deliver(cur, core.TopologicalEvent{Kind: core.TopologyAdded, AssetPath: cur.path, Name: name})
		cur.emitMu.Unlock()

		cur = child
	}
	return cur, nil
}

type detached struct {
	asset *Asset
	views []*viewEntry
}

// Remove detaches the subtree at path. Removed events are delivered in
// pre-order, subtree root first; views are then closed children first.
func (t *Tree) Remove(path string) error {
	names, err := split(path)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		return fmt.Errorf("%w: the root cannot be removed", core.ErrInvalidPath)
	}
	if reserved("/" + strings.Join(names, "/")) {
		return fmt.Errorf("%w: %s is reserved by the engine", core.ErrInvalidPath, path)
	}

	parent, err := t.walk(names[:len(names)-1], false)
	if err != nil {
		if errors.Is(err, errRestart) {
			return fmt.Errorf("%w: %s", core.ErrNotFound, path)
		}
		return err
	}
	name := names[len(names)-1]

	parent.mu.Lock()
	n, ok := parent.children[name]
	if parent.removed || !ok {
		parent.mu.Unlock()
		return fmt.Errorf("%w: %s", core.ErrNotFound, path)
	}
	delete(parent.children, name)
	parent.emitMu.Lock()
	parent.mu.Unlock()
	t.deliver(parent, core.TopologicalEvent{Kind: core.TopologyRemoved, AssetPath: parent.path, Name: name})
	parent.emitMu.Unlock()

	gone := t.detach(n, nil)
	for i := len(gone) - 1; i >= 0; i-- {
		t.releaseViews(gone[i])
	}
	for _, d := range gone {
		t.nodes.Delete(d.asset.id)
	}

	t.logger.Debug("asset removed", "path", path, "nodes", len(gone))
	return nil
}

// detach marks a and its descendants removed, emitting one Removed event per
// descendant. The returned slice is in pre-order.
func (t *Tree) detach(a *Asset, out []detached) []detached {
	a.mu.Lock()
	a.removed = true
	names := make([]string, 0, len(a.children))
	for name := range a.children {
		names = append(names, name)
	}
	sort.Strings(names)
	kids := make([]*Asset, 0, len(names))
	for _, name := range names {
		kids = append(kids, a.children[name])
	}
	views := make([]*viewEntry, 0, len(a.views))
	for _, e := range a.views {
		views = append(views, e)
	}
	a.emitMu.Lock()
	a.mu.Unlock()
	defer a.emitMu.Unlock()

	out = append(out, detached{asset: a, views: views})
	for _, c := range kids {
		t.deliver(a, core.TopologicalEvent{Kind: core.TopologyRemoved, AssetPath: a.path, Name: c.name})
		out = t.detach(c, out)
	}
	return out
}

func (t *Tree) releaseViews(d detached) {
	for _, e := range d.views {
		select {
		case <-e.ready:
		default:
			// still being built; the builder sees removed and closes it
			continue
		}
		if e.err != nil || e.view == nil {
			continue
		}
		release(e.view)
	}
}

// AcquireView resolves desc.Path and returns the view described by desc,
// building it through the registry on first use. Paths owned by another host
// get a remote factory.
func (t *Tree) AcquireView(ctx context.Context, desc core.RequestDescriptor) (core.View, error) {
	if desc.View == "" {
		return nil, fmt.Errorf("%w: no capability requested for %s", core.ErrUnsupportedView, desc.Path)
	}

	host, remote := t.locate(desc.Path)
	loc := registry.Local
	if remote {
		loc = registry.Remote
	}
	factory, err := t.registry.Lookup(registry.KeyOf(desc), loc)
	if err != nil {
		return nil, err
	}

	a, err := t.Resolve(desc.Path)
	if err != nil {
		return nil, err
	}
	desc.Path = a.path

	return a.acquireView(ctx, desc, func() (core.View, error) {
		v, err := factory(ctx, desc, host)
		if err != nil {
			t.logger.Warn("view factory failed", "request", desc.String(), "locality", loc.String(), "error", err)
		}
		return v, err
	})
}

func (t *Tree) locate(path string) (int, bool) {
	if t.locator == nil || reserved(path) {
		return 0, false
	}
	return t.locator.Locate(path)
}

// reserved paths are always served by the local engine.
func reserved(path string) bool {
	return path == "/proc" || strings.HasPrefix(path, "/proc/")
}

func split(path string) ([]string, error) {
	if !strings.HasPrefix(path, "/") {
		return nil, fmt.Errorf("%w: %q is not absolute", core.ErrInvalidPath, path)
	}
	trimmed := strings.TrimSuffix(strings.TrimPrefix(path, "/"), "/")
	if trimmed == "" {
		return nil, nil
	}
	names := strings.Split(trimmed, "/")
	for _, n := range names {
		if n == "" || n == "." || n == ".." {
			return nil, fmt.Errorf("%w: %q", core.ErrInvalidPath, path)
		}
	}
	return names, nil
}

func join(parent, name string) string {
	if parent == "/" {
		return "/" + name
	}
	return parent + "/" + name
}
