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
	"github.com/maniacs-ops/Chronicle-Engine/pkg/core"
)

// Subscribe registers fn for topological events at path and below. The asset
// at path is created if needed. fn runs on the mutating goroutine and must
// not mutate the tree itself.
func (t *Tree) Subscribe(path string, fn func(core.TopologicalEvent)) (cancel func(), err error) {
	a, err := t.Resolve(path)
	if err != nil {
		return nil, err
	}
	return a.subscribe(fn), nil
}

// SubscribeExisting is Subscribe for an asset that must already exist. It
// never creates assets and fails with ErrNotFound instead.
func (t *Tree) SubscribeExisting(path string, fn func(core.TopologicalEvent)) (cancel func(), err error) {
	a, err := t.Lookup(path)
	if err != nil {
		return nil, err
	}
	return a.subscribe(fn), nil
}

// deliver hands ev to the listeners of at and of every ancestor of at.
func (t *Tree) deliver(at *Asset, ev core.TopologicalEvent) {
	for cur := at; cur != nil; cur = cur.Parent() {
		for _, fn := range cur.listeners() {
			t.call(fn, ev)
		}
	}
}

func (t *Tree) call(fn func(core.TopologicalEvent), ev core.TopologicalEvent) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("topology listener panic recovered", "event", ev.FullName(), "error", r)
		}
	}()
	fn(ev)
}
