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

package routing

import (
	"strings"
	"sync"
)

// Route assigns the subtree at Prefix to the engine with id Host.
type Route struct {
	Prefix string `yaml:"path"`
	Host   int    `yaml:"host"`
}

// Table is the hosting table: it maps path prefixes to owning hosts. Paths
// that match no route, or whose route names this engine, are local.
type Table struct {
	self   int
	routes sync.Map
}

func NewTable(self int) *Table {
	return &Table{self: self}
}

func (t *Table) Add(route *Route) {
	t.routes.Store(normalize(route.Prefix), route)
}

func (t *Table) Remove(prefix string) {
	t.routes.Delete(normalize(prefix))
}

func (t *Table) Lookup(prefix string) (*Route, bool) {
	v, ok := t.routes.Load(normalize(prefix))
	if !ok {
		return nil, false
	}
	return v.(*Route), true
}

// Locate returns the host owning path by longest prefix match on whole
// path segments.
func (t *Table) Locate(path string) (int, bool) {
	path = normalize(path)
	var best *Route
	t.routes.Range(func(key, val any) bool {
		prefix := key.(string)
		if !covers(prefix, path) {
			return true
		}
		if best == nil || len(prefix) > len(normalize(best.Prefix)) {
			best = val.(*Route)
		}
		return true
	})
	if best == nil || best.Host == t.self {
		return 0, false
	}
	return best.Host, true
}

func (t *Table) ReplaceAll(routes []*Route) {
	t.routes.Range(func(key, _ any) bool {
		t.routes.Delete(key)
		return true
	})
	for _, r := range routes {
		t.routes.Store(normalize(r.Prefix), r)
	}
}

func (t *Table) Len() int {
	n := 0
	t.routes.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func covers(prefix, path string) bool {
	if prefix == "/" {
		return true
	}
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

func normalize(p string) string {
	if p == "" || p == "/" {
		return "/"
	}
	return "/" + strings.Trim(p, "/")
}
