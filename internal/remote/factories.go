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

package remote

import (
	"context"
	"encoding/json"

	"github.com/maniacs-ops/Chronicle-Engine/internal/registry"
	"github.com/maniacs-ops/Chronicle-Engine/pkg/core"
)

func RegisterMap[K comparable, V any](reg *registry.Registry, t1, t2 core.TypeTag, pool *Pool) {
	key := registry.Key{View: core.CapabilityMap, Type: t1, Type2: t2}
	reg.Register(key, registry.Remote, func(_ context.Context, desc core.RequestDescriptor, host int) (core.View, error) {
		return NewMap[K, V](desc, pool.Caller(host), pool.metrics), nil
	})
}

func RegisterQueue[T, M any](reg *registry.Registry, t1, t2 core.TypeTag, pool *Pool) {
	key := registry.Key{View: core.CapabilityQueue, Type: t1, Type2: t2}
	reg.Register(key, registry.Remote, func(_ context.Context, desc core.RequestDescriptor, host int) (core.View, error) {
		return NewQueue[T, M](desc, pool.Caller(host), pool.metrics), nil
	})
}

func RegisterTopic[T, M any](reg *registry.Registry, t1, t2 core.TypeTag, pool *Pool) {
	key := registry.Key{View: core.CapabilityTopicPublisher, Type: t1, Type2: t2}
	reg.Register(key, registry.Remote, func(_ context.Context, desc core.RequestDescriptor, host int) (core.View, error) {
		return NewTopic[T, M](desc, pool.Caller(host), pool.metrics), nil
	})
}

// RegisterDefaults installs remote factories for the same keys the local
// views register, so either side of a hosting boundary resolves to the
// same Go types.
func RegisterDefaults(reg *registry.Registry, pool *Pool) {
	RegisterMap[string, string](reg, core.TagString, core.TagString, pool)
	RegisterMap[string, int64](reg, core.TagString, core.TagInt64, pool)
	RegisterMap[string, []byte](reg, core.TagString, core.TagBytes, pool)
	RegisterMap[string, json.RawMessage](reg, core.TagAny, core.TagAny, pool)

	RegisterQueue[string, string](reg, core.TagString, core.TagString, pool)
	RegisterQueue[string, []byte](reg, core.TagString, core.TagBytes, pool)
	RegisterQueue[string, json.RawMessage](reg, core.TagAny, core.TagAny, pool)

	RegisterTopic[string, string](reg, core.TagString, core.TagString, pool)
	RegisterTopic[string, []byte](reg, core.TagString, core.TagBytes, pool)
	RegisterTopic[string, json.RawMessage](reg, core.TagAny, core.TagAny, pool)
}
