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

package views

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/maniacs-ops/Chronicle-Engine/internal/registry"
	"github.com/maniacs-ops/Chronicle-Engine/pkg/core"
)

// StoreRedis is the value of the store option that selects RedisMap.
const StoreRedis = "redis"

// RegisterMap installs the local map factory for the given tags. rdb may be
// nil, in which case requests for the redis store are refused.
func RegisterMap[K comparable, V any](reg *registry.Registry, t1, t2 core.TypeTag, rdb redis.UniversalClient) {
	key := registry.Key{View: core.CapabilityMap, Type: t1, Type2: t2}
	reg.Register(key, registry.Local, func(_ context.Context, desc core.RequestDescriptor, _ int) (core.View, error) {
		if desc.Option(core.OptionStore) == StoreRedis {
			if rdb == nil {
				return nil, fmt.Errorf("%w: no redis store configured for %s", core.ErrUnsupportedView, desc.Path)
			}
			return NewRedisMap[K, V](desc, rdb), nil
		}
		return NewMap[K, V](desc), nil
	})
}

func RegisterQueue[T comparable, M any](reg *registry.Registry, t1, t2 core.TypeTag) {
	key := registry.Key{View: core.CapabilityQueue, Type: t1, Type2: t2}
	reg.Register(key, registry.Local, func(_ context.Context, desc core.RequestDescriptor, _ int) (core.View, error) {
		return NewQueue[T, M](desc), nil
	})
}

func RegisterTopic[T, M any](reg *registry.Registry, t1, t2 core.TypeTag) {
	key := registry.Key{View: core.CapabilityTopicPublisher, Type: t1, Type2: t2}
	reg.Register(key, registry.Local, func(_ context.Context, desc core.RequestDescriptor, _ int) (core.View, error) {
		return NewTopic[T, M](desc), nil
	})
}

// RegisterDefaults installs the local factories the engine ships with.
// Untyped requests fall back to views over raw JSON values.
func RegisterDefaults(reg *registry.Registry, rdb redis.UniversalClient) {
	RegisterMap[string, string](reg, core.TagString, core.TagString, rdb)
	RegisterMap[string, int64](reg, core.TagString, core.TagInt64, rdb)
	RegisterMap[string, []byte](reg, core.TagString, core.TagBytes, rdb)
	RegisterMap[core.ConnectionDetails, core.ConnectionStatus](reg, core.TagConnectionDetails, core.TagConnectionStatus, rdb)
	RegisterMap[core.SocketID, core.Handler](reg, core.TagSocketID, core.TagHandler, rdb)
	RegisterMap[string, json.RawMessage](reg, core.TagAny, core.TagAny, rdb)

	RegisterQueue[string, string](reg, core.TagString, core.TagString)
	RegisterQueue[string, []byte](reg, core.TagString, core.TagBytes)
	RegisterQueue[string, json.RawMessage](reg, core.TagAny, core.TagAny)

	RegisterTopic[string, string](reg, core.TagString, core.TagString)
	RegisterTopic[string, []byte](reg, core.TagString, core.TagBytes)
	RegisterTopic[string, json.RawMessage](reg, core.TagAny, core.TagAny)
}
