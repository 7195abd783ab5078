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

	"github.com/maniacs-ops/Chronicle-Engine/pkg/core"
)

func AcquireMap[K comparable, V any](ctx context.Context, t *Tree, desc core.RequestDescriptor) (core.MapView[K, V], error) {
	v, err := t.AcquireView(ctx, desc.WithView(core.CapabilityMap))
	if err != nil {
		return nil, err
	}
	m, ok := v.(core.MapView[K, V])
	if !ok {
		return nil, fmt.Errorf("%w: %s is a %T", core.ErrTypeConflict, desc.Path, v)
	}
	return m, nil
}

func AcquireQueue[T, M any](ctx context.Context, t *Tree, desc core.RequestDescriptor) (core.QueueView[T, M], error) {
	v, err := t.AcquireView(ctx, desc.WithView(core.CapabilityQueue))
	if err != nil {
		return nil, err
	}
	q, ok := v.(core.QueueView[T, M])
	if !ok {
		return nil, fmt.Errorf("%w: %s is a %T", core.ErrTypeConflict, desc.Path, v)
	}
	return q, nil
}

func AcquireTopic[T, M any](ctx context.Context, t *Tree, desc core.RequestDescriptor) (core.TopicPublisher[T, M], error) {
	v, err := t.AcquireView(ctx, desc.WithView(core.CapabilityTopicPublisher))
	if err != nil {
		return nil, err
	}
	p, ok := v.(core.TopicPublisher[T, M])
	if !ok {
		return nil, fmt.Errorf("%w: %s is a %T", core.ErrTypeConflict, desc.Path, v)
	}
	return p, nil
}
