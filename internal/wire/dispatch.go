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

package wire

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/maniacs-ops/Chronicle-Engine/pkg/core"
)

// Dispatcher is implemented by views that can be driven by a remote peer.
type Dispatcher interface {
	Dispatch(ctx context.Context, op Op, args []json.RawMessage) (json.RawMessage, error)
}

// MapGetResult is the result document of a map get.
type MapGetResult[V any] struct {
	Found bool `json:"found"`
	Value V    `json:"value"`
}

func DispatchMap[K comparable, V any](ctx context.Context, m core.MapView[K, V], op Op, args []json.RawMessage) (json.RawMessage, error) {
	if err := op.Check(len(args)); err != nil {
		return nil, err
	}
	switch op {
	case OpGet:
		key, err := Arg[K](args[0])
		if err != nil {
			return nil, err
		}
		v, found, err := m.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		return encode(MapGetResult[V]{Found: found, Value: v})
	case OpPut:
		key, err := Arg[K](args[0])
		if err != nil {
			return nil, err
		}
		value, err := Arg[V](args[1])
		if err != nil {
			return nil, err
		}
		return nil, m.Put(ctx, key, value)
	case OpRemove:
		key, err := Arg[K](args[0])
		if err != nil {
			return nil, err
		}
		return nil, m.Remove(ctx, key)
	case OpSize:
		n, err := m.Size(ctx)
		if err != nil {
			return nil, err
		}
		return encode(n)
	case OpEntrySet:
		entries, err := m.EntrySet(ctx)
		if err != nil {
			return nil, err
		}
		return encode(entries)
	}
	return nil, fmt.Errorf("%w: %s is not a map operation", core.ErrProtocol, op)
}

func DispatchQueue[T, M any](ctx context.Context, q core.QueueView[T, M], op Op, args []json.RawMessage) (json.RawMessage, error) {
	if err := op.Check(len(args)); err != nil {
		return nil, err
	}
	switch op {
	case OpGetNextAtIndex:
		index, err := Arg[int64](args[0])
		if err != nil {
			return nil, err
		}
		ex, err := q.Get(ctx, index)
		if err != nil {
			return nil, err
		}
		return encode(ex)
	case OpGetNextAtTopic:
		topic, err := Arg[T](args[0])
		if err != nil {
			return nil, err
		}
		ex, err := q.GetNextAtTopic(ctx, topic)
		if err != nil {
			return nil, err
		}
		return encode(ex)
	case OpPublishAndIndex:
		topic, msg, err := topicArgs[T, M](args)
		if err != nil {
			return nil, err
		}
		index, err := q.PublishAndIndex(ctx, topic, msg)
		if err != nil {
			return nil, err
		}
		return encode(index)
	case OpPublish:
		topic, msg, err := topicArgs[T, M](args)
		if err != nil {
			return nil, err
		}
		return nil, q.Publish(ctx, topic, msg)
	}
	return nil, fmt.Errorf("%w: %s is not a queue operation", core.ErrProtocol, op)
}

func DispatchTopic[T, M any](ctx context.Context, p core.TopicPublisher[T, M], op Op, args []json.RawMessage) (json.RawMessage, error) {
	if err := op.Check(len(args)); err != nil {
		return nil, err
	}
	if op != OpPublish {
		return nil, fmt.Errorf("%w: %s is not a topic operation", core.ErrProtocol, op)
	}
	topic, msg, err := topicArgs[T, M](args)
	if err != nil {
		return nil, err
	}
	return nil, p.Publish(ctx, topic, msg)
}

func topicArgs[T, M any](args []json.RawMessage) (T, M, error) {
	var msg M
	topic, err := Arg[T](args[0])
	if err != nil {
		return topic, msg, err
	}
	msg, err = Arg[M](args[1])
	return topic, msg, err
}

// Arg decodes one request argument.
func Arg[T any](raw json.RawMessage) (T, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("%w: decode %T: %v", core.ErrProtocol, v, err)
	}
	return v, nil
}

// Decode unmarshals a response result into dst.
func Decode(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: empty result, want %T", core.ErrProtocol, dst)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: decode %T: %v", core.ErrProtocol, dst, err)
	}
	return nil
}

func encode(v any) (json.RawMessage, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: encode %T: %v", core.ErrProtocol, v, err)
	}
	return b, nil
}
