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
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maniacs-ops/Chronicle-Engine/pkg/core"
)

func TestCodecsCarryTheSameDocument(t *testing.T) {
	desc := core.Request("/data/queue1").WithView(core.CapabilityQueue).WithType(core.TagString).WithType2(core.TagString)
	req, err := NewRequest(desc, OpPublishAndIndex, "topicA", "hello")
	require.NoError(t, err)
	req.CID = 1<<60 + 3

	for _, name := range []string{"json", "proto"} {
		t.Run(name, func(t *testing.T) {
			c, err := Lookup(name)
			require.NoError(t, err)
			data, err := c.Marshal(req)
			require.NoError(t, err)

			var got Frame
			require.NoError(t, c.Unmarshal(data, &got))
			assert.Equal(t, KindRequest, got.Kind)
			assert.Equal(t, req.CID, got.CID)
			assert.Equal(t, OpPublishAndIndex, got.Op)
			assert.Equal(t, desc, got.Descriptor())
			require.Len(t, got.Args, 2)
			topic, err := Arg[string](got.Args[0])
			require.NoError(t, err)
			assert.Equal(t, "topicA", topic)
		})
	}
}

func TestLookupUnknownCodec(t *testing.T) {
	_, err := Lookup("xml")
	assert.ErrorIs(t, err, core.ErrProtocol)

	c, err := Lookup("")
	require.NoError(t, err)
	assert.Equal(t, DefaultCodec, c.Name())
}

func TestUnmarshalGarbage(t *testing.T) {
	var f Frame
	assert.ErrorIs(t, JSON{}.Unmarshal([]byte("{nope"), &f), core.ErrProtocol)
	assert.ErrorIs(t, Proto{}.Unmarshal([]byte{0xff, 0xff, 0xff}, &f), core.ErrProtocol)
}

func TestOpCheck(t *testing.T) {
	assert.NoError(t, OpGetNextAtIndex.Check(1))
	assert.NoError(t, OpSize.Check(0))
	assert.ErrorIs(t, OpPublishAndIndex.Check(1), core.ErrProtocol)
	assert.ErrorIs(t, Op("truncate").Check(0), core.ErrProtocol)

	n, ok := OpPut.Arity()
	assert.True(t, ok)
	assert.Equal(t, 2, n)
}

func TestReplyCarriesErrorCode(t *testing.T) {
	req := &Frame{Kind: KindRequest, CID: 9}
	resp := Reply(req, json.RawMessage(`1`), fmt.Errorf("%w: index 4", core.ErrNotFound))
	assert.Equal(t, uint64(9), resp.CID)
	assert.Nil(t, resp.Result)
	require.NotNil(t, resp.Error)
	assert.Equal(t, core.CodeNotFound, resp.Error.Code)
	assert.ErrorIs(t, resp.Err(), core.ErrNotFound)
}

type fakeMap struct {
	mu   sync.Mutex
	data map[string]int64
}

func (f *fakeMap) Descriptor() core.RequestDescriptor { return core.Request("/fake") }

func (f *fakeMap) Get(_ context.Context, k string) (int64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[k]
	return v, ok, nil
}

func (f *fakeMap) Put(_ context.Context, k string, v int64) error {
	f.mu.Lock()
	f.data[k] = v
	f.mu.Unlock()
	return nil
}

func (f *fakeMap) Remove(_ context.Context, k string) error {
	f.mu.Lock()
	delete(f.data, k)
	f.mu.Unlock()
	return nil
}

func (f *fakeMap) Size(context.Context) (int, error) { return len(f.data), nil }

func (f *fakeMap) EntrySet(context.Context) ([]core.Entry[string, int64], error) {
	var out []core.Entry[string, int64]
	for k, v := range f.data {
		out = append(out, core.Entry[string, int64]{Key: k, Value: v})
	}
	return out, nil
}

func raw(t *testing.T, vs ...any) []json.RawMessage {
	t.Helper()
	out := make([]json.RawMessage, 0, len(vs))
	for _, v := range vs {
		b, err := json.Marshal(v)
		require.NoError(t, err)
		out = append(out, b)
	}
	return out
}

func TestDispatchMap(t *testing.T) {
	ctx := context.Background()
	m := &fakeMap{data: map[string]int64{}}

	_, err := DispatchMap[string, int64](ctx, m, OpPut, raw(t, "a", 5))
	require.NoError(t, err)

	res, err := DispatchMap[string, int64](ctx, m, OpGet, raw(t, "a"))
	require.NoError(t, err)
	var got MapGetResult[int64]
	require.NoError(t, Decode(res, &got))
	assert.True(t, got.Found)
	assert.Equal(t, int64(5), got.Value)

	res, err = DispatchMap[string, int64](ctx, m, OpSize, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `1`, string(res))

	_, err = DispatchMap[string, int64](ctx, m, OpPut, raw(t, "a", "not-a-number"))
	assert.ErrorIs(t, err, core.ErrProtocol)

	_, err = DispatchMap[string, int64](ctx, m, OpGet, nil)
	assert.ErrorIs(t, err, core.ErrProtocol)

	_, err = DispatchMap[string, int64](ctx, m, OpPublish, raw(t, "t", 1))
	assert.ErrorIs(t, err, core.ErrProtocol)
}
