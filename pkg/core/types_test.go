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

package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopologicalEventJSONRoundTrip(t *testing.T) {
	for _, kind := range []TopologyKind{TopologyAdded, TopologyRemoved} {
		ev := TopologicalEvent{Kind: kind, AssetPath: "/data", Name: "orders"}
		raw, err := json.Marshal(ev)
		require.NoError(t, err)
		assert.Contains(t, string(raw), `"kind":"`+kind.String()+`"`)

		var back TopologicalEvent
		require.NoError(t, json.Unmarshal(raw, &back))
		assert.Equal(t, ev, back)
	}
}

func TestTopologyKindRejectsUnknownText(t *testing.T) {
	var k TopologyKind
	err := k.UnmarshalText([]byte("moved"))
	assert.ErrorIs(t, err, ErrProtocol)
}

func TestConnectionStatusRoundTrip(t *testing.T) {
	raw, err := json.Marshal(map[string]ConnectionStatus{"s": StatusConnected})
	require.NoError(t, err)
	assert.JSONEq(t, `{"s":"CONNECTED"}`, string(raw))

	var back map[string]ConnectionStatus
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, StatusConnected, back["s"])

	var s ConnectionStatus
	assert.ErrorIs(t, s.UnmarshalText([]byte("UP")), ErrProtocol)
}
