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
	"encoding/json"

	"github.com/maniacs-ops/Chronicle-Engine/pkg/core"
)

// ProtocolVersion is exchanged in hello frames. Peers with different
// versions refuse each other.
const ProtocolVersion = 1

type Kind string

const (
	KindHello    Kind = "hello"
	KindRequest  Kind = "request"
	KindResponse Kind = "response"
)

// Frame is the unit exchanged over an engine connection. Field names are
// part of the protocol.
type Frame struct {
	Kind    Kind   `json:"kind"`
	CID     uint64 `json:"cid,omitempty,string"`
	Host    int    `json:"host,omitempty"`
	Version int    `json:"version,omitempty"`

	Path      string          `json:"path,omitempty"`
	View      core.Capability `json:"view,omitempty"`
	KeyType   core.TypeTag    `json:"type,omitempty"`
	ValueType core.TypeTag    `json:"type2,omitempty"`

	Op     Op                `json:"op,omitempty"`
	Args   []json.RawMessage `json:"args,omitempty"`
	Result json.RawMessage   `json:"result,omitempty"`
	Error  *FrameError       `json:"error,omitempty"`
}

type FrameError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Descriptor rebuilds the request descriptor a request frame targets.
func (f *Frame) Descriptor() core.RequestDescriptor {
	return core.Request(f.Path).WithView(f.View).WithType(f.KeyType).WithType2(f.ValueType)
}

// NewRequest builds a request frame for op on the view desc describes,
// encoding each argument as JSON.
func NewRequest(desc core.RequestDescriptor, op Op, args ...any) (*Frame, error) {
	raw := make([]json.RawMessage, 0, len(args))
	for _, a := range args {
		b, err := json.Marshal(a)
		if err != nil {
			return nil, err
		}
		raw = append(raw, b)
	}
	return &Frame{
		Kind:      KindRequest,
		Path:      desc.Path,
		View:      desc.View,
		KeyType:   desc.Type,
		ValueType: desc.Type2,
		Op:        op,
		Args:      raw,
	}, nil
}

// Reply builds the response to req.
func Reply(req *Frame, result json.RawMessage, err error) *Frame {
	resp := &Frame{Kind: KindResponse, CID: req.CID, Result: result}
	if err != nil {
		resp.Result = nil
		resp.Error = &FrameError{Code: core.CodeOf(err), Message: err.Error()}
	}
	return resp
}

// Err converts a response error back into a Go error.
func (f *Frame) Err() error {
	if f.Error == nil {
		return nil
	}
	return &core.RemoteError{Code: f.Error.Code, Message: f.Error.Message}
}
