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
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/maniacs-ops/Chronicle-Engine/pkg/core"
)

// Codec turns frames into bytes and back. Both encodings are field named,
// so peers only have to agree on field names and operation ids.
type Codec interface {
	Name() string
	// Binary reports whether encoded frames go out as binary websocket
	// messages.
	Binary() bool
	Marshal(f *Frame) ([]byte, error)
	Unmarshal(data []byte, f *Frame) error
}

const DefaultCodec = "json"

var codecs = map[string]Codec{
	"json":  JSON{},
	"proto": Proto{},
}

// Lookup returns the codec registered under name. An empty name selects
// DefaultCodec.
func Lookup(name string) (Codec, error) {
	if name == "" {
		name = DefaultCodec
	}
	c, ok := codecs[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown codec %q", core.ErrProtocol, name)
	}
	return c, nil
}

type JSON struct{}

func (JSON) Name() string { return "json" }
func (JSON) Binary() bool { return false }

func (JSON) Marshal(f *Frame) ([]byte, error) {
	return json.Marshal(f)
}

func (JSON) Unmarshal(data []byte, f *Frame) error {
	if err := json.Unmarshal(data, f); err != nil {
		return fmt.Errorf("%w: %v", core.ErrProtocol, err)
	}
	return nil
}

// Proto carries the frame document as a google.protobuf.Struct. Numbers in
// a Struct are doubles, so integers above 2^53 do not survive; correlation
// ids travel as strings for that reason.
type Proto struct{}

func (Proto) Name() string { return "proto" }
func (Proto) Binary() bool { return true }

func (Proto) Marshal(f *Frame) ([]byte, error) {
	doc, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	st := &structpb.Struct{}
	if err := protojson.Unmarshal(doc, st); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrProtocol, err)
	}
	return proto.Marshal(st)
}

func (Proto) Unmarshal(data []byte, f *Frame) error {
	st := &structpb.Struct{}
	if err := proto.Unmarshal(data, st); err != nil {
		return fmt.Errorf("%w: %v", core.ErrProtocol, err)
	}
	doc, err := protojson.Marshal(st)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrProtocol, err)
	}
	if err := json.Unmarshal(doc, f); err != nil {
		return fmt.Errorf("%w: %v", core.ErrProtocol, err)
	}
	return nil
}
