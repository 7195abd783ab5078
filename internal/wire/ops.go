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
	"fmt"

	"github.com/maniacs-ops/Chronicle-Engine/pkg/core"
)

// Op identifies a view operation on the wire. The set and the arity of each
// operation are fixed for a ProtocolVersion.
type Op string

const (
	OpGetNextAtIndex  Op = "getNextAtIndex"
	OpGetNextAtTopic  Op = "getNextAtTopic"
	OpPublishAndIndex Op = "publishAndIndex"
	OpPublish         Op = "publish"
	OpGet             Op = "get"
	OpPut             Op = "put"
	OpRemove          Op = "remove"
	OpSize            Op = "size"
	OpEntrySet        Op = "entrySet"
)

var arity = map[Op]int{
	OpGetNextAtIndex:  1,
	OpGetNextAtTopic:  1,
	OpPublishAndIndex: 2,
	OpPublish:         2,
	OpGet:             1,
	OpPut:             2,
	OpRemove:          1,
	OpSize:            0,
	OpEntrySet:        0,
}

func (o Op) Arity() (int, bool) {
	n, ok := arity[o]
	return n, ok
}

// Check rejects unknown operations and wrong argument counts.
func (o Op) Check(args int) error {
	n, ok := arity[o]
	if !ok {
		return fmt.Errorf("%w: unknown operation %q", core.ErrProtocol, o)
	}
	if n != args {
		return fmt.Errorf("%w: %s takes %d arguments, got %d", core.ErrProtocol, o, n, args)
	}
	return nil
}
