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
	"errors"
	"fmt"
)

var (
	ErrTypeConflict    = errors.New("type conflict")
	ErrUnsupportedView = errors.New("unsupported view")
	ErrNotConnected    = errors.New("not connected")
	ErrConnectionLost  = errors.New("connection lost")
	ErrProtocol        = errors.New("protocol error")
	ErrNotFound        = errors.New("not found")
	ErrInvalidPath     = errors.New("invalid path")
	ErrAssetRemoved    = errors.New("asset removed")
)

// Wire error codes. Peers exchange codes, never Go error text, so the
// receiving side can map them back onto the sentinels above.
const (
	CodeTypeConflict    = "TypeConflict"
	CodeUnsupportedView = "UnsupportedView"
	CodeNotConnected    = "NotConnected"
	CodeConnectionLost  = "ConnectionLost"
	CodeProtocol        = "ProtocolError"
	CodeNotFound        = "NotFound"
	CodeInvalidPath     = "InvalidPath"
	CodeAssetRemoved    = "AssetRemoved"
	CodeInternal        = "Internal"
)

var codes = []struct {
	code string
	err  error
}{
	{CodeTypeConflict, ErrTypeConflict},
	{CodeUnsupportedView, ErrUnsupportedView},
	{CodeNotConnected, ErrNotConnected},
	{CodeConnectionLost, ErrConnectionLost},
	{CodeProtocol, ErrProtocol},
	{CodeNotFound, ErrNotFound},
	{CodeInvalidPath, ErrInvalidPath},
	{CodeAssetRemoved, ErrAssetRemoved},
}

// CodeOf returns the wire code for err.
func CodeOf(err error) string {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeInternal
}

// RemoteError is an error reported by a peer while serving a call.
type RemoteError struct {
	Code    string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote %s: %s", e.Code, e.Message)
}

func (e *RemoteError) Unwrap() error {
	for _, c := range codes {
		if c.code == e.Code {
			return c.err
		}
	}
	return nil
}
