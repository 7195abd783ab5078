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

package logging

import (
	"log/slog"

	"github.com/maniacs-ops/Chronicle-Engine/internal/wire"
)

// FrameLogger traces every frame crossing an engine connection. A nil
// FrameLogger logs nothing.
type FrameLogger struct {
	logger *slog.Logger
}

func NewFrameLogger(logger *slog.Logger) *FrameLogger {
	return &FrameLogger{logger: logger}
}

func (p *FrameLogger) Log(f *wire.Frame, peer int, direction string, size int) {
	if p == nil {
		return
	}
	attrs := []any{
		"kind", f.Kind,
		"cid", f.CID,
		"peer", peer,
		"direction", direction,
		"size", size,
	}
	if f.Kind == wire.KindRequest {
		attrs = append(attrs, "path", f.Path, "view", f.View, "op", f.Op, "args", len(f.Args))
	}
	if f.Error != nil {
		attrs = append(attrs, "error_code", f.Error.Code)
	}
	p.logger.Info("frame", attrs...)
}
