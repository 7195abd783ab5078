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

package plugins

import (
	"context"
	"log/slog"

	"github.com/maniacs-ops/Chronicle-Engine/pkg/core"
)

type tracedSink struct {
	core.Sink
	logger *slog.Logger
}

// Traced wraps a sink so that every export is logged, for sinks configured
// with debug enabled.
func Traced(s core.Sink, logger *slog.Logger) core.Sink {
	return &tracedSink{Sink: s, logger: logger.With("sink", s.Name(), "type", s.Type())}
}

func (t *tracedSink) Export(ctx context.Context, rec core.Record) error {
	err := t.Sink.Export(ctx, rec)
	t.logger.Info("record exported",
		"id", rec.ID,
		"kind", rec.Kind,
		"source", rec.Source,
		"topic", rec.Topic,
		"size", len(rec.Payload),
		"error", err,
	)
	return err
}
