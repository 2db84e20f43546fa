// Copyright 2025 Patrick J. Scruggs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package slogdiscord

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

const (
	// TraceIDKey holds the hex trace id of the active span.
	TraceIDKey = "trace_id"
	// SpanIDKey holds the hex span id of the active span.
	SpanIDKey = "span_id"
	// TraceSampledKey reports whether the active span is sampled.
	TraceSampledKey = "trace_sampled"
)

// TraceAttributes extracts OpenTelemetry correlation attributes from ctx.
// The boolean is false when ctx carries no valid span context.
func TraceAttributes(ctx context.Context) ([]slog.Attr, bool) {
	if ctx == nil {
		return nil, false
	}
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return nil, false
	}
	return []slog.Attr{
		slog.String(TraceIDKey, sc.TraceID().String()),
		slog.String(SpanIDKey, sc.SpanID().String()),
		slog.Bool(TraceSampledKey, sc.IsSampled()),
	}, true
}
