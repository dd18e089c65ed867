/**
* Copyright 2018 Comcast Cable Communications Management, LLC
* Licensed under the Apache License, Version 2.0 (the "License");
* you may not use this file except in compliance with the License.
* You may obtain a copy of the License at
* http://www.apache.org/licenses/LICENSE-2.0
* Unless required by applicable law or agreed to in writing, software
* distributed under the License is distributed on an "AS IS" BASIS,
* WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
* See the License for the specific language governing permissions and
* limitations under the License.
 */

package tracing

import (
	"context"

	"go.opentelemetry.io/otel/api/global"
	export "go.opentelemetry.io/otel/sdk/export/trace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// recorderExporter is a trace.Exporter that retains span data in memory
// for test assertions, instead of writing to stdout or a collector.
type recorderExporter struct {
	spans []*export.SpanData
}

// ExportSpan retains the span for later inspection by tests.
func (e *recorderExporter) ExportSpan(_ context.Context, data *export.SpanData) {
	e.spans = append(e.spans, data)
}

// Spans returns the spans recorded so far.
func (e *recorderExporter) Spans() []*export.SpanData {
	return e.spans
}

// InitRecorder installs a recording tracer and returns it so tests can
// assert on captured spans.
func InitRecorder() (*recorderExporter, error) {
	exporter := &recorderExporter{}
	tp, err := sdktrace.NewProvider(
		sdktrace.WithConfig(sdktrace.Config{DefaultSampler: sdktrace.AlwaysSample()}),
		sdktrace.WithSyncer(exporter),
	)
	if err != nil {
		return nil, err
	}
	global.SetTraceProvider(tp)
	return exporter, nil
}
