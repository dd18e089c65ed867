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

// Package tracing wires a pluggable OpenTelemetry tracer (stdout or
// jaeger) selected by config.TracingConfig.Implementation, plus an
// in-memory recorder that tests install with InitRecorder.
package tracing

import (
	"context"
	"fmt"

	"github.com/comcast/originshield/internal/runtime"
	"go.opentelemetry.io/otel/api/global"
	"go.opentelemetry.io/otel/api/key"
	"go.opentelemetry.io/otel/api/trace"
)

// ServiceName is reported to exporters that want one (e.g. Jaeger).
var ServiceName = "originshield"

// Name returns the tracer name for this application.
func Name() string {
	return fmt.Sprintf("%s/%s", runtime.ApplicationName, runtime.ApplicationVersion)
}

// Init sets the global trace provider for the named implementation
// ("stdout", "jaeger", or "" to disable). It returns a flush/shutdown
// func to be deferred by the caller.
func Init(implementation, collectorEndpoint string) (func(), error) {
	switch implementation {
	case "jaeger":
		return setJaegerTracer(collectorEndpoint)
	case "stdout":
		return setStdOutTracer()
	default:
		return func() {}, nil
	}
}

// NewSpan starts a new span as a child of any span found in ctx.
func NewSpan(ctx context.Context, spanName, detail string) (context.Context, trace.Span) {
	tr := global.TraceProvider().Tracer(Name())
	if detail != "" {
		ctx, span := tr.Start(ctx, spanName, trace.WithAttributes(key.String("detail", detail)))
		return ctx, span
	}
	return tr.Start(ctx, spanName)
}
