// Package otel bridges scope's debug event stream to OpenTelemetry spans
// via go.opentelemetry.io/otel, resolved against the process's global
// TracerProvider the same way vango's middleware.OpenTelemetry resolves
// its tracer.
package otel
