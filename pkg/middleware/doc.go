// Package middleware provides drop-in instrumentation for parley
// servers: Prometheus metrics over the session lifecycle and
// OpenTelemetry tracing around the client event exchange.
package middleware
