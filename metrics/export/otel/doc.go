// Package otel publishes goGuard engine metrics through an OpenTelemetry
// Meter supplied by the caller.
package otel
