// Package telemetry wires optional OpenTelemetry tracing and Prometheus run
// metrics. Both are off unless configured.
package telemetry
