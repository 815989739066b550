package telemetry

import (
	"context"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.uber.org/zap"
)

const (
	// ServiceName identifies this tool in exported spans.
	ServiceName = "simmigrate"

	tracingEnabledMessageConstant = "tracing initialized"
	serviceLogFieldConstant       = "service"
)

// ShutdownFunc flushes and stops a tracer provider.
type ShutdownFunc func(context.Context) error

// InitTracer installs a global tracer provider that pretty-prints spans to writer.
// When disabled, the default no-op provider stays in place.
func InitTracer(enabled bool, writer io.Writer, logger *zap.Logger) (ShutdownFunc, error) {
	if !enabled {
		return func(context.Context) error { return nil }, nil
	}
	if writer == nil {
		writer = os.Stderr
	}

	exporter, exporterError := stdouttrace.New(stdouttrace.WithWriter(writer), stdouttrace.WithPrettyPrint())
	if exporterError != nil {
		return nil, exporterError
	}

	serviceResource, resourceError := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes("", semconv.ServiceName(ServiceName)),
	)
	if resourceError != nil {
		return nil, resourceError
	}

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithResource(serviceResource),
	)
	otel.SetTracerProvider(tracerProvider)

	if logger != nil {
		logger.Debug(tracingEnabledMessageConstant, zap.String(serviceLogFieldConstant, ServiceName))
	}
	return tracerProvider.Shutdown, nil
}
