package metrics

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const serviceName = "llm-bootcamp"

type TracingOptions struct {
	Exporter string // "stdout", "otlp-http" or "otlp-grpc"; anything else disables tracing
	Endpoint string // OTLP endpoint URL, optional
	Output   io.Writer
}

// InitTracing installs a global tracer provider. The returned function
// flushes and stops it. With no exporter configured the global no-op
// provider stays in place.
func InitTracing(ctx context.Context, opts TracingOptions) (func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }

	var (
		exp sdktrace.SpanExporter
		err error
	)
	switch opts.Exporter {
	case "stdout":
		out := opts.Output
		if out == nil {
			out = io.Discard
		}
		exp, err = stdouttrace.New(stdouttrace.WithWriter(out), stdouttrace.WithPrettyPrint())
	case "otlp-http":
		var httpOpts []otlptracehttp.Option
		if opts.Endpoint != "" {
			httpOpts = append(httpOpts, otlptracehttp.WithEndpointURL(opts.Endpoint))
		}
		exp, err = otlptracehttp.New(ctx, httpOpts...)
	case "otlp-grpc":
		var grpcOpts []otlptracegrpc.Option
		if opts.Endpoint != "" {
			grpcOpts = append(grpcOpts, otlptracegrpc.WithEndpointURL(opts.Endpoint))
		}
		exp, err = otlptracegrpc.New(ctx, grpcOpts...)
	default:
		return noop, nil
	}
	if err != nil {
		return noop, fmt.Errorf("failed to create %s trace exporter: %w", opts.Exporter, err)
	}

	res := resource.NewSchemaless(attribute.String("service.name", serviceName))

	var spanOpt sdktrace.TracerProviderOption
	if opts.Exporter == "stdout" {
		// stdout exports each span as it ends
		spanOpt = sdktrace.WithSyncer(exp)
	} else {
		spanOpt = sdktrace.WithBatcher(exp)
	}

	tp := sdktrace.NewTracerProvider(spanOpt, sdktrace.WithResource(res))
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}
