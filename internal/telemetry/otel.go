package telemetry

import (
	"context"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

const defaultTracesEndpoint = "http://localhost:4318/v1/traces"

// InitTracer installs a global OTLP/HTTP tracer provider for the reconciler
// and returns its shutdown function. The sample ratio defaults to everything,
// since one trace per reconciliation is cheap; OTEL_TRACES_SAMPLE_RATIO turns
// it down in busier deployments.
func InitTracer(serviceName string) func() {
	ctx := context.Background()

	endpoint, path, insecure := tracesTarget(os.Getenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"))

	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithURLPath(path),
	}
	if insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptrace.New(ctx, otlptracehttp.NewClient(opts...))
	if err != nil {
		log.Fatalf("Failed to create OTLP exporter: %v", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(envOr("SERVICE_VERSION", "0.1.0")),
			semconv.DeploymentEnvironmentKey.String(envOr("APP_ENV", "development")),
		),
	)
	if err != nil {
		log.Fatalf("Failed to create resource: %v", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(sampleRatio())),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	log.Printf("OpenTelemetry initialized for service: %s", serviceName)

	return func() {
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer provider: %v", err)
		}
	}
}

// tracesTarget splits the configured endpoint into what the OTLP client
// wants: host:port, URL path, and whether to skip TLS. Accepts a full URL or
// a bare host:port.
func tracesTarget(raw string) (endpoint, path string, insecure bool) {
	if raw == "" {
		raw = defaultTracesEndpoint
	}
	endpoint, path, insecure = "localhost:4318", "/v1/traces", true
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		if u, err := url.Parse(raw); err == nil {
			if u.Host != "" {
				endpoint = u.Host
			}
			if u.Path != "" {
				path = u.Path
			}
			insecure = u.Scheme == "http"
		}
		return endpoint, path, insecure
	}
	return raw, path, insecure
}

func sampleRatio() float64 {
	if raw := os.Getenv("OTEL_TRACES_SAMPLE_RATIO"); raw != "" {
		if ratio, err := strconv.ParseFloat(raw, 64); err == nil && ratio >= 0 && ratio <= 1 {
			return ratio
		}
		log.Printf("Warning: invalid OTEL_TRACES_SAMPLE_RATIO %q, sampling everything", raw)
	}
	return 1.0
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
