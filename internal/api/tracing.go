package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mautops/integration-monitor/internal/config"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

var tracerProvider *tracesdk.TracerProvider

// TracingSampler 按配置的比例采样根 span，子 span 跟随父 span
func TracingSampler(ratio float64) tracesdk.Sampler {
	switch {
	case ratio <= 0:
		return tracesdk.NeverSample()
	case ratio >= 1:
		return tracesdk.ParentBased(tracesdk.AlwaysSample())
	default:
		return tracesdk.ParentBased(tracesdk.TraceIDRatioBased(ratio))
	}
}

// InitTracing 初始化 OTLP gRPC 链路追踪
func InitTracing(ctx context.Context, cfg *config.Config, version string) error {
	tc := cfg.Tracing

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(tc.Endpoint)}
	if tc.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(tc.ServiceName),
			semconv.ServiceVersionKey.String(version),
			semconv.DeploymentEnvironmentKey.String(cfg.Env),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create tracing resource: %w", err)
	}

	tracerProvider = tracesdk.NewTracerProvider(
		tracesdk.WithBatcher(exporter),
		tracesdk.WithResource(res),
		tracesdk.WithSampler(TracingSampler(tc.SampleRatio)),
	)
	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return nil
}

// TracingMiddleware 追踪中间件，运维端点不产生 span
func TracingMiddleware(serviceName string) gin.HandlerFunc {
	return otelgin.Middleware(serviceName, otelgin.WithFilter(func(r *http.Request) bool {
		return !opsPaths[r.URL.Path]
	}))
}

// ShutdownTracing 刷新并关闭追踪
func ShutdownTracing(ctx context.Context) error {
	if tracerProvider == nil {
		return nil
	}
	return tracerProvider.Shutdown(ctx)
}
