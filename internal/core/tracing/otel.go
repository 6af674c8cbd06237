// Package tracing 初始化 OpenTelemetry 链路追踪。
// 未启用时仍安装 no-op provider，otelgin 中间件照常工作但不导出。
package tracing

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/zap"

	"storyverse/internal/core/config"
)

// Init 按配置安装全局 TracerProvider，返回的 shutdown 负责 flush
func Init(ctx context.Context, c config.Tracing, service, env string, l *zap.Logger) func(context.Context) error {
	noop := func(context.Context) error { return nil }
	if !c.Enable {
		return noop
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceNameKey.String(service),
		attribute.String("deployment.environment", env),
	))
	if err != nil {
		l.Warn("otel resource init failed (continuing)", zap.Error(err))
	}

	exp, err := exporter(ctx, c)
	if err != nil {
		l.Warn("otel exporter init failed, tracing disabled", zap.Error(err))
		return noop
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp, sdktrace.WithBatchTimeout(5*time.Second)),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio(c.SampleRatio)))),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	l.Info("otel tracing initialized", zap.String("service", service), zap.String("endpoint", c.Endpoint))
	return tp.Shutdown
}

// exporter endpoint 为空时打到 stdout，方便本地看
func exporter(ctx context.Context, c config.Tracing) (sdktrace.SpanExporter, error) {
	endpoint := strings.TrimSpace(c.Endpoint)
	if endpoint == "" {
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	}
	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(endpoint)}
	if c.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	return otlptracehttp.New(ctx, opts...)
}

func ratio(r float64) float64 {
	switch {
	case r <= 0:
		return 0.1
	case r > 1:
		return 1
	}
	return r
}
