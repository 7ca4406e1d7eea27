package extd

import (
	"context"

	"github.com/yusufsyaifudin/emailer/container"
	"github.com/yusufsyaifudin/emailer/pkg/tracer"
	"github.com/yusufsyaifudin/ylog"
	jaegerPropagator "go.opentelemetry.io/contrib/propagators/jaeger"
	"go.opentelemetry.io/contrib/propagators/ot"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/propagation"
)

// SetupTracing registers OT and Jaeger propagators, and the Jaeger exporter when endpoint is set.
// The returned func flushes pending spans and is always safe to call.
func SetupTracing(ctx context.Context, serviceName string, conf container.ConfigTracing) (shutdown func(ctx context.Context)) {
	shutdown = func(context.Context) {}

	// register ot propagator
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		&ot.OT{},
		&jaegerPropagator.Jaeger{},
	))

	if conf.JaegerEndpoint == "" {
		ylog.Debug(ctx, "tracing: no jaeger endpoint, spans are not exported")
		return
	}

	exp, err := jaeger.New(
		jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(conf.JaegerEndpoint)),
	)
	if err != nil {
		ylog.Error(ctx, "cannot setup jaeger exporter", ylog.KV("error", err))
		return
	}

	tp := tracer.InitTraceProvider(serviceName, conf.Environment, exp)
	shutdown = func(ctx context.Context) {
		if _err := tp.Shutdown(ctx); _err != nil {
			ylog.Error(ctx, "tracing: shutdown failed", ylog.KV("error", _err))
		}
	}

	ylog.Info(ctx, "tracing: exporting to jaeger", ylog.KV("endpoint", conf.JaegerEndpoint))
	return
}
