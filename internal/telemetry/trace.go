package telemetry

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const instrumentation = "github.com/felixgeelhaar/calsync"

func tracer() trace.Tracer {
	return otel.Tracer(instrumentation)
}

// StartCommandSpan starts the root span of a CLI command.
func StartCommandSpan(ctx context.Context, cmdName string) (context.Context, trace.Span) {
	return tracer().Start(ctx, "command."+cmdName,
		trace.WithAttributes(
			attribute.String("command", cmdName),
			attribute.String("component", "cli"),
		))
}

// StartRequestSpan starts a client span for one backend request. endpoint
// is the path template, not the concrete path, so span names stay bounded.
func StartRequestSpan(ctx context.Context, method, endpoint string) (context.Context, trace.Span) {
	return tracer().Start(ctx, method+" "+endpoint,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.route", endpoint),
			attribute.String("component", "api"),
		))
}

// StartStepSpan starts a span for one step of a flow such as push
// registration.
func StartStepSpan(ctx context.Context, flow, step string) (context.Context, trace.Span) {
	return tracer().Start(ctx, flow+"."+step,
		trace.WithAttributes(
			attribute.String("step", step),
			attribute.String("component", flow),
		))
}

// InjectHeaders writes the trace context of ctx into h.
func InjectHeaders(ctx context.Context, h http.Header) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(h))
}

// RecordSuccess marks a span as successful with optional result attributes.
func RecordSuccess(span trace.Span, attrs ...attribute.KeyValue) {
	span.SetAttributes(attrs...)
	span.SetStatus(codes.Ok, "")
}

// RecordError records err on span and marks it failed. A nil err is ignored.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(attribute.Bool("error", true))
}
