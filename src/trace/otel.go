package trace

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// OTelSink adapts an OpenTelemetry tracer to the Sink interface. Parent
// linkage rides on the context returned by StartSpan, which is how the OTel
// API propagates span parentage.
type OTelSink struct {
	tracer oteltrace.Tracer
}

func NewOTelSink(tracer oteltrace.Tracer) *OTelSink {
	return &OTelSink{tracer: tracer}
}

func (s *OTelSink) StartSpan(ctx context.Context, span *Span) (context.Context, SpanHandle, error) {
	attrs := make([]attribute.KeyValue, 0, len(span.Attrs)+2)
	attrs = append(attrs,
		attribute.String("ci.kind", string(span.Kind)),
		attribute.String("ci.workflow", span.Workflow),
	)
	for k, v := range span.Attrs {
		attrs = append(attrs, attribute.String(k, v))
	}

	ctx, otelSpan := s.tracer.Start(ctx, span.Name,
		oteltrace.WithTimestamp(span.Start),
		oteltrace.WithAttributes(attrs...),
	)
	return ctx, otelSpan, nil
}

func (s *OTelSink) EndSpan(handle SpanHandle, end time.Time, status Status) error {
	otelSpan, ok := handle.(oteltrace.Span)
	if !ok {
		return fmt.Errorf("unexpected span handle type %T", handle)
	}

	switch status {
	case StatusOK:
		otelSpan.SetStatus(codes.Ok, "")
	case StatusError:
		otelSpan.SetStatus(codes.Error, "")
	}
	otelSpan.End(oteltrace.WithTimestamp(end))
	return nil
}
