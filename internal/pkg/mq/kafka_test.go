package mq

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestKafkaHeaderCarrier_SetOverwrites(t *testing.T) {
	var c KafkaHeaderCarrier
	c.Set("traceparent", "a")
	c.Set("traceparent", "b")
	c.Set("baggage", "k=v")

	if got := c.Get("traceparent"); got != "b" {
		t.Fatalf("traceparent = %q, want b", got)
	}
	if len(c.Keys()) != 2 {
		t.Fatalf("keys = %v, want 2 entries", c.Keys())
	}
	if c.Get("missing") != "" {
		t.Fatal("missing header should be empty")
	}
}

func TestKafkaHeaderCarrier_RoundTripsTraceContext(t *testing.T) {
	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	prop := propagation.TraceContext{}
	var c KafkaHeaderCarrier
	prop.Inject(ctx, &c)

	extracted := trace.SpanContextFromContext(prop.Extract(context.Background(), &c))
	if extracted.TraceID() != traceID {
		t.Fatalf("trace id = %s, want %s", extracted.TraceID(), traceID)
	}
}
