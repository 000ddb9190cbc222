package telemetry

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func TestPassRecordsUnitSpans(t *testing.T) {
	t.Parallel()

	tracer, recorder := newTestTracer()
	units := []string{"media/docker-compose.yml", "web/docker-compose.yml"}
	pass, err := StartPass(context.Background(), tracer, "compose.scan", units, attribute.String("host", "nas"))
	if err != nil {
		t.Fatalf("StartPass() error = %v", err)
	}
	if err := pass.Unit(pass.Context(), units[1], func(context.Context) error { return nil }); err != nil {
		t.Fatalf("Unit() error = %v", err)
	}
	pass.Skipped(units[0], errors.New("bad yaml"))
	pass.Finish("scan-1", nil)

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("ended span count = %d, want 2", len(spans))
	}
	root := findSpanByName(spans, "compose.scan")
	if root == nil {
		t.Fatal("missing root span")
	}
	if got := getAttr(root.Attributes(), "host"); got != "nas" {
		t.Fatalf("root host = %q, want nas", got)
	}
	if got := getAttr(root.Attributes(), ScanIDKey); got != "scan-1" {
		t.Fatalf("root scan id = %q, want scan-1", got)
	}

	events := root.Events()
	if len(events) != 2 {
		t.Fatalf("root event count = %d, want 2", len(events))
	}
	if events[0].Name != UnitsEventName {
		t.Fatalf("first event = %q, want %q", events[0].Name, UnitsEventName)
	}
	if got, want := getAttr(events[0].Attributes, UnitsKey), `["media/docker-compose.yml","web/docker-compose.yml"]`; got != want {
		t.Fatalf("units attribute = %q, want %q", got, want)
	}
	if events[1].Name != SkipEventName || getAttr(events[1].Attributes, UnitKey) != units[0] {
		t.Fatalf("skip event = %q %v", events[1].Name, events[1].Attributes)
	}

	child := findSpanByName(spans, units[1])
	if child == nil {
		t.Fatal("missing unit span")
	}
	if child.Parent().SpanID() != root.SpanContext().SpanID() {
		t.Fatalf("unit parent = %s, want %s", child.Parent().SpanID(), root.SpanContext().SpanID())
	}
}

func TestPassUnitFailureSetsErrorStatus(t *testing.T) {
	t.Parallel()

	tracer, recorder := newTestTracer()
	pass, err := StartPass(context.Background(), tracer, "compose.scan", []string{"web"})
	if err != nil {
		t.Fatalf("StartPass() error = %v", err)
	}

	boom := errors.New("boom")
	err = pass.Unit(pass.Context(), "web", func(context.Context) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("Unit() error = %v, want boom", err)
	}
	pass.Finish("", err)

	for _, name := range []string{"web", "compose.scan"} {
		span := findSpanByName(recorder.Ended(), name)
		if span == nil {
			t.Fatalf("missing span %q", name)
		}
		if span.Status().Code != codes.Error || span.Status().Description != "boom" {
			t.Fatalf("%s status = %v %q, want error boom", name, span.Status().Code, span.Status().Description)
		}
	}
}

func TestStartPassRejectsBadUnits(t *testing.T) {
	t.Parallel()

	tracer, _ := newTestTracer()
	tests := []struct {
		name  string
		units []string
	}{
		{name: "duplicate", units: []string{"web", "web"}},
		{name: "empty", units: []string{"web", " "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := StartPass(context.Background(), tracer, "compose.scan", tt.units); err == nil {
				t.Fatal("StartPass() error = nil, want error")
			}
		})
	}
	if _, err := StartPass(context.Background(), nil, "compose.scan", nil); err == nil {
		t.Fatal("StartPass(nil tracer) error = nil, want error")
	}
}

func TestNilPassRunsUnit(t *testing.T) {
	t.Parallel()

	var pass *Pass
	ran := false
	if err := pass.Unit(context.Background(), "web", func(context.Context) error {
		ran = true
		return nil
	}); err != nil {
		t.Fatalf("Unit() error = %v", err)
	}
	if !ran {
		t.Fatal("unit did not run")
	}
	pass.Skipped("web", nil)
	pass.Finish("id", nil)
}

func TestSetupWithoutEndpoint(t *testing.T) {
	tp, shutdown, err := Setup(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if tp == nil {
		t.Fatal("Setup() provider = nil")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown() error = %v", err)
	}
}

func newTestTracer() (trace.Tracer, *tracetest.SpanRecorder) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	return provider.Tracer("telemetry-test"), recorder
}

func findSpanByName(spans []sdktrace.ReadOnlySpan, name string) sdktrace.ReadOnlySpan {
	for _, span := range spans {
		if span.Name() == name {
			return span
		}
	}
	return nil
}

func getAttr(attrs []attribute.KeyValue, key string) string {
	for _, attr := range attrs {
		if string(attr.Key) == key {
			return attr.Value.AsString()
		}
	}
	return ""
}
