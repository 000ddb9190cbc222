// Package telemetry wraps OpenTelemetry tracing for scan passes.
package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	UnitsEventName = "driftwatch.units"
	UnitsKey       = "driftwatch.units.json"
	SkipEventName  = "driftwatch.unit.skipped"
	UnitKey        = "driftwatch.unit"
	ScanIDKey      = "driftwatch.scan_id"
)

// Pass is the root span of one scan pass. Each unit gets a child span.
type Pass struct {
	ctx    context.Context
	tracer trace.Tracer
	span   trace.Span
}

// StartPass opens the root span and records the unit list as an event on it.
// Unit paths must be non-empty and unique.
func StartPass(ctx context.Context, tracer trace.Tracer, name string, units []string, attrs ...attribute.KeyValue) (*Pass, error) {
	if tracer == nil {
		return nil, fmt.Errorf("start pass: tracer is required")
	}
	seen := make(map[string]struct{}, len(units))
	for i, u := range units {
		if strings.TrimSpace(u) == "" {
			return nil, fmt.Errorf("start pass: unit %d has empty path", i)
		}
		if _, dup := seen[u]; dup {
			return nil, fmt.Errorf("start pass: duplicate unit %q", u)
		}
		seen[u] = struct{}{}
	}
	if name = strings.TrimSpace(name); name == "" {
		name = "scan"
	}

	listed, err := json.Marshal(units)
	if err != nil {
		return nil, fmt.Errorf("start pass: marshal units: %w", err)
	}

	spanCtx, span := tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	span.AddEvent(UnitsEventName, trace.WithAttributes(attribute.String(UnitsKey, string(listed))))
	return &Pass{ctx: spanCtx, tracer: tracer, span: span}, nil
}

func (p *Pass) Context() context.Context {
	if p == nil {
		return context.Background()
	}
	return p.ctx
}

// Unit runs fn inside a child span named after path. A returned error marks
// the span failed and is passed through.
func (p *Pass) Unit(ctx context.Context, path string, fn func(context.Context) error) error {
	if p == nil || p.tracer == nil {
		return fn(ctx)
	}
	unitCtx, span := p.tracer.Start(ctx, path, trace.WithAttributes(attribute.String(UnitKey, path)))
	defer span.End()

	if err := fn(unitCtx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, strings.TrimSpace(err.Error()))
		return err
	}
	return nil
}

// Skipped notes on the root span that path was left out of the result.
func (p *Pass) Skipped(path string, reason error) {
	if p == nil || p.span == nil {
		return
	}
	attrs := []attribute.KeyValue{attribute.String(UnitKey, path)}
	if reason != nil {
		attrs = append(attrs, attribute.String("error", reason.Error()))
	}
	p.span.AddEvent(SkipEventName, trace.WithAttributes(attrs...))
}

// Finish closes the root span. scanID is attached when the pass produced a
// result; err marks the pass failed.
func (p *Pass) Finish(scanID string, err error) {
	if p == nil || p.span == nil {
		return
	}
	if scanID != "" {
		p.span.SetAttributes(attribute.String(ScanIDKey, scanID))
	}
	if err != nil {
		p.span.RecordError(err)
		p.span.SetStatus(codes.Error, strings.TrimSpace(err.Error()))
	}
	p.span.End()
}
