package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span names the CoAP dispatcher (component D) and the outbound self-loop
// pusher (component E) open around every host round trip and every PUT,
// respectively. The host bridge opens its own spans in addition
// (bridge.activate_skill, bridge.skills_answerable).
const (
	dispatchSpanName = "coap.dispatch"
	pushSpanName     = "coap.push"
)

type (
	// Logger is the structured logging interface used throughout this
	// module. Components accept a Logger through their Config rather than
	// writing to stdout directly.
	Logger interface {
		Debug(ctx context.Context, msg string, keyvals ...any)
		Info(ctx context.Context, msg string, keyvals ...any)
		Warn(ctx context.Context, msg string, keyvals ...any)
		Error(ctx context.Context, msg string, keyvals ...any)
	}

	// Metrics is the metrics-recording interface.
	Metrics interface {
		IncCounter(name string, value float64, tags ...string)
		RecordTimer(name string, duration time.Duration, tags ...string)
		RecordGauge(name string, value float64, tags ...string)
	}

	// Tracer creates and retrieves spans.
	Tracer interface {
		Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, Span)
		Span(ctx context.Context) Span
	}

	// Span is a single unit of tracing instrumentation.
	Span interface {
		End(opts ...trace.SpanEndOption)
		AddEvent(name string, attrs ...any)
		SetStatus(code codes.Code, description string)
		RecordError(err error, opts ...trace.EventOption)
	}

	// RegistryTelemetry bundles the Logger/Tracer/Metrics surface the CoAP
	// dispatcher (component D) and outbound pusher (component E) instrument
	// themselves with. Build one with NewNoopRegistryTelemetry or
	// NewClueRegistryTelemetry rather than assembling the three backends by
	// hand.
	RegistryTelemetry struct {
		Logger  Logger
		Tracer  Tracer
		Metrics Metrics
	}
)

// StartDispatch opens the span component D's dispatcher wraps around every
// inbound-request-to-host round trip (connect/registerIntents/notification/
// query/close all funnel through dispatchToHost).
func (t RegistryTelemetry) StartDispatch(ctx context.Context) (context.Context, Span) {
	return t.Tracer.Start(ctx, dispatchSpanName)
}

// RecordDispatch records the outcome of a dispatchToHost round trip. outcome
// is "ok" or "error"; duration is only recorded on success, matching what a
// failed round trip (no host response ever arrived) has nothing meaningful
// to time.
func (t RegistryTelemetry) RecordDispatch(start time.Time, outcome string) {
	t.Metrics.IncCounter(dispatchSpanName+".total", 1, "result", outcome)
	if outcome == "ok" {
		t.Metrics.RecordTimer(dispatchSpanName+".duration", time.Since(start))
	}
}

// StartPush opens the span component E's outbound self-loop wraps around
// each PUT to the registry's own skill resource.
func (t RegistryTelemetry) StartPush(ctx context.Context) (context.Context, Span) {
	return t.Tracer.Start(ctx, pushSpanName)
}

// RecordPush records the outcome of a self-loop PUT for skillID. outcome is
// "ok" or "error"; duration is only recorded on success.
func (t RegistryTelemetry) RecordPush(skillID string, start time.Time, outcome string) {
	t.Metrics.IncCounter(pushSpanName+".total", 1, "skillId", skillID, "result", outcome)
	if outcome == "ok" {
		t.Metrics.RecordTimer(pushSpanName+".duration", time.Since(start), "skillId", skillID)
	}
}
