// Package observe defines the logging, metrics, and tracing seams shared by
// the engine components. Implementations are injected through options; every
// seam defaults to a no-op so components stay dependency-free by default.
package observe

import (
	"context"
	"time"
)

// Logger is the minimal structured logging surface used by engine components.
// Key-value pairs alternate keys and values, slog style.
type Logger interface {
	Debug(msg string, kv ...any)
	Info(msg string, kv ...any)
	Warn(msg string, kv ...any)
	Error(msg string, kv ...any)
}

// MetricsRecorder aggregates operation outcomes and durations.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// TraceSpan is one in-flight traced operation.
type TraceSpan interface {
	End(err error)
}

// Tracer starts spans around orchestrated operations.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// NopLogger returns a logger that discards everything.
func NopLogger() Logger { return nopLogger{} }

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// NopMetrics returns a recorder that discards everything.
func NopMetrics() MetricsRecorder { return nopMetrics{} }

type nopMetrics struct{}

func (nopMetrics) Observe(context.Context, string, bool, time.Duration) {}

// NopTracer returns a tracer producing no-op spans.
func NopTracer() Tracer { return nopTracer{} }

type (
	nopTracer struct{}
	nopSpan   struct{}
)

func (nopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, nopSpan{}
}

func (nopSpan) End(error) {}
