package observe

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNopImplementationsDoNothing(t *testing.T) {
	logger := NopLogger()
	logger.Debug("d", "k", "v")
	logger.Info("i")
	logger.Warn("w")
	logger.Error("e")

	NopMetrics().Observe(context.Background(), "op", true, time.Millisecond)

	_, span := NopTracer().Start(context.Background(), "op")
	span.End(nil)
}

func TestExpvarRecorderAggregates(t *testing.T) {
	rec := NewExpvarMetricsRecorder("")
	ctx := context.Background()

	rec.Observe(ctx, "sync_resources", true, 10*time.Millisecond)
	rec.Observe(ctx, "sync_resources", true, 5*time.Millisecond)
	rec.Observe(ctx, "sync_resources", false, time.Millisecond)
	rec.Observe(ctx, "", true, time.Second) // ignored

	snap := rec.Snapshot()
	if snap.Results["sync_resources"]["success"] != 2 {
		t.Fatalf("success count = %d, want 2", snap.Results["sync_resources"]["success"])
	}
	if snap.Results["sync_resources"]["error"] != 1 {
		t.Fatalf("error count = %d, want 1", snap.Results["sync_resources"]["error"])
	}
	if snap.DurationsMS["sync_resources"] < 15 {
		t.Fatalf("durations = %v, want at least 15ms recorded", snap.DurationsMS)
	}
}

func TestJSONTracerEmitsSpans(t *testing.T) {
	var buf bytes.Buffer
	tracer := NewJSONTracer(&buf)

	_, span := tracer.Start(context.Background(), "sync_academic")
	span.End(nil)
	_, span = tracer.Start(context.Background(), "sync_academic")
	span.End(errors.New("boom"))

	entries := tracer.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(entries))
	}
	if entries[0].Status != "success" || entries[1].Status != "error" {
		t.Fatalf("unexpected span statuses: %+v", entries)
	}
	if entries[1].Error != "boom" {
		t.Fatalf("error message not retained: %+v", entries[1])
	}
	if !strings.Contains(buf.String(), "sync_academic") {
		t.Fatalf("span not serialized to writer: %s", buf.String())
	}
}

func TestPrometheusRecorderRegisters(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewPrometheusMetricsRecorder(reg)
	if err != nil {
		t.Fatalf("register collectors: %v", err)
	}

	rec.Observe(context.Background(), "sync_students", true, 3*time.Millisecond)
	rec.Observe(context.Background(), "sync_students", false, time.Millisecond)
	rec.Observe(context.Background(), "", true, time.Millisecond) // ignored

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := false
	for _, mf := range families {
		if mf.GetName() == "examcore_sync_operation_results_total" {
			found = true
			total := 0.0
			for _, m := range mf.GetMetric() {
				total += m.GetCounter().GetValue()
			}
			if total != 2 {
				t.Fatalf("result counter total = %v, want 2", total)
			}
		}
	}
	if !found {
		t.Fatalf("result counter family not gathered")
	}

	if _, err := NewPrometheusMetricsRecorder(reg); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}
}
