package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

func TestRecorder_Counts(t *testing.T) {
	r := NewRecorder("S3")
	r.Delivered(SourceLive)
	r.Delivered(SourceLive)
	r.Failed(SourceLive)
	r.Delivered(SourceRetry)

	if got := r.Count(SourceLive, true); got != 2 {
		t.Errorf("live success: got %v, want 2", got)
	}
	if got := r.Count(SourceLive, false); got != 1 {
		t.Errorf("live failure: got %v, want 1", got)
	}
	if got := r.Count(SourceRetry, false); got != 0 {
		t.Errorf("retry failure: got %v, want 0", got)
	}
}

func TestRecorder_NilIsNoop(t *testing.T) {
	var r *Recorder
	r.Delivered(SourceLive)
	r.Failed(SourceRetry)
	r.RetryCycle(3)
}

func TestWriteFile_ParsesAsPrometheusText(t *testing.T) {
	r := NewRecorder("Discord")
	r.now = func() time.Time { return time.Unix(1700000000, 0) }
	r.Delivered(SourceLive)
	r.Failed(SourceLive)
	r.Failed(SourceRetry)
	r.RetryCycle(4)

	path := filepath.Join(t.TempDir(), "deckshot.prom")
	if err := r.WriteFile(path); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(f)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	deliveries := mfs["deckshot_deliveries_total"]
	if deliveries == nil || len(deliveries.GetMetric()) != 3 {
		t.Fatalf("deckshot_deliveries_total: got %v", deliveries)
	}
	for _, m := range deliveries.GetMetric() {
		if labelValue(m, "backend") != "Discord" {
			t.Errorf("backend label: got %q", labelValue(m, "backend"))
		}
		if m.GetCounter().GetValue() != 1 {
			t.Errorf("%s/%s: got %v, want 1", labelValue(m, "source"), labelValue(m, "result"), m.GetCounter().GetValue())
		}
	}

	if got := mfs["deckshot_queue_length"].GetMetric()[0].GetGauge().GetValue(); got != 4 {
		t.Errorf("queue length: got %v, want 4", got)
	}
	if got := mfs["deckshot_last_retry_cycle_timestamp_seconds"].GetMetric()[0].GetGauge().GetValue(); got != 1700000000 {
		t.Errorf("last cycle: got %v", got)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %d entries", len(entries))
	}
}

func TestWriteFile_OmitsEmptyCounter(t *testing.T) {
	r := NewRecorder("noop")
	path := filepath.Join(t.TempDir(), "m.prom")
	if err := r.WriteFile(path); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(f)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, ok := mfs["deckshot_deliveries_total"]; ok {
		t.Error("deliveries family written without samples")
	}
	if _, ok := mfs["deckshot_queue_length"]; !ok {
		t.Error("queue length missing")
	}
}

func TestWriteFile_MissingDirectory(t *testing.T) {
	r := NewRecorder("noop")
	if err := r.WriteFile(filepath.Join(t.TempDir(), "absent", "m.prom")); err == nil {
		t.Fatal("expected error for a missing directory")
	}
}

func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}
