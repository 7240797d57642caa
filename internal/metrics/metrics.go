package metrics

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// Where a delivery attempt came from.
const (
	SourceLive  = "live"
	SourceRetry = "retry"
)

const (
	resultSuccess = "success"
	resultFailure = "failure"
)

type attemptKey struct {
	source string
	result string
}

// Recorder accumulates counters for one backend. The zero value is not
// usable; call NewRecorder. Recorder is safe for concurrent use.
type Recorder struct {
	mu        sync.Mutex
	backend   string
	attempts  map[attemptKey]float64
	queueLen  float64
	lastCycle time.Time
	now       func() time.Time
}

// NewRecorder returns a Recorder labelling every series with backend.
func NewRecorder(backend string) *Recorder {
	return &Recorder{
		backend:  backend,
		attempts: make(map[attemptKey]float64),
		now:      time.Now,
	}
}

// Delivered counts a successful delivery.
func (r *Recorder) Delivered(source string) { r.add(source, resultSuccess) }

// Failed counts a failed delivery.
func (r *Recorder) Failed(source string) { r.add(source, resultFailure) }

func (r *Recorder) add(source, result string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.attempts[attemptKey{source, result}]++
	r.mu.Unlock()
}

// RetryCycle records the end of a retry cycle and the queue length it
// left behind.
func (r *Recorder) RetryCycle(queueLen int) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.queueLen = float64(queueLen)
	r.lastCycle = r.now()
	r.mu.Unlock()
}

// Count returns the current value of one attempts counter.
func (r *Recorder) Count(source string, success bool) float64 {
	result := resultFailure
	if success {
		result = resultSuccess
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attempts[attemptKey{source, result}]
}

// Families returns the current state as metric families sorted by name.
func (r *Recorder) Families() []*dto.MetricFamily {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := make([]attemptKey, 0, len(r.attempts))
	for k := range r.attempts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].source != keys[j].source {
			return keys[i].source < keys[j].source
		}
		return keys[i].result < keys[j].result
	})

	attempts := &dto.MetricFamily{
		Name: ptr("deckshot_deliveries_total"),
		Help: ptr("Delivery attempts by source and result."),
		Type: dto.MetricType_COUNTER.Enum(),
	}
	for _, k := range keys {
		attempts.Metric = append(attempts.Metric, &dto.Metric{
			Label: []*dto.LabelPair{
				label("backend", r.backend),
				label("result", k.result),
				label("source", k.source),
			},
			Counter: &dto.Counter{Value: ptr(r.attempts[k])},
		})
	}

	queue := gauge("deckshot_queue_length", "Screenshots waiting for a retry.", r.backend, r.queueLen)

	var last float64
	if !r.lastCycle.IsZero() {
		last = float64(r.lastCycle.Unix())
	}
	cycle := gauge("deckshot_last_retry_cycle_timestamp_seconds", "Unix time of the last completed retry cycle.", r.backend, last)

	families := []*dto.MetricFamily{cycle, queue}
	if len(attempts.Metric) > 0 {
		families = append([]*dto.MetricFamily{attempts}, families...)
	}
	return families
}

// WriteFile writes the text exposition to path, replacing it atomically so
// a collector never reads a partial file.
func (r *Recorder) WriteFile(path string) error {
	var buf bytes.Buffer
	for _, mf := range r.Families() {
		if _, err := expfmt.MetricFamilyToText(&buf, mf); err != nil {
			return fmt.Errorf("metrics: encode %s: %w", mf.GetName(), err)
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("metrics: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("metrics: write: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("metrics: chmod: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("metrics: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("metrics: rename: %w", err)
	}
	return nil
}

func gauge(name, help, backend string, v float64) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name: ptr(name),
		Help: ptr(help),
		Type: dto.MetricType_GAUGE.Enum(),
		Metric: []*dto.Metric{{
			Label: []*dto.LabelPair{label("backend", backend)},
			Gauge: &dto.Gauge{Value: ptr(v)},
		}},
	}
}

func label(name, value string) *dto.LabelPair {
	return &dto.LabelPair{Name: ptr(name), Value: ptr(value)}
}

func ptr[T any](v T) *T { return &v }
