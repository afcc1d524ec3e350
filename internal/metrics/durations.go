// Package metrics aggregates test durations into percentile summaries.
package metrics

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"yqhp/hookrunner/pkg/types"
)

const (
	minTrackable = int64(time.Microsecond)
	maxTrackable = int64(time.Hour)
	sigFigs      = 3
)

// DurationRecorder keeps an HDR histogram of durations at microsecond resolution.
// It is safe for concurrent use.
type DurationRecorder struct {
	mu   sync.Mutex
	hist *hdrhistogram.Histogram
}

// NewDurationRecorder creates an empty recorder tracking 1µs to 1h.
func NewDurationRecorder() *DurationRecorder {
	return &DurationRecorder{
		hist: hdrhistogram.New(minTrackable/1000, maxTrackable/1000, sigFigs),
	}
}

// Record adds one sample. Values outside the trackable range are clamped.
func (r *DurationRecorder) Record(d time.Duration) {
	v := int64(d)
	if v < minTrackable {
		v = minTrackable
	}
	if v > maxTrackable {
		v = maxTrackable
	}
	r.mu.Lock()
	_ = r.hist.RecordValue(v / 1000)
	r.mu.Unlock()
}

// RecordReport records the duration of every test that ran in fr.
func (r *DurationRecorder) RecordReport(fr *types.FileReport) {
	for _, v := range fr.Verdicts {
		if v.Status == types.TestStatusPassed || v.Status == types.TestStatusFailed {
			r.Record(v.Duration)
		}
	}
}

// Snapshot returns the current statistics.
func (r *DurationRecorder) Snapshot() types.DurationStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.hist.TotalCount()
	if n == 0 {
		return types.DurationStats{}
	}
	us := func(v int64) time.Duration { return time.Duration(v) * time.Microsecond }
	return types.DurationStats{
		Count: n,
		Min:   us(r.hist.Min()),
		Max:   us(r.hist.Max()),
		Mean:  time.Duration(r.hist.Mean() * float64(time.Microsecond)),
		P50:   us(r.hist.ValueAtQuantile(50)),
		P90:   us(r.hist.ValueAtQuantile(90)),
		P95:   us(r.hist.ValueAtQuantile(95)),
		P99:   us(r.hist.ValueAtQuantile(99)),
	}
}

// Reset drops all samples.
func (r *DurationRecorder) Reset() {
	r.mu.Lock()
	r.hist.Reset()
	r.mu.Unlock()
}
