package metrics

import (
	"math"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"

	"yqhp/hookrunner/pkg/types"
)

func TestDurationRecorderEmpty(t *testing.T) {
	assert.Equal(t, types.DurationStats{}, NewDurationRecorder().Snapshot())
}

func TestDurationRecorderBasic(t *testing.T) {
	r := NewDurationRecorder()
	for i := 1; i <= 100; i++ {
		r.Record(time.Duration(i) * time.Millisecond)
	}

	s := r.Snapshot()
	assert.Equal(t, int64(100), s.Count)
	assertClose(t, time.Millisecond, s.Min)
	assertClose(t, 100*time.Millisecond, s.Max)
	assertClose(t, 50500*time.Microsecond, s.Mean)
	assertClose(t, 50*time.Millisecond, s.P50)
	assertClose(t, 90*time.Millisecond, s.P90)
	assertClose(t, 95*time.Millisecond, s.P95)
	assertClose(t, 99*time.Millisecond, s.P99)

	r.Reset()
	assert.Equal(t, int64(0), r.Snapshot().Count)
}

func TestDurationRecorderClamps(t *testing.T) {
	r := NewDurationRecorder()
	r.Record(0)
	r.Record(2 * time.Hour)

	s := r.Snapshot()
	assert.Equal(t, int64(2), s.Count)
	assert.Equal(t, time.Microsecond, s.Min)
	assertClose(t, time.Hour, s.Max)
}

func TestRecordReportCountsRunTestsOnly(t *testing.T) {
	r := NewDurationRecorder()
	r.RecordReport(&types.FileReport{Verdicts: []types.Verdict{
		{Name: "a", Status: types.TestStatusPassed, Duration: 3 * time.Millisecond},
		{Name: "b", Status: types.TestStatusFailed, Duration: 5 * time.Millisecond},
		{Name: "c", Status: types.TestStatusSkipped},
		{Name: "d", Status: types.TestStatusTodo},
	}})
	assert.Equal(t, int64(2), r.Snapshot().Count)
}

func TestDurationRecorderConcurrent(t *testing.T) {
	r := NewDurationRecorder()
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 250; i++ {
				r.Record(time.Duration(i+1) * time.Microsecond)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(2000), r.Snapshot().Count)
}

func TestPercentileProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("percentiles match the sorted samples", prop.ForAll(
		func(samples []int) bool {
			if len(samples) == 0 {
				return true
			}
			r := NewDurationRecorder()
			for _, s := range samples {
				r.Record(time.Duration(s) * time.Millisecond)
			}
			sorted := append([]int(nil), samples...)
			sort.Ints(sorted)

			s := r.Snapshot()
			for _, c := range []struct {
				q   float64
				got time.Duration
			}{{50, s.P50}, {90, s.P90}, {95, s.P95}, {99, s.P99}} {
				want := time.Duration(expectedPercentile(sorted, c.q)) * time.Millisecond
				if !within(want, c.got) {
					return false
				}
			}
			return s.P50 <= s.P90 && s.P90 <= s.P95 && s.P95 <= s.P99 && s.P99 <= s.Max
		},
		gen.SliceOf(gen.IntRange(1, 60000)),
	))

	properties.TestingRun(t)
}

// expectedPercentile uses the same rank rule as the histogram.
func expectedPercentile(sorted []int, q float64) int {
	rank := int(q/100*float64(len(sorted)) + 0.5)
	if rank < 1 {
		rank = 1
	}
	return sorted[rank-1]
}

func within(want, got time.Duration) bool {
	diff := math.Abs(float64(got - want))
	return diff <= float64(want)*0.002+float64(time.Microsecond)
}

func assertClose(t *testing.T, want, got time.Duration) {
	t.Helper()
	assert.True(t, within(want, got), "want ~%v, got %v", want, got)
}
