package measure

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultMetric(t *testing.T) {
	t.Parallel()

	msr := NewDefaultMeasure()
	mt := msr.AddMetric("process")
	assert.Same(t, mt, msr.GetMetric("process"))

	assert.Zero(t, mt.AVGDuration())
	assert.Zero(t, mt.AVGServerDuration())

	mt.AddDuration(10 * time.Millisecond)
	mt.AddDuration(20 * time.Millisecond)
	mt.AddFailure(30 * time.Millisecond)
	mt.AddServerDuration(4 * time.Millisecond)
	mt.AddServerDuration(8 * time.Millisecond)

	assert.Equal(t, 20*time.Millisecond, mt.AVGDuration())
	assert.Equal(t, 6*time.Millisecond, mt.AVGServerDuration())
	assert.Equal(t, 8*time.Millisecond, mt.LastServerDuration())
	assert.EqualValues(t, 3, mt.Total())
	assert.EqualValues(t, 1, mt.Failures())
	assert.Len(t, msr.AllMetrics(), 1)
}

func TestDefaultMeasureConcurrent(t *testing.T) {
	t.Parallel()

	msr := NewDefaultMeasure()
	wg := sync.WaitGroup{}
	wg.Add(20)

	for range 20 {
		go func() {
			defer wg.Done()
			msr.GetMetric("catalog").AddDuration(time.Millisecond)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 20, msr.GetMetric("catalog").Total())
}

func TestRound(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		in, want time.Duration
	}{
		"seconds":      {in: 1500 * time.Millisecond, want: 2 * time.Second},
		"milliseconds": {in: 1500 * time.Microsecond, want: 2 * time.Millisecond},
		"microseconds": {in: 1500 * time.Nanosecond, want: 2 * time.Microsecond},
		"nanoseconds":  {in: 999, want: 999},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, round(tc.in))
		})
	}
}
