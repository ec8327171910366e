package bench

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetricsRecord(t *testing.T) {
	m := NewMetrics()
	start := time.Now()
	m.Start(start)

	m.Record(200, 100*time.Millisecond, "", nil)
	m.Record(200, 150*time.Millisecond, "", nil)
	m.Record(404, 200*time.Millisecond, "", nil)
	m.Record(0, 50*time.Millisecond, "connect", errors.New("refused"))

	m.Stop(start.Add(2 * time.Second))

	res := m.Result()
	assert.Equal(t, int64(4), res.Total)
	assert.Equal(t, int64(1), res.Errors)
	assert.Equal(t, map[int]int64{200: 2, 404: 1}, res.Statuses)
	assert.Equal(t, map[string]int64{"connect": 1}, res.ErrorKinds)
	assert.Equal(t, []int{200, 404}, res.StatusCodes())
	assert.Equal(t, int64(1), res.Non2xx())
	assert.Equal(t, 2*time.Second, res.Duration)
	assert.InDelta(t, 2.0, res.RPS, 0.001)
	assert.InDelta(t, 0.25, res.ErrorRate, 0.001)
}

func TestMetricsPercentiles(t *testing.T) {
	m := NewMetrics()
	m.Start(time.Now())
	for i := 1; i <= 100; i++ {
		m.Record(200, time.Duration(i)*time.Millisecond, "", nil)
	}
	m.Stop(time.Now())

	res := m.Result()
	assert.InDelta(t, float64(50*time.Millisecond), float64(res.P50), float64(time.Millisecond))
	assert.InDelta(t, float64(90*time.Millisecond), float64(res.P90), float64(time.Millisecond))
	assert.InDelta(t, float64(99*time.Millisecond), float64(res.P99), float64(time.Millisecond))
	assert.InDelta(t, float64(100*time.Millisecond), float64(res.Max), float64(time.Millisecond))
	assert.InDelta(t, float64(time.Millisecond), float64(res.Min), float64(10*time.Microsecond))
}

func TestMetricsClampsLatency(t *testing.T) {
	m := NewMetrics()
	m.Start(time.Now())
	m.Record(200, 0, "", nil)
	m.Record(200, 2*time.Minute, "", nil)
	m.Stop(time.Now())

	res := m.Result()
	assert.Equal(t, time.Microsecond, res.Min)
	assert.InDelta(t, float64(60*time.Second), float64(res.Max), float64(100*time.Millisecond))
}

func TestMetricsEmpty(t *testing.T) {
	m := NewMetrics()
	now := time.Now()
	m.Start(now)
	m.Stop(now)

	res := m.Result()
	assert.Zero(t, res.Total)
	assert.Zero(t, res.P50)
	assert.Zero(t, res.RPS)
	assert.Zero(t, res.ErrorRate)
	assert.Empty(t, res.StatusCodes())
}

func TestEvaluateThresholds(t *testing.T) {
	res := &Result{
		P50:       40 * time.Millisecond,
		P90:       120 * time.Millisecond,
		P99:       300 * time.Millisecond,
		Max:       500 * time.Millisecond,
		ErrorRate: 0.02,
		RPS:       80,
	}

	results := res.EvaluateThresholds(Thresholds{
		P50:       50 * time.Millisecond,
		P99:       200 * time.Millisecond,
		ErrorRate: 0.05,
		MinRPS:    100,
	})

	byName := make(map[string]ThresholdResult)
	for _, r := range results {
		byName[r.Name] = r
	}
	assert.Len(t, results, 4)
	assert.True(t, byName["p50"].Passed)
	assert.False(t, byName["p99"].Passed)
	assert.Equal(t, "300ms", byName["p99"].Actual)
	assert.True(t, byName["error rate"].Passed)
	assert.Equal(t, "2%", byName["error rate"].Actual)
	assert.False(t, byName["min RPS"].Passed)
	assert.Equal(t, "> 100", byName["min RPS"].Expected)
}
