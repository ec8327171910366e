package bench

import (
	"math"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

const (
	minLatencyUs = 1
	maxLatencyUs = 60_000_000
)

// Metrics collects the outcome of every send. It is safe for concurrent use.
type Metrics struct {
	mu        sync.Mutex
	histogram *hdrhistogram.Histogram
	total     int64
	errors    int64
	statuses  map[int]int64
	errKinds  map[string]int64

	startTime time.Time
	endTime   time.Time
}

// NewMetrics creates a new Metrics collector
func NewMetrics() *Metrics {
	return &Metrics{
		// 1us to 60s range, 3 significant digits
		histogram: hdrhistogram.New(minLatencyUs, maxLatencyUs, 3),
		statuses:  make(map[int]int64),
		errKinds:  make(map[string]int64),
	}
}

func (m *Metrics) Start(now time.Time) {
	m.mu.Lock()
	m.startTime = now
	m.mu.Unlock()
}

func (m *Metrics) Stop(now time.Time) {
	m.mu.Lock()
	m.endTime = now
	m.mu.Unlock()
}

// Record records one send. A non-nil err counts as an error under kind;
// status is recorded otherwise.
func (m *Metrics) Record(status int, duration time.Duration, kind string, err error) {
	latencyUs := duration.Microseconds()
	if latencyUs < minLatencyUs {
		latencyUs = minLatencyUs
	}
	if latencyUs > maxLatencyUs {
		latencyUs = maxLatencyUs
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.total++
	if err != nil {
		m.errors++
		m.errKinds[kind]++
		return
	}
	m.statuses[status]++
	_ = m.histogram.RecordValue(latencyUs)
}

// Result is the summary of a run.
type Result struct {
	RunID    string
	Duration time.Duration

	Total  int64
	Errors int64
	// Statuses counts responses per status code.
	Statuses map[int]int64
	// ErrorKinds counts failed sends per error kind.
	ErrorKinds map[string]int64

	RPS       float64
	ErrorRate float64

	P50  time.Duration
	P90  time.Duration
	P99  time.Duration
	Min  time.Duration
	Max  time.Duration
	Mean time.Duration
}

// StatusCodes returns the recorded status codes in ascending order.
func (r *Result) StatusCodes() []int {
	codes := make([]int, 0, len(r.Statuses))
	for code := range r.Statuses {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	return codes
}

// Non2xx counts responses outside the 2xx range.
func (r *Result) Non2xx() int64 {
	var n int64
	for code, count := range r.Statuses {
		if code < 200 || code >= 300 {
			n += count
		}
	}
	return n
}

// Result returns the current summary.
func (m *Metrics) Result() *Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	duration := m.endTime.Sub(m.startTime)
	if m.endTime.IsZero() {
		duration = time.Since(m.startTime)
	}

	r := &Result{
		Duration:   duration,
		Total:      m.total,
		Errors:     m.errors,
		Statuses:   make(map[int]int64, len(m.statuses)),
		ErrorKinds: make(map[string]int64, len(m.errKinds)),
	}
	for k, v := range m.statuses {
		r.Statuses[k] = v
	}
	for k, v := range m.errKinds {
		r.ErrorKinds[k] = v
	}

	if duration > 0 {
		r.RPS = float64(m.total) / duration.Seconds()
	}
	if m.total > 0 {
		r.ErrorRate = float64(m.errors) / float64(m.total)
	}

	if m.histogram.TotalCount() > 0 {
		r.P50 = usToDuration(m.histogram.ValueAtQuantile(50))
		r.P90 = usToDuration(m.histogram.ValueAtQuantile(90))
		r.P99 = usToDuration(m.histogram.ValueAtQuantile(99))
		r.Min = usToDuration(m.histogram.Min())
		r.Max = usToDuration(m.histogram.Max())
		r.Mean = time.Duration(m.histogram.Mean()) * time.Microsecond
	}

	return r
}

func usToDuration(us int64) time.Duration {
	return time.Duration(us) * time.Microsecond
}

// EvaluateThresholds evaluates the thresholds against the result
func (r *Result) EvaluateThresholds(t Thresholds) []ThresholdResult {
	var results []ThresholdResult

	latency := func(name string, limit, actual time.Duration) {
		if limit <= 0 {
			return
		}
		results = append(results, ThresholdResult{
			Name:     name,
			Passed:   actual <= limit,
			Expected: "< " + limit.String(),
			Actual:   actual.String(),
		})
	}
	latency("p50", t.P50, r.P50)
	latency("p90", t.P90, r.P90)
	latency("p99", t.P99, r.P99)
	latency("max latency", t.MaxLatency, r.Max)

	if t.ErrorRate > 0 {
		results = append(results, ThresholdResult{
			Name:     "error rate",
			Passed:   r.ErrorRate <= t.ErrorRate,
			Expected: formatPercent(t.ErrorRate),
			Actual:   formatPercent(r.ErrorRate),
		})
	}

	if t.MinRPS > 0 {
		results = append(results, ThresholdResult{
			Name:     "min RPS",
			Passed:   r.RPS >= t.MinRPS,
			Expected: "> " + formatFloat(t.MinRPS),
			Actual:   formatFloat(r.RPS),
		})
	}

	return results
}

func formatPercent(f float64) string {
	return formatFloat(f*100) + "%"
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(math.Round(f*100)/100, 'f', -1, 64)
}
