package bench

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/tidwall/sjson"
)

// Reporter handles output for bench runs
type Reporter struct {
	writer  io.Writer
	noColor bool

	green  *color.Color
	red    *color.Color
	yellow *color.Color
	cyan   *color.Color
	bold   *color.Color
}

// ReporterOption configures the reporter
type ReporterOption func(*Reporter)

// WithWriter sets the output writer
func WithWriter(w io.Writer) ReporterOption {
	return func(r *Reporter) {
		r.writer = w
	}
}

// WithNoColor disables colored output
func WithNoColor(noColor bool) ReporterOption {
	return func(r *Reporter) {
		r.noColor = noColor
	}
}

// NewReporter creates a new reporter
func NewReporter(opts ...ReporterOption) *Reporter {
	r := &Reporter{
		writer: os.Stdout,
	}

	for _, opt := range opts {
		opt(r)
	}

	r.green = r.newColor(color.FgGreen)
	r.red = r.newColor(color.FgRed)
	r.yellow = r.newColor(color.FgYellow)
	r.cyan = r.newColor(color.FgCyan)
	r.bold = r.newColor(color.Bold)

	return r
}

func (r *Reporter) newColor(attr color.Attribute) *color.Color {
	c := color.New(attr)
	if r.noColor {
		c.DisableColor()
	} else {
		c.EnableColor()
	}
	return c
}

// Header prints the run header
func (r *Reporter) Header(method, target string, opts Options) {
	fmt.Fprintln(r.writer)
	r.cyan.Fprintf(r.writer, "Benchmarking: %s %s\n", method, target)

	var details []string
	if opts.Requests > 0 {
		details = append(details, fmt.Sprintf("Requests: %d", opts.Requests))
	}
	if opts.Duration > 0 {
		details = append(details, fmt.Sprintf("Duration: %s", formatDuration(opts.Duration)))
	}
	if opts.Rate > 0 {
		details = append(details, fmt.Sprintf("Rate: %s req/s", formatFloat(opts.Rate)))
	} else {
		details = append(details, "Rate: unpaced")
	}
	details = append(details, fmt.Sprintf("Concurrency: %d", opts.Concurrency))

	fmt.Fprintf(r.writer, "%s\n\n", strings.Join(details, " | "))
}

// Progress prints a one-line snapshot of a run in flight
func (r *Reporter) Progress(res *Result) {
	fmt.Fprintf(r.writer, "[%s] %s sent | %s errors | %.1f req/s | p50 %s\n",
		formatDuration(res.Duration),
		formatNumber(res.Total),
		formatNumber(res.Errors),
		res.RPS,
		formatLatency(res.P50))
}

// Summary prints the final summary
func (r *Reporter) Summary(res *Result, thresholdResults []ThresholdResult) {
	fmt.Fprintln(r.writer)
	r.bold.Fprintln(r.writer, "BENCH SUMMARY")
	fmt.Fprintln(r.writer, strings.Repeat("─", 40))

	fmt.Fprintf(r.writer, "Run:        %s\n", res.RunID)
	fmt.Fprintf(r.writer, "Duration:   %s\n", formatDuration(res.Duration))
	fmt.Fprintf(r.writer, "Total:      ")
	r.bold.Fprintf(r.writer, "%s", formatNumber(res.Total))
	fmt.Fprintf(r.writer, " requests (%.1f req/s)\n", res.RPS)

	fmt.Fprintf(r.writer, "Failed:     ")
	if res.Errors > 0 {
		r.red.Fprintf(r.writer, "%s", formatNumber(res.Errors))
	} else {
		fmt.Fprintf(r.writer, "%s", formatNumber(res.Errors))
	}
	fmt.Fprintf(r.writer, " (%.1f%%)\n", res.ErrorRate*100)

	if len(res.Statuses) > 0 {
		fmt.Fprintln(r.writer)
		r.bold.Fprintln(r.writer, "STATUS CODES")
		for _, code := range res.StatusCodes() {
			c := r.green
			switch {
			case code >= 500:
				c = r.red
			case code >= 300:
				c = r.yellow
			}
			c.Fprintf(r.writer, "  %d", code)
			fmt.Fprintf(r.writer, ": %s\n", formatNumber(res.Statuses[code]))
		}
	}

	if len(res.ErrorKinds) > 0 {
		fmt.Fprintln(r.writer)
		r.bold.Fprintln(r.writer, "ERRORS")
		for kind, n := range res.ErrorKinds {
			r.red.Fprintf(r.writer, "  %s", kind)
			fmt.Fprintf(r.writer, ": %s\n", formatNumber(n))
		}
	}

	fmt.Fprintln(r.writer)
	r.bold.Fprintln(r.writer, "LATENCY (ms)")
	fmt.Fprintf(r.writer, "  p50: %-6s | p90: %-6s | p99: %-6s | max: %s\n",
		formatLatencyMs(res.P50),
		formatLatencyMs(res.P90),
		formatLatencyMs(res.P99),
		formatLatencyMs(res.Max))
	fmt.Fprintf(r.writer, "  min: %-6s | mean: %s\n",
		formatLatencyMs(res.Min),
		formatLatencyMs(res.Mean))

	if len(thresholdResults) > 0 {
		fmt.Fprintln(r.writer)
		r.bold.Fprintln(r.writer, "THRESHOLDS")
		allPassed := true
		for _, tr := range thresholdResults {
			if tr.Passed {
				r.green.Fprintf(r.writer, "  ✓ ")
			} else {
				r.red.Fprintf(r.writer, "  ✗ ")
				allPassed = false
			}
			fmt.Fprintf(r.writer, "%s %s    (actual: %s)\n", tr.Name, tr.Expected, tr.Actual)
		}

		fmt.Fprintln(r.writer)
		if allPassed {
			r.green.Fprintln(r.writer, "All thresholds passed!")
		} else {
			r.red.Fprintln(r.writer, "Some thresholds failed!")
		}
	}

	fmt.Fprintln(r.writer)
}

// JSONSummary writes the result as a JSON document
func (r *Reporter) JSONSummary(res *Result, thresholdResults []ThresholdResult) error {
	doc := []byte(`{}`)
	set := func(path string, value any) error {
		var err error
		doc, err = sjson.SetBytes(doc, path, value)
		return err
	}

	fields := []struct {
		path  string
		value any
	}{
		{"runId", res.RunID},
		{"duration", res.Duration.String()},
		{"requests.total", res.Total},
		{"requests.failed", res.Errors},
		{"rates.rps", res.RPS},
		{"rates.errorRate", res.ErrorRate},
		{"latency.p50", res.P50.Milliseconds()},
		{"latency.p90", res.P90.Milliseconds()},
		{"latency.p99", res.P99.Milliseconds()},
		{"latency.min", res.Min.Milliseconds()},
		{"latency.max", res.Max.Milliseconds()},
		{"latency.mean", res.Mean.Milliseconds()},
	}
	for _, f := range fields {
		if err := set(f.path, f.value); err != nil {
			return err
		}
	}

	// ":" keeps numeric codes as object keys.
	for _, code := range res.StatusCodes() {
		if err := set("statuses.:"+strconv.Itoa(code), res.Statuses[code]); err != nil {
			return err
		}
	}
	for kind, n := range res.ErrorKinds {
		if err := set("errors."+kind, n); err != nil {
			return err
		}
	}
	for i, tr := range thresholdResults {
		prefix := "thresholds." + strconv.Itoa(i) + "."
		if err := set(prefix+"name", tr.Name); err != nil {
			return err
		}
		if err := set(prefix+"passed", tr.Passed); err != nil {
			return err
		}
		if err := set(prefix+"expected", tr.Expected); err != nil {
			return err
		}
		if err := set(prefix+"actual", tr.Actual); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintf(r.writer, "%s\n", doc)
	return err
}

// formatDuration formats a duration for display
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60
	if seconds == 0 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%dm %02ds", minutes, seconds)
}

func formatLatency(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dμs", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatLatencyMs(d time.Duration) string {
	ms := float64(d.Microseconds()) / 1000
	if ms < 1 {
		return fmt.Sprintf("%.2f", ms)
	}
	if ms < 10 {
		return fmt.Sprintf("%.1f", ms)
	}
	return fmt.Sprintf("%.0f", ms)
}

// formatNumber formats a number with thousands separators
func formatNumber(n int64) string {
	s := strconv.FormatInt(n, 10)
	if n < 0 || len(s) <= 3 {
		return s
	}

	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
