package bench

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/abdul-hamid-achik/httphelper/packages/http"
)

// RequestFactory builds a fresh request for every send. The runner closes
// each request after its send.
type RequestFactory func() (*http.Request, error)

// Runner executes bench runs
type Runner struct {
	opts     Options
	log      zerolog.Logger
	reporter *Reporter
	interval time.Duration
	now      func() time.Time
}

// RunnerOption configures the runner
type RunnerOption func(*Runner)

// WithLogger sets the logger
func WithLogger(l zerolog.Logger) RunnerOption {
	return func(r *Runner) {
		r.log = l
	}
}

// WithReporter enables progress output while the run is in flight
func WithReporter(reporter *Reporter) RunnerOption {
	return func(r *Runner) {
		r.reporter = reporter
	}
}

// WithProgressInterval sets how often progress is reported
func WithProgressInterval(d time.Duration) RunnerOption {
	return func(r *Runner) {
		r.interval = d
	}
}

// NewRunner creates a new bench runner
func NewRunner(opts Options, ropts ...RunnerOption) *Runner {
	r := &Runner{
		opts:     opts,
		log:      zerolog.Nop(),
		interval: time.Second,
		now:      time.Now,
	}
	for _, opt := range ropts {
		opt(r)
	}
	return r
}

// Run sends requests built by newRequest until the request count is reached,
// the duration elapses or ctx is done, and summarises the outcome.
func Run(ctx context.Context, opts Options, newRequest RequestFactory) (*Result, error) {
	return NewRunner(opts).Run(ctx, newRequest)
}

// Run executes the bench run
func (r *Runner) Run(ctx context.Context, newRequest RequestFactory) (*Result, error) {
	if err := r.opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	if newRequest == nil {
		return nil, fmt.Errorf("invalid options: request factory is nil")
	}

	runID := uuid.NewString()
	log := r.log.With().Str("run_id", runID).Logger()

	// Sends in flight when the duration elapses finish on the caller's ctx.
	sendCtx := ctx
	if r.opts.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.Duration)
		defer cancel()
	}

	var limiter *rate.Limiter
	if r.opts.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(r.opts.Rate), 1)
	}

	metrics := NewMetrics()
	metrics.Start(r.now())

	log.Info().
		Int("requests", r.opts.Requests).
		Float64("rate", r.opts.Rate).
		Int("concurrency", r.opts.Concurrency).
		Dur("duration", r.opts.Duration).
		Msg("bench started")

	jobs := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < r.opts.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range jobs {
				r.sendOne(sendCtx, newRequest, metrics)
			}
		}()
	}

	done := make(chan struct{})
	var progressWG sync.WaitGroup
	if r.reporter != nil {
		progressWG.Add(1)
		go func() {
			defer progressWG.Done()
			r.progressLoop(metrics, done)
		}()
	}

	dispatched := 0
dispatch:
	for r.opts.Requests == 0 || dispatched < r.opts.Requests {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				break
			}
		}
		select {
		case jobs <- struct{}{}:
			dispatched++
		case <-ctx.Done():
			break dispatch
		}
	}
	close(jobs)
	wg.Wait()

	metrics.Stop(r.now())
	close(done)
	progressWG.Wait()

	result := metrics.Result()
	result.RunID = runID

	log.Info().
		Int64("total", result.Total).
		Int64("errors", result.Errors).
		Dur("p50", result.P50).
		Dur("p99", result.P99).
		Msg("bench finished")

	return result, nil
}

func (r *Runner) sendOne(ctx context.Context, newRequest RequestFactory, metrics *Metrics) {
	req, err := newRequest()
	if err != nil {
		metrics.Record(0, 0, "build", err)
		r.log.Debug().Err(err).Msg("building request failed")
		return
	}
	defer req.Close()

	start := r.now()
	resp, err := req.Send(ctx)
	elapsed := r.now().Sub(start)
	if err != nil {
		metrics.Record(0, elapsed, errorKind(err), err)
		r.log.Debug().Err(err).Msg("send failed")
		return
	}
	metrics.Record(resp.Code(), elapsed, "", nil)
}

func (r *Runner) progressLoop(metrics *Metrics, done <-chan struct{}) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			r.reporter.Progress(metrics.Result())
		}
	}
}

// errorKind names the failure class of a send error.
func errorKind(err error) string {
	if errors.Is(err, http.ErrMaxRedirects) {
		return "max_redirects"
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return "canceled"
	}
	var reqErr *http.RequestError
	if errors.As(err, &reqErr) {
		switch reqErr.Code {
		case http.CodeResolveHost:
			return "resolve"
		case http.CodeConnect:
			return "connect"
		case http.CodeTimeout:
			return "timeout"
		case http.CodeTLS:
			return "tls"
		}
	}
	return "transport"
}
