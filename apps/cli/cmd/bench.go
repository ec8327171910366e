package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/httphelper/packages/auth/oauth2"
	"github.com/abdul-hamid-achik/httphelper/packages/bench"
	"github.com/abdul-hamid-achik/httphelper/packages/http"
	"github.com/abdul-hamid-achik/httphelper/packages/reqfile"
)

var benchCmd = &cobra.Command{
	Use:   "bench [url]",
	Short: "Send a request repeatedly and summarise latencies",
	Long: `Send the same request many times, paced by a rate limiter, and print
latency percentiles and status code counts.

Examples:
  httphelper bench https://example.com -n 200
  httphelper bench https://example.com -n 1000 --rate 100 -c 10
  httphelper bench --file login.yaml --duration 1m --rate 20
  httphelper bench https://example.com -n 500 --threshold "p90<200ms,errors<1%"
  httphelper bench https://example.com -n 100 --output json`,
	Args: cobra.MaximumNArgs(1),
	RunE: benchCommand,
}

var (
	benchRequest     requestFlags
	benchCount       int
	benchRate        float64
	benchConcurrency int
	benchDuration    string
	benchThreshold   string
	benchOutput      string
	benchNoProgress  bool
)

func init() {
	benchRequest.register(benchCmd)

	defaults := bench.DefaultOptions()
	fs := benchCmd.Flags()
	fs.IntVarP(&benchCount, "requests", "n", defaults.Requests, "Number of requests; 0 runs until --duration elapses")
	fs.Float64Var(&benchRate, "rate", defaults.Rate, "Target requests per second; 0 sends as fast as possible")
	fs.IntVarP(&benchConcurrency, "concurrency", "c", getEnvInt("HTTPHELPER_BENCH_CONCURRENCY", defaults.Concurrency), "Concurrent workers (env: HTTPHELPER_BENCH_CONCURRENCY)")
	fs.StringVar(&benchDuration, "duration", "", "Stop after this long (e.g., 30s, 5m)")
	fs.StringVar(&benchThreshold, "threshold", "", "Pass/fail thresholds (e.g., \"p90<200ms,errors<1%,rps>50\")")
	fs.StringVarP(&benchOutput, "output", "o", "console", "Output format: console, json")
	fs.BoolVar(&benchNoProgress, "no-progress", false, "Disable progress lines while running")
}

func benchCommand(cmd *cobra.Command, args []string) error {
	var rawURL string
	if len(args) > 0 {
		rawURL = args[0]
	}
	if rawURL == "" && benchRequest.file == "" {
		return withExitCode(ExitUsageError, fmt.Errorf("a URL or --file is required"))
	}

	opts := bench.Options{
		Requests:    benchCount,
		Rate:        benchRate,
		Concurrency: benchConcurrency,
	}
	if benchDuration != "" {
		d, err := time.ParseDuration(benchDuration)
		if err != nil {
			return withExitCode(ExitUsageError, fmt.Errorf("invalid duration value %q: %w (use format like 30s, 1m)", benchDuration, err))
		}
		opts.Duration = d
		if !cmd.Flags().Changed("requests") {
			opts.Requests = 0
		}
	}
	if benchThreshold != "" {
		t, err := bench.ParseThresholds(benchThreshold)
		if err != nil {
			return withExitCode(ExitUsageError, err)
		}
		opts.Thresholds = t
	}
	if err := opts.Validate(); err != nil {
		return withExitCode(ExitUsageError, err)
	}

	var file *reqfile.File
	if benchRequest.file != "" {
		var err error
		file, err = reqfile.Load(benchRequest.file)
		if err != nil {
			return withExitCode(ExitUsageError, err)
		}
	}

	client, _ := benchRequest.newClient(cmd, app)

	// Build once up front so flag errors surface before the run starts.
	probe, err := benchRequest.build(client, file, rawURL)
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}
	method, target := probe.Method().String(), probe.URL()
	_ = probe.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// One provider for the run so an oauth2 token is fetched once.
	tokens := oauth2.NewProvider(client)

	jsonOutput := benchOutput == "json"
	reporter := bench.NewReporter(
		bench.WithWriter(cmd.OutOrStdout()),
		bench.WithNoColor(app.cfg.GetNoColor()),
	)
	if !jsonOutput {
		reporter.Header(method, target, opts)
	}

	runnerOpts := []bench.RunnerOption{bench.WithLogger(app.log.Logger)}
	if !jsonOutput && !benchNoProgress {
		progress := bench.NewReporter(
			bench.WithWriter(cmd.ErrOrStderr()),
			bench.WithNoColor(app.cfg.GetNoColor()),
		)
		runnerOpts = append(runnerOpts, bench.WithReporter(progress))
	}

	result, err := bench.NewRunner(opts, runnerOpts...).Run(ctx, func() (*http.Request, error) {
		req, err := benchRequest.build(client, file, rawURL)
		if err != nil {
			return nil, err
		}
		if err := benchRequest.authorize(ctx, tokens, file, req); err != nil {
			_ = req.Close()
			return nil, err
		}
		return req, nil
	})
	if err != nil {
		return err
	}

	thresholds := result.EvaluateThresholds(opts.Thresholds)
	if jsonOutput {
		if err := reporter.JSONSummary(result, thresholds); err != nil {
			return err
		}
	} else {
		reporter.Summary(result, thresholds)
	}

	for _, tr := range thresholds {
		if !tr.Passed {
			return withExitCode(ExitFailure, nil)
		}
	}
	return nil
}
