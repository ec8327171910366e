package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/httphelper/packages/core/config"
	"github.com/abdul-hamid-achik/httphelper/packages/core/env"
	"github.com/abdul-hamid-achik/httphelper/packages/http"
	"github.com/abdul-hamid-achik/httphelper/packages/logging"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var (
	configFlag      string
	envFileFlag     string
	verboseFlag     bool
	noColorFlag     bool
	logFileFlag     string
	logLevelFlag    string
	metricsFileFlag string
)

// session holds what every command shares once flags are parsed.
type session struct {
	cfg      *config.Config
	log      *logging.Logger
	registry *prometheus.Registry
	metrics  *http.Metrics
}

var app *session

var rootCmd = &cobra.Command{
	Use:   "httphelper",
	Short: "Send HTTP requests from the terminal.",
	Long: `httphelper sends HTTP requests with redirect following, cookie capture
and digest/AWS authentication, and benchmarks endpoints.

Examples:
  httphelper send https://httpbin.org/get -i
  httphelper send https://httpbin.org/post -X POST --json name=bob --json age=42
  httphelper send --file login.yaml --cookie-jar cookies.db
  httphelper bench https://example.com -n 500 --rate 50 --threshold "p90<200ms"`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func Execute(v, bt string) {
	version = v
	buildTime = bt

	err := rootCmd.Execute()
	teardown()

	if err != nil {
		printError(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", getEnvString("HTTPHELPER_CONFIG", ""), "Path to config file (env: HTTPHELPER_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&envFileFlag, "env-file", getEnvString("HTTPHELPER_ENV_FILE", ""), "Path to .env file for ${VAR} expansion (env: HTTPHELPER_ENV_FILE)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Log request and response details")
	rootCmd.PersistentFlags().BoolVar(&noColorFlag, "no-color", getEnvBool("NO_COLOR", false), "Disable colored output (env: NO_COLOR)")
	rootCmd.PersistentFlags().StringVar(&logFileFlag, "log-file", "", "Also write JSON logs to a rotating file")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&metricsFileFlag, "metrics-file", "", "Write Prometheus metrics of the run to a text file")

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return withExitCode(ExitUsageError, fmt.Errorf("%w\n\n%s", err, cmd.UsageString()))
	})

	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(benchCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(cookiesCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(versionCmd)
}

// setup loads the env file and configuration and builds the logger.
func setup(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return withExitCode(ExitConfigError, err)
	}

	color.NoColor = cfg.GetNoColor()

	log, err := logging.New(logging.Options{
		Level:   cfg.LogLevel,
		Console: cmd.ErrOrStderr(),
		NoColor: cfg.GetNoColor(),
		File:    cfg.LogFile,
	})
	if err != nil {
		return withExitCode(ExitConfigError, err)
	}

	registry := prometheus.NewRegistry()
	app = &session{
		cfg:      cfg,
		log:      log,
		registry: registry,
		metrics:  http.NewMetricsWithRegistry(registry),
	}
	return nil
}

// loadConfig merges the config file, HTTPHELPER_* variables and the global
// flags, in increasing order of precedence.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if envFileFlag != "" {
		if _, err := env.LoadAndExportDotEnv(envFileFlag); err != nil {
			return nil, fmt.Errorf("loading env file: %w", err)
		}
	}

	cfg, err := config.LoadConfig(configFlag)
	if err != nil {
		return nil, err
	}

	envCfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	cfg = cfg.Merge(envCfg)

	flags := &config.Config{
		LogLevel: logLevelFlag,
		LogFile:  logFileFlag,
	}
	if verboseFlag {
		flags.Verbose = config.BoolPtr(true)
		if flags.LogLevel == "" {
			flags.LogLevel = "debug"
		}
	}
	if cmd.Flags().Changed("no-color") || noColorFlag {
		flags.NoColor = config.BoolPtr(noColorFlag)
	}
	cfg = cfg.Merge(flags)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// teardown flushes the metrics file and closes the log file.
func teardown() {
	if app == nil {
		return
	}
	if metricsFileFlag != "" {
		if err := prometheus.WriteToTextfile(metricsFileFlag, app.registry); err != nil {
			app.log.Error().Err(err).Str("path", metricsFileFlag).Msg("writing metrics file failed")
		}
	}
	if err := app.log.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		fmt.Fprintf(os.Stderr, "warning: closing log file: %v\n", err)
	}
}
