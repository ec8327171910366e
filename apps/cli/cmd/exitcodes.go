package cmd

import (
	"errors"

	"github.com/abdul-hamid-achik/httphelper/packages/core/config"
	"github.com/abdul-hamid-achik/httphelper/packages/http"
)

// Exit codes for httphelper CLI
const (
	// ExitSuccess indicates a 2xx response or a passed bench run
	ExitSuccess = 0

	// ExitFailure indicates a non-2xx response, a failed check or failed thresholds
	ExitFailure = 1

	// ExitConfigError indicates a configuration error
	ExitConfigError = 3

	// ExitNetworkError indicates a network/connection error
	ExitNetworkError = 4

	// ExitUsageError indicates invalid CLI usage
	ExitUsageError = 64
)

// exitError carries the process exit code of a failed command. A nil err
// exits without a message.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return ""
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func withExitCode(code int, err error) error {
	return &exitError{code: code, err: err}
}

// exitCode maps a command error to the process exit code.
func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}

	var reqErr *http.RequestError
	switch {
	case errors.Is(err, http.ErrMaxRedirects):
		return ExitFailure
	case errors.As(err, &reqErr):
		return ExitNetworkError
	case errors.Is(err, config.ErrInvalidConfig):
		return ExitConfigError
	case errors.Is(err, http.ErrInvalidArgument):
		return ExitUsageError
	}
	return ExitFailure
}
