// Command laiprep assesses LAI-PrEP bridge period attrition risk for single
// patients or CSV batches, validates risk model configurations and serves the
// assessment over MCP.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// Exit codes for different failure modes
const (
	ExitSuccess = 0 // Assessment or validation succeeded
	ExitFailed  = 1 // Patient input or configuration content was rejected
	ExitError   = 2 // Configuration could not be loaded, or a runtime error
)

// FailureError marks a run that completed but whose input was rejected: an
// invalid patient record, an unknown configuration key or a configuration
// that failed validation.
type FailureError struct {
	Err error
}

func (e *FailureError) Error() string {
	return e.Err.Error()
}

func (e *FailureError) Unwrap() error {
	return e.Err
}

func failure(err error) error {
	return &FailureError{Err: err}
}

func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var failureErr *FailureError
	if errors.As(err, &failureErr) {
		return ExitFailed
	}
	return ExitError
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCommand().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, "❌ Error:", err)
	}
	os.Exit(exitCode(err))
}
