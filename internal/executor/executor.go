package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"server/internal/domain"
)

// DefaultBudget is the wall-clock budget applied when an executor declares
// none of its own.
const DefaultBudget = 10 * time.Minute

// Executor is the uniform contract every asset-type generator implements.
// Generate must be safely re-invocable: the pipeline only commits a URL on a
// successful return, so a repeated invocation after an unknown partial
// failure cannot corrupt state. Budget informs the stuck-job watchdog.
type Executor interface {
	Generate(ctx context.Context, target *domain.Target, assetType domain.AssetType) (string, error)
	Budget() time.Duration
}

// TerminalError marks a failure that is not worth retrying: invalid input,
// policy rejection, misconfiguration. Everything else (timeouts, transient
// capacity errors) is treated as retryable.
type TerminalError struct {
	Err error
}

func (e *TerminalError) Error() string { return e.Err.Error() }

func (e *TerminalError) Unwrap() error { return e.Err }

// Terminal wraps err so the dispatcher stops retrying the asset.
func Terminal(err error) error {
	if err == nil {
		return nil
	}
	return &TerminalError{Err: err}
}

// Terminalf is Terminal over a formatted error.
func Terminalf(format string, args ...any) error {
	return &TerminalError{Err: fmt.Errorf(format, args...)}
}

// IsTerminal reports whether err was classified as a terminal failure.
func IsTerminal(err error) bool {
	var te *TerminalError
	return errors.As(err, &te)
}
