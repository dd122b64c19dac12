package extract

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrAborted marks a run stopped by its cancellation handle.
	ErrAborted = errors.New("user aborted")
	// ErrNoBuffer marks a run that finished without producing audio.
	ErrNoBuffer = errors.New("no audio buffer returned")
)

// InitError reports a failed toolchain setup. The engine falls back to the
// recorder strategy when it occurs.
type InitError struct {
	Cause error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("Error loading audio toolchain - %v", e.Cause)
}

func (e *InitError) Unwrap() error { return e.Cause }

// classify maps a failed toolchain call to the abort sentinel when the run's
// context was the reason.
func classify(ctx context.Context, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrAborted
	}
	return fmt.Errorf("Audio creation failed - %v", err)
}

func aborted(ctx context.Context) error {
	if ctx.Err() != nil {
		return ErrAborted
	}
	return nil
}
