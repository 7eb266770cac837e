package colorconv

import (
	"errors"
	"fmt"
)

var (
	// ErrCannotCreateContext indicates the conversion backend cannot service
	// the requested geometry and layouts at all.
	ErrCannotCreateContext = errors.New("cannot create color conversion context")

	// ErrScaleMismatch indicates a conversion produced a different number of
	// scanlines than the configured height.
	ErrScaleMismatch = errors.New("scale failed: scanline count mismatch")

	// ErrClosed indicates use of a converter after Close.
	ErrClosed = errors.New("converter closed")
)

// FatalError marks a failure after which no degraded mode exists. The
// owner decides the exit policy.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal: %v", e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err, or any error it wraps, is a *FatalError.
func IsFatal(err error) bool {
	var fatal *FatalError
	return errors.As(err, &fatal)
}
