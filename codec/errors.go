package codec

import (
	"errors"

	"github.com/opd-ai/framecast/colorconv"
	"github.com/opd-ai/framecast/config"
)

// Sentinel errors for codec session operations.
// These errors enable reliable error classification using errors.Is().

// Configuration errors.
var (
	// ErrInvalidConfig indicates width, height or a pixel layout is unset or unsupported.
	ErrInvalidConfig = config.ErrInvalidConfig

	// ErrAlreadyOpen indicates the session already holds an encoder; call Close first.
	ErrAlreadyOpen = errors.New("encoder already opened, call Close first")

	// ErrUnsupportedOutputFormat indicates a destination layout other than I420.
	ErrUnsupportedOutputFormat = errors.New("output pixel format must be i420")
)

// Resource acquisition errors.
var (
	// ErrEncoderOpenFailed indicates the encoder backend rejected the derived parameters.
	ErrEncoderOpenFailed = errors.New("cannot open the encoder")

	// ErrHeaderGenerationFailed indicates the encoder could not produce stream headers.
	ErrHeaderGenerationFailed = errors.New("encoder header generation failed")

	// ErrDumpFailed indicates the bitstream dump file could not be created or written.
	ErrDumpFailed = errors.New("bitstream dump failed")
)

// Per-frame errors.
var (
	// ErrFillFailed indicates the raw input buffer does not cover one frame.
	ErrFillFailed = errors.New("cannot fill the raw input picture")

	// ErrScaleMismatch indicates the color conversion returned the wrong number of scanlines.
	ErrScaleMismatch = colorconv.ErrScaleMismatch

	// ErrEncodeFailed indicates the encoder reported an error for a frame.
	ErrEncodeFailed = errors.New("encoding failed")
)

// State errors.
var (
	// ErrNotOpen indicates a frame was submitted to a session that is not open.
	ErrNotOpen = errors.New("not initialized, cannot encode")
)

// IsFatal reports whether err leaves no degraded mode, such as a color
// conversion context that cannot be created.
func IsFatal(err error) bool {
	return colorconv.IsFatal(err)
}

// IsFrameError reports whether err only concerns the submitted frame and
// leaves the session open.
func IsFrameError(err error) bool {
	return errors.Is(err, ErrFillFailed) ||
		errors.Is(err, ErrScaleMismatch) ||
		errors.Is(err, ErrEncodeFailed)
}
