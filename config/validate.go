package config

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig indicates a configuration that cannot be serviced.
var ErrInvalidConfig = errors.New("invalid configuration")

// Validate checks the fields every session needs before any resource is
// acquired: dimensions, pixel layouts and the numeric codec knobs.
func Validate(c Config) error {
	if c.Width == 0 {
		return fmt.Errorf("%w: no width set", ErrInvalidConfig)
	}
	if c.Height == 0 {
		return fmt.Errorf("%w: no height set", ErrInvalidConfig)
	}
	if !c.SourceFormat.Valid() {
		return fmt.Errorf("%w: no source pixel format set", ErrInvalidConfig)
	}
	if !c.DestFormat.Valid() {
		return fmt.Errorf("%w: no destination pixel format set", ErrInvalidConfig)
	}
	if c.Width < 0 || c.Height < 0 || c.Width > MaxDimension || c.Height > MaxDimension {
		return fmt.Errorf("%w: dimensions %dx%d out of range", ErrInvalidConfig, c.Width, c.Height)
	}
	if c.FrameRate <= 0 {
		return fmt.Errorf("%w: frame rate must be positive, got %d", ErrInvalidConfig, c.FrameRate)
	}
	if c.FrameMultiplier < 0 {
		return fmt.Errorf("%w: frame multiplier must not be negative, got %d", ErrInvalidConfig, c.FrameMultiplier)
	}
	if c.BFrames < 0 || c.BFrames > MaxBFrames {
		return fmt.Errorf("%w: b-frame count %d out of range [0, %d]", ErrInvalidConfig, c.BFrames, MaxBFrames)
	}
	if c.QP < NoQP || c.QP > MaxQP {
		return fmt.Errorf("%w: quantizer %d out of range [%d, %d]", ErrInvalidConfig, c.QP, NoQP, MaxQP)
	}
	if c.BitRate < 0 {
		return fmt.Errorf("%w: bit rate must not be negative, got %d", ErrInvalidConfig, c.BitRate)
	}
	return nil
}

// ValidateDestination checks the transport fields. It is separate from
// Validate because a codec session on its own never touches the network.
func ValidateDestination(c Config) error {
	if c.DestAddress == "" {
		return fmt.Errorf("%w: no destination address set", ErrInvalidConfig)
	}
	if c.DestPort <= 0 || c.DestPort > 65535 {
		return fmt.Errorf("%w: destination port %d out of range", ErrInvalidConfig, c.DestPort)
	}
	return nil
}
