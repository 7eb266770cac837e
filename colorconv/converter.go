// Package colorconv adapts a color conversion backend to the fixed
// geometry of an encoding session.
package colorconv

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/framecast/picture"
	"github.com/opd-ai/framecast/pixfmt"
)

// Context is a conversion context bound to one source layout, one
// destination layout and one size.
type Context interface {
	// Scale converts src into dst and returns the number of scanlines written.
	Scale(src picture.Raw, dst *picture.Picture) (int, error)
	// Close releases the context.
	Close() error
}

// Backend creates conversion contexts.
type Backend interface {
	NewContext(src, dst pixfmt.Format, width, height int) (Context, error)
}

// Converter owns a conversion context for the lifetime of a session.
type Converter struct {
	ctx    Context
	src    pixfmt.Format
	dst    pixfmt.Format
	width  int
	height int
}

// Open creates a converter. A backend that cannot create the context
// yields an error wrapping ErrCannotCreateContext inside a *FatalError.
func Open(backend Backend, src, dst pixfmt.Format, width, height int) (*Converter, error) {
	if backend == nil {
		backend = SoftwareBackend{}
	}

	ctx, err := backend.NewContext(src, dst, width, height)
	if err == nil && ctx == nil {
		err = fmt.Errorf("backend returned no context")
	}
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "colorconv.Open",
			"src":      src.String(),
			"dst":      dst.String(),
			"width":    width,
			"height":   height,
			"error":    err.Error(),
		}).Error("Cannot create conversion context")
		return nil, &FatalError{Err: fmt.Errorf("%w: %s -> %s %dx%d: %v", ErrCannotCreateContext, src, dst, width, height, err)}
	}

	logrus.WithFields(logrus.Fields{
		"function": "colorconv.Open",
		"src":      src.String(),
		"dst":      dst.String(),
		"width":    width,
		"height":   height,
	}).Debug("Conversion context created")

	return &Converter{
		ctx:    ctx,
		src:    src,
		dst:    dst,
		width:  width,
		height: height,
	}, nil
}

// Convert converts one raw picture into dst. Any backend failure, and any
// result whose scanline count differs from the configured height, is
// reported as ErrScaleMismatch.
func (c *Converter) Convert(src picture.Raw, dst *picture.Picture) error {
	if c.ctx == nil {
		return ErrClosed
	}

	h, err := c.ctx.Scale(src, dst)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrScaleMismatch, err)
	}
	if h != c.height {
		return fmt.Errorf("%w: got %d rows, want %d", ErrScaleMismatch, h, c.height)
	}
	return nil
}

// Close releases the context. It is safe to call more than once.
func (c *Converter) Close() error {
	if c.ctx == nil {
		return nil
	}
	err := c.ctx.Close()
	c.ctx = nil
	return err
}

// Source returns the source layout.
func (c *Converter) Source() pixfmt.Format {
	return c.src
}
