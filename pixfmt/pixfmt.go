// Package pixfmt enumerates the raw pixel layouts understood by the
// encoding pipeline and the sizes they imply.
package pixfmt

import (
	"fmt"
	"strings"
)

// Format identifies a raw pixel layout.
type Format int

const (
	// None is the zero value and never a valid layout.
	None Format = iota
	// Gray8 is a single 8-bit luminance plane.
	Gray8
	// BGR24 is packed 8-bit blue, green, red.
	BGR24
	// RGB24 is packed 8-bit red, green, blue.
	RGB24
	// RGBA is packed 8-bit red, green, blue, alpha.
	RGBA
	// I420 is planar YUV 4:2:0, the only layout the encoder accepts.
	I420
)

var names = map[Format]string{
	None:  "none",
	Gray8: "gray8",
	BGR24: "bgr24",
	RGB24: "rgb24",
	RGBA:  "rgba",
	I420:  "i420",
}

// String returns the canonical lower-case name of the layout.
func (f Format) String() string {
	if n, ok := names[f]; ok {
		return n
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// Valid reports whether f is a recognized layout other than None.
func (f Format) Valid() bool {
	_, ok := names[f]
	return ok && f != None
}

// Planar reports whether the layout stores its components in separate planes.
func (f Format) Planar() bool {
	return f == I420
}

// BytesPerPixel returns the size of one packed pixel. Gray and planar
// layouts report the luma sample size. Invalid layouts report 0.
func (f Format) BytesPerPixel() int {
	switch f {
	case Gray8, I420:
		return 1
	case BGR24, RGB24:
		return 3
	case RGBA:
		return 4
	default:
		return 0
	}
}

// FrameSize returns the number of bytes one width x height frame occupies
// in layout f, or 0 when the layout is not valid.
func (f Format) FrameSize(width, height int) int {
	switch f {
	case Gray8:
		return width * height
	case BGR24, RGB24:
		return width * height * 3
	case RGBA:
		return width * height * 4
	case I420:
		cw, ch := ChromaSize(width, height)
		return width*height + 2*cw*ch
	default:
		return 0
	}
}

// ChromaSize returns the dimensions of one 4:2:0 chroma plane.
func ChromaSize(width, height int) (int, int) {
	return (width + 1) / 2, (height + 1) / 2
}

// Parse resolves a layout name. Matching is case-insensitive and accepts
// the common aliases used by capture tools ("gray", "yuv420p", ...).
func Parse(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "gray8", "gray", "grey", "y8":
		return Gray8, nil
	case "bgr24", "bgr":
		return BGR24, nil
	case "rgb24", "rgb":
		return RGB24, nil
	case "rgba", "rgb32":
		return RGBA, nil
	case "i420", "yuv420p", "yuv420":
		return I420, nil
	default:
		return None, fmt.Errorf("pixel format %q: %w", name, ErrUnknownFormat)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (f Format) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. The name "none" is
// accepted here so that configuration validation can report it.
func (f *Format) UnmarshalText(text []byte) error {
	if strings.EqualFold(strings.TrimSpace(string(text)), "none") {
		*f = None
		return nil
	}
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}
