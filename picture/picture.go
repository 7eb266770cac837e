// Package picture provides the planar I420 working picture the encoder
// consumes and the raw input picture that references a caller's buffer.
package picture

import (
	"image"

	"github.com/opd-ai/framecast/pixfmt"
)

// Picture is a planar YUV 4:2:0 picture with its presentation timestamp.
type Picture struct {
	Width   int
	Height  int
	Y       []byte // Luminance plane
	U       []byte // Chrominance U (Cb) plane
	V       []byte // Chrominance V (Cr) plane
	YStride int
	UStride int
	VStride int
	PTS     int64
}

// Alloc allocates an I420 picture of the given size with tightly packed
// planes.
func Alloc(width, height int) *Picture {
	cw, ch := pixfmt.ChromaSize(width, height)
	return &Picture{
		Width:   width,
		Height:  height,
		Y:       make([]byte, width*height),
		U:       make([]byte, cw*ch),
		V:       make([]byte, cw*ch),
		YStride: width,
		UStride: cw,
		VStride: cw,
	}
}

// Release drops the plane buffers. A released picture must not be reused.
func (p *Picture) Release() {
	p.Y, p.U, p.V = nil, nil, nil
	p.YStride, p.UStride, p.VStride = 0, 0, 0
	p.PTS = 0
}

// Released reports whether the planes have been dropped.
func (p *Picture) Released() bool {
	return p.Y == nil
}

// YCbCr returns an image.YCbCr view sharing the picture's planes.
func (p *Picture) YCbCr() *image.YCbCr {
	return &image.YCbCr{
		Y:              p.Y,
		Cb:             p.U,
		Cr:             p.V,
		YStride:        p.YStride,
		CStride:        p.UStride,
		SubsampleRatio: image.YCbCrSubsampleRatio420,
		Rect:           image.Rect(0, 0, p.Width, p.Height),
	}
}

// Raw is an input picture that references a caller-owned buffer in a
// packed or planar source layout. It never copies the buffer.
type Raw struct {
	Format pixfmt.Format
	Width  int
	Height int
	Data   []byte
	// Stride is the length of one row of the first plane in bytes.
	Stride int
}

// Fill references buf as a raw picture of the given layout and size and
// returns the number of bytes the picture covers. Zero is returned, and the
// picture left empty, when buf is too short for one frame or the layout is
// unknown.
func Fill(buf []byte, format pixfmt.Format, width, height int) (Raw, int) {
	size := format.FrameSize(width, height)
	if size == 0 || len(buf) < size {
		return Raw{}, 0
	}

	stride := width
	switch format {
	case pixfmt.BGR24, pixfmt.RGB24:
		stride = width * 3
	case pixfmt.RGBA:
		stride = width * 4
	}

	return Raw{
		Format: format,
		Width:  width,
		Height: height,
		Data:   buf[:size],
		Stride: stride,
	}, size
}
