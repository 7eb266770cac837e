package source

import (
	"io"

	"github.com/opd-ai/framecast/pixfmt"
)

// Pattern generates a diagonal gradient that moves by a few pixels every
// frame, in any supported source layout.
type Pattern struct {
	format pixfmt.Format
	width  int
	height int
	buf    []byte
	frame  int
	closed bool
}

// NewPattern creates a pattern source. It returns ErrFrameSize when the
// layout or dimensions give an empty frame.
func NewPattern(format pixfmt.Format, width, height int) (*Pattern, error) {
	size := format.FrameSize(width, height)
	if size <= 0 {
		return nil, ErrFrameSize
	}
	return &Pattern{
		format: format,
		width:  width,
		height: height,
		buf:    make([]byte, size),
	}, nil
}

// Next implements Source.
func (p *Pattern) Next() ([]byte, error) {
	if p.closed {
		return nil, io.EOF
	}

	shift := p.frame * 4
	p.frame++

	switch p.format {
	case pixfmt.Gray8, pixfmt.I420:
		for y := 0; y < p.height; y++ {
			row := p.buf[y*p.width : (y+1)*p.width]
			for x := range row {
				row[x] = byte(x + y + shift)
			}
		}
		if p.format == pixfmt.I420 {
			chroma := p.buf[p.width*p.height:]
			for i := range chroma {
				chroma[i] = 128
			}
		}
	default:
		bpp := p.format.BytesPerPixel()
		for y := 0; y < p.height; y++ {
			for x := 0; x < p.width; x++ {
				px := p.buf[(y*p.width+x)*bpp : (y*p.width+x+1)*bpp]
				v := byte(x + y + shift)
				px[0] = v
				px[1] = byte(y + shift)
				px[2] = byte(x)
				if bpp == 4 {
					px[3] = 0xff
				}
			}
		}
	}

	return p.buf, nil
}

// Close implements Source.
func (p *Pattern) Close() error {
	p.closed = true
	return nil
}
