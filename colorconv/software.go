package colorconv

import (
	"fmt"
	"image"

	"github.com/pion/mediadevices/pkg/io/video"

	"github.com/opd-ai/framecast/picture"
	"github.com/opd-ai/framecast/pixfmt"
)

const neutralChroma = 128

// SoftwareBackend converts in process. Greyscale and I420 sources are
// handled plane by plane; packed RGB sources are converted through
// mediadevices' I420 converter.
type SoftwareBackend struct{}

// NewContext implements Backend.
func (SoftwareBackend) NewContext(src, dst pixfmt.Format, width, height int) (Context, error) {
	if dst != pixfmt.I420 {
		return nil, fmt.Errorf("unsupported destination format %s", dst)
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid size %dx%d", width, height)
	}

	ctx := &softwareContext{src: src, width: width, height: height}

	switch src {
	case pixfmt.Gray8, pixfmt.I420:
	case pixfmt.BGR24, pixfmt.RGB24, pixfmt.RGBA:
		ctx.rgba = image.NewRGBA(image.Rect(0, 0, width, height))
		ctx.toI420 = video.ToI420(video.ReaderFunc(func() (image.Image, func(), error) {
			return ctx.rgba, func() {}, nil
		}))
	default:
		return nil, fmt.Errorf("unsupported source format %s", src)
	}

	return ctx, nil
}

type softwareContext struct {
	src    pixfmt.Format
	width  int
	height int

	rgba   *image.RGBA
	toI420 video.Reader
}

func (c *softwareContext) Scale(src picture.Raw, dst *picture.Picture) (int, error) {
	if src.Format != c.src || src.Width != c.width || src.Height != c.height {
		return 0, fmt.Errorf("source %s %dx%d does not match context %s %dx%d",
			src.Format, src.Width, src.Height, c.src, c.width, c.height)
	}
	if dst == nil || dst.Released() {
		return 0, fmt.Errorf("destination picture not allocated")
	}

	switch c.src {
	case pixfmt.Gray8:
		return c.scaleGray(src, dst), nil
	case pixfmt.I420:
		return c.scaleI420(src, dst), nil
	default:
		return c.scaleRGB(src, dst)
	}
}

func (c *softwareContext) scaleGray(src picture.Raw, dst *picture.Picture) int {
	for y := 0; y < c.height; y++ {
		copy(dst.Y[y*dst.YStride:y*dst.YStride+c.width], src.Data[y*src.Stride:])
	}
	fillPlane(dst.U, neutralChroma)
	fillPlane(dst.V, neutralChroma)
	return c.height
}

func (c *softwareContext) scaleI420(src picture.Raw, dst *picture.Picture) int {
	cw, ch := pixfmt.ChromaSize(c.width, c.height)
	ySize := c.width * c.height

	copyPlane(dst.Y, dst.YStride, src.Data[:ySize], c.width, c.width, c.height)
	copyPlane(dst.U, dst.UStride, src.Data[ySize:ySize+cw*ch], cw, cw, ch)
	copyPlane(dst.V, dst.VStride, src.Data[ySize+cw*ch:], cw, cw, ch)
	return c.height
}

func (c *softwareContext) scaleRGB(src picture.Raw, dst *picture.Picture) (int, error) {
	c.packRGBA(src)

	img, release, err := c.toI420.Read()
	if err != nil {
		return 0, err
	}
	defer release()

	yuv, ok := img.(*image.YCbCr)
	if !ok {
		return 0, fmt.Errorf("converter returned %T, want *image.YCbCr", img)
	}

	rows := yuv.Rect.Dy()
	cw, ch := pixfmt.ChromaSize(c.width, c.height)
	copyPlane(dst.Y, dst.YStride, yuv.Y, yuv.YStride, c.width, min(rows, c.height))
	copyPlane(dst.U, dst.UStride, yuv.Cb, yuv.CStride, cw, min((rows+1)/2, ch))
	copyPlane(dst.V, dst.VStride, yuv.Cr, yuv.CStride, cw, min((rows+1)/2, ch))
	return rows, nil
}

// packRGBA rewrites a packed 24 or 32 bit source into the context's RGBA
// buffer.
func (c *softwareContext) packRGBA(src picture.Raw) {
	pix := c.rgba.Pix
	for y := 0; y < c.height; y++ {
		row := src.Data[y*src.Stride:]
		out := pix[y*c.rgba.Stride:]
		for x := 0; x < c.width; x++ {
			switch c.src {
			case pixfmt.BGR24:
				out[4*x+0] = row[3*x+2]
				out[4*x+1] = row[3*x+1]
				out[4*x+2] = row[3*x+0]
				out[4*x+3] = 0xff
			case pixfmt.RGB24:
				out[4*x+0] = row[3*x+0]
				out[4*x+1] = row[3*x+1]
				out[4*x+2] = row[3*x+2]
				out[4*x+3] = 0xff
			default:
				copy(out[4*x:4*x+4], row[4*x:4*x+4])
			}
		}
	}
}

func (c *softwareContext) Close() error {
	c.rgba = nil
	c.toI420 = nil
	return nil
}

func copyPlane(dst []byte, dstStride int, src []byte, srcStride, width, rows int) {
	for y := 0; y < rows; y++ {
		copy(dst[y*dstStride:y*dstStride+width], src[y*srcStride:y*srcStride+width])
	}
}

func fillPlane(plane []byte, value byte) {
	for i := range plane {
		plane[i] = value
	}
}
