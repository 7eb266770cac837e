package picture

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/opd-ai/framecast/pixfmt"
)

func TestAlloc(t *testing.T) {
	p := Alloc(352, 288)

	assert.Equal(t, 352*288, len(p.Y))
	assert.Equal(t, 176*144, len(p.U))
	assert.Equal(t, 176*144, len(p.V))
	assert.Equal(t, 352, p.YStride)
	assert.Equal(t, 176, p.UStride)
	assert.Equal(t, 176, p.VStride)
	assert.False(t, p.Released())

	p.PTS = 9
	p.Release()
	assert.True(t, p.Released())
	assert.Equal(t, int64(0), p.PTS)
}

func TestYCbCrView(t *testing.T) {
	p := Alloc(4, 2)
	p.Y[0] = 200
	p.U[0] = 10

	img := p.YCbCr()

	assert.Equal(t, image.Rect(0, 0, 4, 2), img.Bounds())
	assert.Equal(t, image.YCbCrSubsampleRatio420, img.SubsampleRatio)
	assert.Equal(t, uint8(200), img.YCbCrAt(0, 0).Y)
	assert.Equal(t, uint8(10), img.YCbCrAt(0, 0).Cb)

	img.Y[1] = 7
	assert.Equal(t, byte(7), p.Y[1], "view shares the planes")
}

func TestFill(t *testing.T) {
	tests := []struct {
		name       string
		format     pixfmt.Format
		bufSize    int
		wantFilled int
		wantStride int
	}{
		{"gray_exact", pixfmt.Gray8, 16 * 8, 16 * 8, 16},
		{"gray_larger_buffer", pixfmt.Gray8, 16*8 + 10, 16 * 8, 16},
		{"gray_short", pixfmt.Gray8, 16*8 - 1, 0, 0},
		{"bgr", pixfmt.BGR24, 16 * 8 * 3, 16 * 8 * 3, 48},
		{"rgba", pixfmt.RGBA, 16 * 8 * 4, 16 * 8 * 4, 64},
		{"i420", pixfmt.I420, 16*8 + 2*8*4, 16*8 + 2*8*4, 16},
		{"none", pixfmt.None, 1024, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, filled := Fill(make([]byte, tt.bufSize), tt.format, 16, 8)

			assert.Equal(t, tt.wantFilled, filled)
			assert.Equal(t, tt.wantStride, raw.Stride)
			assert.Equal(t, tt.wantFilled, len(raw.Data))
		})
	}
}

func TestFillReferencesBuffer(t *testing.T) {
	buf := make([]byte, 4*4)
	raw, _ := Fill(buf, pixfmt.Gray8, 4, 4)

	buf[5] = 99
	assert.Equal(t, byte(99), raw.Data[5])
}
