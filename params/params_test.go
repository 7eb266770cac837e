package params

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/opd-ai/framecast/config"
)

func TestDeriveLowLatencyDefaults(t *testing.T) {
	cfg := config.Default()

	p := Derive(cfg)

	assert.Equal(t, DefaultPreset, p.Preset)
	assert.Equal(t, DefaultTune, p.Tune)
	assert.Equal(t, DefaultProfile, p.Profile)
	assert.Equal(t, 1, p.KeyIntMax)
	assert.Equal(t, 0, p.BFrames)
	assert.False(t, p.BFramePyramid)
	assert.False(t, p.ConstantQP)
	assert.Equal(t, 1, p.Threads)
	assert.Equal(t, 352, p.Width)
	assert.Equal(t, 288, p.Height)
	assert.Equal(t, 30, p.FPSNum)
	assert.Equal(t, 1, p.FPSDen)
	assert.Equal(t, 30, p.OutputFrameRate)
}

func TestDeriveGOPLength(t *testing.T) {
	for b := 0; b <= config.MaxBFrames; b++ {
		cfg := config.Default()
		cfg.BFrames = b

		p := Derive(cfg)

		if b == 0 {
			assert.Equal(t, 1, p.KeyIntMax, "b=%d", b)
			assert.Equal(t, 0, p.BFrames)
		} else {
			assert.Equal(t, b+2, p.KeyIntMax, "b=%d", b)
			assert.Equal(t, b, p.BFrames)
		}
		assert.False(t, p.BFramePyramid)
	}
}

func TestDeriveConstantQP(t *testing.T) {
	for q := 0; q <= config.MaxQP; q++ {
		cfg := config.Default()
		cfg.QP = q

		p := Derive(cfg)

		assert.True(t, p.ConstantQP)
		assert.Equal(t, q, p.QPMin, "q=%d", q)
		assert.Equal(t, q, p.QPMax, "q=%d", q)
	}
}

func TestDeriveNamedPreset(t *testing.T) {
	cfg := config.Default()
	cfg.Preset = "veryfast"
	cfg.Tune = "film"
	cfg.Profile = "high"
	cfg.BFrames = 3
	cfg.QP = 20

	p := Derive(cfg)

	assert.Equal(t, "veryfast", p.Preset)
	assert.Equal(t, "film", p.Tune)
	assert.Equal(t, "high", p.Profile)
	assert.Equal(t, 0, p.KeyIntMax, "named preset keeps the encoder GOP default")
	assert.Equal(t, 0, p.BFrames)
	assert.False(t, p.ConstantQP, "named preset ignores the quantizer knob")
	assert.Equal(t, 1, p.Threads)
}

func TestOutputFrameRate(t *testing.T) {
	tests := []struct {
		fps, multiplier, want int
	}{
		{30, 0, 30},
		{30, 1, 15},
		{30, 2, 10},
		{25, 1, 12},
		{30, 100, 0},
		{30, -3, 30},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, OutputFrameRate(tt.fps, tt.multiplier), "fps=%d mult=%d", tt.fps, tt.multiplier)
	}
}

func TestDeclaredRateIgnoresMultiplier(t *testing.T) {
	cfg := config.Default()
	cfg.FrameRate = 30
	cfg.FrameMultiplier = 1

	p := Derive(cfg)

	assert.Equal(t, 15, p.OutputFrameRate)
	assert.Equal(t, 30, p.FPSNum)
}

func TestBitRate(t *testing.T) {
	t.Run("derived_floor", func(t *testing.T) {
		p := Derive(config.Default())
		assert.Equal(t, MinBitRate, p.BitRate)
	})

	t.Run("derived_from_geometry", func(t *testing.T) {
		cfg := config.Default()
		cfg.Width = 1280
		cfg.Height = 720
		cfg.FrameRate = 30

		p := Derive(cfg)

		assert.Equal(t, 1280*720*30/8, p.BitRate)
	})

	t.Run("explicit", func(t *testing.T) {
		cfg := config.Default()
		cfg.BitRate = 2000000

		p := Derive(cfg)

		assert.Equal(t, 2000000, p.BitRate)
	})
}
