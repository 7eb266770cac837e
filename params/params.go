// Package params derives the fully-resolved encoder parameters from the
// handful of knobs a session configuration exposes.
package params

import (
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/framecast/config"
)

// Built-in low-latency encoder configuration used when no preset is named.
const (
	DefaultPreset  = "ultrafast"
	DefaultTune    = "zerolatency,fastdecode"
	DefaultProfile = "baseline"

	// MinBitRate is the floor for a derived bit rate, in bits per second.
	MinBitRate = 500000
)

// Params is the resolved encoder configuration. It is computed once when a
// session opens and never mutated afterwards.
type Params struct {
	Preset  string
	Tune    string
	Profile string

	// KeyIntMax is the maximum GOP length. Zero leaves the encoder default,
	// which only happens with a named preset.
	KeyIntMax     int
	BFrames       int
	BFramePyramid bool

	// ConstantQP is set when QPMin and QPMax are clamped to one value.
	ConstantQP bool
	QPMin      int
	QPMax      int

	Threads int
	Width   int
	Height  int

	// FPSNum/FPSDen is the frame rate declared to the encoder.
	FPSNum int
	FPSDen int

	// OutputFrameRate is the effective playback rate after frame
	// multiplication. It is published to receivers and is not the rate
	// declared to the encoder.
	OutputFrameRate int

	BitRate int
}

// DefaultBitRate is the average bit rate used when none is configured:
// an eighth of a bit per pixel per frame, never below MinBitRate.
func DefaultBitRate(width, height, fps int) int {
	rate := width * height * fps / 8
	if rate < MinBitRate {
		return MinBitRate
	}
	return rate
}

// Derive resolves cfg into encoder parameters. It never fails; the
// configuration is validated before it reaches here.
func Derive(cfg config.Config) Params {
	p := Params{}

	if cfg.Preset == "" {
		p.Preset = DefaultPreset
		p.Tune = DefaultTune
		p.Profile = DefaultProfile

		if cfg.BFrames == 0 {
			// intra only: no reordering delay
			p.KeyIntMax = 1
		} else {
			p.KeyIntMax = cfg.BFrames + 2
			p.BFrames = cfg.BFrames
			p.BFramePyramid = false
		}

		if cfg.HasQP() {
			p.ConstantQP = true
			p.QPMin = cfg.QP
			p.QPMax = cfg.QP
		}
	} else {
		p.Preset = cfg.Preset
		p.Tune = cfg.Tune
		p.Profile = cfg.Profile
	}

	p.Threads = 1
	p.Width = cfg.Width
	p.Height = cfg.Height
	p.FPSNum = cfg.FrameRate
	p.FPSDen = 1
	p.OutputFrameRate = OutputFrameRate(cfg.FrameRate, cfg.FrameMultiplier)
	p.BitRate = cfg.BitRate
	if p.BitRate <= 0 {
		p.BitRate = DefaultBitRate(p.Width, p.Height, p.FPSNum)
	}

	logrus.WithFields(logrus.Fields{
		"function":    "Derive",
		"preset":      p.Preset,
		"tune":        p.Tune,
		"profile":     p.Profile,
		"keyint_max":  p.KeyIntMax,
		"b_frames":    p.BFrames,
		"constant_qp": p.ConstantQP,
		"qp":          p.QPMin,
		"fps":         p.FPSNum,
		"output_fps":  p.OutputFrameRate,
		"bit_rate":    p.BitRate,
	}).Debug("Derived encoder parameters")

	return p
}

// OutputFrameRate returns fps / (multiplier + 1) using integer division.
// A negative multiplier is treated as zero.
func OutputFrameRate(fps, multiplier int) int {
	if multiplier < 0 {
		multiplier = 0
	}
	return fps / (multiplier + 1)
}
