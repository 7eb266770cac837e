package x264

import (
	"fmt"
	"image"
	"io"
	"sync"

	mdcodec "github.com/pion/mediadevices/pkg/codec"
	mdx264 "github.com/pion/mediadevices/pkg/codec/x264"
	"github.com/pion/mediadevices/pkg/frame"
	"github.com/pion/mediadevices/pkg/io/video"
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/framecast/codec"
	"github.com/opd-ai/framecast/h264"
	"github.com/opd-ai/framecast/params"
	"github.com/opd-ai/framecast/picture"
)

var presets = map[string]mdx264.Preset{
	"ultrafast": mdx264.PresetUltrafast,
	"superfast": mdx264.PresetSuperfast,
	"veryfast":  mdx264.PresetVeryfast,
	"faster":    mdx264.PresetFaster,
	"fast":      mdx264.PresetFast,
	"medium":    mdx264.PresetMedium,
	"slow":      mdx264.PresetSlow,
	"slower":    mdx264.PresetSlower,
	"veryslow":  mdx264.PresetVeryslow,
	"placebo":   mdx264.PresetPlacebo,
}

// Backend opens libx264 encoders.
type Backend struct{}

// Open implements codec.EncoderBackend.
func (Backend) Open(p params.Params) (codec.Encoder, error) {
	xp, err := buildParams(p)
	if err != nil {
		return nil, err
	}
	warnUnsupported(p)

	e := &Encoder{params: p, xp: xp}
	enc, err := e.build(video.ReaderFunc(e.next))
	if err != nil {
		return nil, err
	}
	e.enc = enc

	logrus.WithFields(logrus.Fields{
		"function": "x264.Open",
		"preset":   p.Preset,
		"keyint":   xp.KeyFrameInterval,
		"bit_rate": xp.BitRate,
		"width":    p.Width,
		"height":   p.Height,
	}).Debug("libx264 encoder opened")

	return e, nil
}

func buildParams(p params.Params) (mdx264.Params, error) {
	xp, err := mdx264.NewParams()
	if err != nil {
		return xp, err
	}
	preset, ok := presets[p.Preset]
	if !ok {
		return xp, fmt.Errorf("unknown x264 preset %q", p.Preset)
	}
	xp.Preset = preset
	if p.KeyIntMax > 0 {
		xp.KeyFrameInterval = p.KeyIntMax
	}
	xp.BitRate = p.BitRate
	if xp.BitRate <= 0 {
		xp.BitRate = params.DefaultBitRate(p.Width, p.Height, p.FPSNum)
	}
	return xp, nil
}

// The binding hard-codes these when it opens an encoder.
const (
	bindingTune    = "zerolatency"
	bindingProfile = "high"
)

// unsupported returns the requested settings the binding does not apply.
func unsupported(p params.Params) logrus.Fields {
	fields := logrus.Fields{}
	if p.BFrames > 0 {
		fields["b_frames"] = p.BFrames
	}
	if p.ConstantQP {
		fields["qp"] = p.QPMin
	}
	if p.Tune != "" && p.Tune != bindingTune {
		fields["tune"] = p.Tune
		fields["applied_tune"] = bindingTune
	}
	if p.Profile != "" && p.Profile != bindingProfile {
		fields["profile"] = p.Profile
		fields["applied_profile"] = bindingProfile
	}
	// i_fps_num is never set by the binding
	if p.FPSNum > 0 {
		fields["fps"] = fmt.Sprintf("%d/%d", p.FPSNum, p.FPSDen)
	}
	return fields
}

func warnUnsupported(p params.Params) {
	fields := unsupported(p)
	if len(fields) == 0 {
		return
	}
	fields["function"] = "x264.Open"
	logrus.WithFields(fields).Warn("Encoder settings not supported by the x264 binding are ignored")
}

// Encoder is an open libx264 encoder. The binding pulls pictures from a
// reader, so Encode stages the picture and then reads one access unit.
type Encoder struct {
	mu      sync.Mutex
	params  params.Params
	xp      mdx264.Params
	enc     mdcodec.ReadCloser
	current image.Image
	headers []byte
}

func (e *Encoder) build(r video.Reader) (mdcodec.ReadCloser, error) {
	return e.xp.BuildVideoEncoder(r, prop.Media{
		Video: prop.Video{
			Width:       e.params.Width,
			Height:      e.params.Height,
			FrameRate:   float32(e.params.FPSNum) / float32(e.params.FPSDen),
			FrameFormat: frame.FormatI420,
		},
	})
}

func (e *Encoder) next() (image.Image, func(), error) {
	if e.current == nil {
		return nil, func() {}, io.EOF
	}
	img := e.current
	e.current = nil
	return img, func() {}, nil
}

// Headers returns the SPS and PPS of the stream. The binding emits them in
// band ahead of every IDR, so they are taken from one blank frame encoded
// by a throwaway encoder with the same parameters.
func (e *Encoder) Headers() ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.headers != nil {
		return e.headers, nil
	}

	blank := picture.Alloc(e.params.Width, e.params.Height)
	defer blank.Release()
	for i := range blank.U {
		blank.U[i] = 128
	}
	for i := range blank.V {
		blank.V[i] = 128
	}

	served := false
	scratch, err := e.build(video.ReaderFunc(func() (image.Image, func(), error) {
		if served {
			return nil, func() {}, io.EOF
		}
		served = true
		return blank.YCbCr(), func() {}, nil
	}))
	if err != nil {
		return nil, err
	}
	defer scratch.Close()

	data, release, err := scratch.Read()
	if err != nil {
		return nil, err
	}
	defer release()

	headers := h264.ParameterSets(data)
	if len(headers) == 0 {
		return nil, fmt.Errorf("no parameter sets in first access unit")
	}
	e.headers = headers
	return headers, nil
}

// Encode compresses pic and returns one Annex-B access unit.
func (e *Encoder) Encode(pic *picture.Picture) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.current = pic.YCbCr()
	data, release, err := e.enc.Read()
	if err != nil {
		return nil, err
	}
	defer release()

	return append([]byte(nil), data...), nil
}

// Close releases the encoder.
func (e *Encoder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enc.Close()
}
