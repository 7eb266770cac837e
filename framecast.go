package framecast

import (
	"github.com/opd-ai/framecast/codec/x264"
	"github.com/opd-ai/framecast/config"
	"github.com/opd-ai/framecast/pipeline"
)

// New creates a stream for cfg that encodes with libx264. Options are
// applied after the default backend, so WithEncoderBackend replaces it.
func New(cfg config.Config, opts ...pipeline.Option) *pipeline.Pipeline {
	opts = append([]pipeline.Option{pipeline.WithEncoderBackend(x264.Backend{})}, opts...)
	return pipeline.New(cfg, opts...)
}
