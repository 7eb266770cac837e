// Package config holds the session configuration of the encoding pipeline,
// its defaults, file loading and validation.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/opd-ai/framecast/pixfmt"
)

// NoQP marks the fixed quantizer as unset.
const NoQP = -1

// Validation bounds for the numeric knobs.
const (
	// MaxQP is the largest quantizer H.264 accepts (8-bit + high bit depth headroom).
	MaxQP = 69
	// MaxBFrames is the largest B-frame run x264 accepts.
	MaxBFrames = 16
	// MaxDimension bounds width and height.
	MaxDimension = 16384
)

// Config is the session configuration. It is immutable once a session has
// been opened with it; the derived codec parameters are computed from it.
type Config struct {
	Width     int `yaml:"width"`
	Height    int `yaml:"height"`
	FrameRate int `yaml:"frame_rate"`

	// SourceFormat is the layout of submitted frames.
	SourceFormat pixfmt.Format `yaml:"source_format"`
	// DestFormat must be pixfmt.I420.
	DestFormat pixfmt.Format `yaml:"dest_format"`

	BFrames int `yaml:"b_frames"`
	// QP is the fixed quantizer, NoQP when rate control is left to the encoder.
	QP int `yaml:"qp"`

	// Preset, Tune and Profile select a named encoder configuration. When
	// Preset is empty the built-in low-latency configuration is used and
	// Tune and Profile are ignored.
	Preset  string `yaml:"preset"`
	Tune    string `yaml:"tune"`
	Profile string `yaml:"profile"`

	// FrameMultiplier is the frame-multiplication factor; the effective
	// playback rate is FrameRate / (FrameMultiplier + 1).
	FrameMultiplier int `yaml:"frame_multiplier"`

	// BitRate in bits per second, 0 derives one from the frame geometry.
	BitRate int `yaml:"bit_rate"`

	DestAddress string `yaml:"dest_address"`
	DestPort    int    `yaml:"dest_port"`
	BindAddress string `yaml:"bind_address"`

	// DumpPath, when set, receives the raw Annex-B bitstream (headers
	// followed by every emitted access unit).
	DumpPath string `yaml:"dump_path"`

	// FatalFrameErrors stops the pipeline on the first per-frame failure
	// instead of dropping the frame.
	FatalFrameErrors bool `yaml:"fatal_frame_errors"`
}

// Default returns the configuration used when nothing else is specified:
// CIF greyscale at 30 fps, intra-only low-latency encoding, sent to the
// local host on port 5000.
func Default() Config {
	return Config{
		Width:        352,
		Height:       288,
		FrameRate:    30,
		SourceFormat: pixfmt.Gray8,
		DestFormat:   pixfmt.I420,
		BFrames:      0,
		QP:           NoQP,
		DestAddress:  "127.0.0.1",
		DestPort:     5000,
		BindAddress:  ":0",
	}
}

// HasQP reports whether a fixed quantizer is configured.
func (c Config) HasQP() bool {
	return c.QP >= 0
}

// FrameSize returns the size in bytes of one submitted frame.
func (c Config) FrameSize() int {
	return c.SourceFormat.FrameSize(c.Width, c.Height)
}

// Destination returns the host:port the transmitter sends to.
func (c Config) Destination() string {
	return net.JoinHostPort(c.DestAddress, strconv.Itoa(c.DestPort))
}

// Load reads a YAML configuration file on top of Default.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	logrus.WithFields(logrus.Fields{
		"function": "Load",
		"path":     path,
		"width":    cfg.Width,
		"height":   cfg.Height,
		"fps":      cfg.FrameRate,
	}).Info("Loaded configuration file")

	return cfg, nil
}

// Save writes cfg as YAML.
func Save(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
