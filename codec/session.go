package codec

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/rs/xid"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/framecast/colorconv"
	"github.com/opd-ai/framecast/config"
	"github.com/opd-ai/framecast/h264"
	"github.com/opd-ai/framecast/params"
	"github.com/opd-ai/framecast/picture"
	"github.com/opd-ai/framecast/pixfmt"
)

// Option configures a Session.
type Option func(*Session)

// WithEncoderBackend sets the backend used to open encoders.
func WithEncoderBackend(b EncoderBackend) Option {
	return func(s *Session) { s.encBackend = b }
}

// WithConverterBackend sets the color conversion backend. The software
// backend is used when none is given.
func WithConverterBackend(b colorconv.Backend) Option {
	return func(s *Session) { s.convBackend = b }
}

// WithSink sets the sink that receives every access unit.
func WithSink(sink Sink) Option {
	return func(s *Session) { s.sink = sink }
}

// WithFinishedHandler registers fn to run every time the session signals
// that it has finished.
func WithFinishedHandler(fn func()) Option {
	return func(s *Session) { s.OnFinished(fn) }
}

// Session is a stateful encoder session. It accepts raw frames, converts
// them to I420, compresses them and hands each access unit to its sink.
//
// Every method is safe for concurrent use. Finished handlers run after the
// session lock is released, so they may call back into the session.
type Session struct {
	mu sync.Mutex

	id          string
	encBackend  EncoderBackend
	convBackend colorconv.Backend
	sink        Sink

	state   State
	cfg     config.Config
	params  params.Params
	conv    *colorconv.Converter
	pic     *picture.Picture
	enc     Encoder
	dump    *os.File
	headers []byte

	pts    int64
	frames int64

	finished []func()
	pending  int
}

// NewSession creates an unopened session.
func NewSession(opts ...Option) *Session {
	s := &Session{
		id:    xid.New().String(),
		state: StateUnopened,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnFinished registers fn to run every time the session signals that it
// has finished: on Close, on every Open that fails and on every Encode
// refused because the session is not open.
func (s *Session) OnFinished(fn func()) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.finished = append(s.finished, fn)
	s.mu.Unlock()
}

// Open validates cfg, acquires a converter, a working picture and an
// encoder, and returns the stream headers. Any failure releases what was
// acquired and signals finished.
func (s *Session) Open(cfg config.Config) ([]byte, error) {
	s.mu.Lock()
	defer s.unlock()

	if err := config.Validate(cfg); err != nil {
		s.logger("Open").WithError(err).Error("Invalid configuration")
		s.signalFinished()
		return nil, err
	}

	if s.state == StateOpen {
		s.logger("Open").Warn("Encoder already opened")
		s.signalFinished()
		return nil, ErrAlreadyOpen
	}

	if cfg.DestFormat != pixfmt.I420 {
		s.logger("Open").WithField("dest_format", cfg.DestFormat.String()).Error("Unsupported output format")
		s.signalFinished()
		return nil, fmt.Errorf("%w: got %s", ErrUnsupportedOutputFormat, cfg.DestFormat)
	}

	s.cfg = cfg
	conv, err := colorconv.Open(s.convBackend, cfg.SourceFormat, cfg.DestFormat, cfg.Width, cfg.Height)
	if err != nil {
		return nil, s.abortOpen(err)
	}
	s.conv = conv
	s.pic = picture.Alloc(cfg.Width, cfg.Height)
	s.params = params.Derive(cfg)

	if s.encBackend == nil {
		return nil, s.abortOpen(fmt.Errorf("%w: no encoder backend configured", ErrEncoderOpenFailed))
	}
	enc, err := s.encBackend.Open(s.params)
	if err != nil {
		return nil, s.abortOpen(fmt.Errorf("%w: %v", ErrEncoderOpenFailed, err))
	}
	s.enc = enc

	headers, err := enc.Headers()
	if err != nil {
		return nil, s.abortOpen(fmt.Errorf("%w: %v", ErrHeaderGenerationFailed, err))
	}
	if len(headers) == 0 {
		return nil, s.abortOpen(fmt.Errorf("%w: empty header payload", ErrHeaderGenerationFailed))
	}

	if cfg.DumpPath != "" {
		if err := s.openDump(cfg.DumpPath, headers); err != nil {
			return nil, s.abortOpen(err)
		}
	}

	s.headers = headers
	s.pts = 0
	s.frames = 0
	s.state = StateOpen

	s.logger("Open").WithFields(logrus.Fields{
		"width":        cfg.Width,
		"height":       cfg.Height,
		"source":       cfg.SourceFormat.String(),
		"preset":       s.params.Preset,
		"keyint":       s.params.KeyIntMax,
		"bframes":      s.params.BFrames,
		"output_fps":   s.params.OutputFrameRate,
		"header_bytes": len(headers),
	}).Info("Encoder session opened")

	return headers, nil
}

func (s *Session) openDump(path string, headers []byte) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDumpFailed, err)
	}
	s.dump = f
	if _, err := f.Write(headers); err != nil {
		return fmt.Errorf("%w: %v", ErrDumpFailed, err)
	}
	return nil
}

// abortOpen releases partially acquired resources through the regular
// close path and returns err.
func (s *Session) abortOpen(err error) error {
	entry := s.logger("Open").WithError(err)
	if IsFatal(err) {
		entry.Error("Cannot create the color conversion context")
	} else {
		entry.Error("Encoder session open failed")
	}
	if cerr := s.closeLocked(); cerr != nil {
		s.logger("Open").WithError(cerr).Warn("Release after failed open reported an error")
	}
	return err
}

// Encode submits one raw frame. keyHint is the tag byte the resulting
// access unit is sent with. A nil access unit with a nil error means the
// encoder buffered the frame. The presentation timestamp advances once per
// call on an open session, whether or not the frame succeeds.
func (s *Session) Encode(raw []byte, frameIndex int64, keyHint byte) (*AccessUnit, error) {
	s.mu.Lock()
	defer s.unlock()

	if s.state != StateOpen || s.conv == nil {
		s.logger("Encode").WithField("frame_index", frameIndex).Warn("Encode called on a session that is not open")
		s.signalFinished()
		return nil, ErrNotOpen
	}

	pts := s.pts
	s.pts++

	src, n := picture.Fill(raw, s.cfg.SourceFormat, s.cfg.Width, s.cfg.Height)
	if n == 0 {
		err := fmt.Errorf("%w: got %d bytes, want %d", ErrFillFailed, len(raw), s.cfg.FrameSize())
		s.frameFailed(err, frameIndex)
		return nil, err
	}

	if err := s.conv.Convert(src, s.pic); err != nil {
		s.frameFailed(err, frameIndex)
		return nil, err
	}
	s.pic.PTS = pts

	payload, err := s.enc.Encode(s.pic)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrEncodeFailed, err)
		s.frameFailed(err, frameIndex)
		return nil, err
	}
	if len(payload) == 0 {
		s.logger("Encode").WithFields(logrus.Fields{
			"frame_index": frameIndex,
			"pts":         pts,
		}).Debug("Frame buffered by the encoder")
		return nil, nil
	}

	au := &AccessUnit{
		Tag:        keyHint,
		Payload:    payload,
		PTS:        pts,
		FrameIndex: frameIndex,
	}

	if keyHint == TagKey && !h264.HasIDR(payload) {
		s.logger("Encode").WithField("frame_index", frameIndex).Debug("Key hint set on an access unit without an IDR slice")
	}

	if s.dump != nil {
		if _, err := s.dump.Write(payload); err != nil {
			s.logger("Encode").WithError(err).Warn("Bitstream dump write failed")
		}
	}

	if s.sink != nil {
		if err := s.sink.Send(*au); err != nil {
			s.logger("Encode").WithFields(logrus.Fields{
				"frame_index": frameIndex,
				"bytes":       len(payload),
				"error":       err.Error(),
			}).Debug("Access unit send failed")
		}
	}
	s.frames++

	return au, nil
}

func (s *Session) frameFailed(err error, frameIndex int64) {
	s.logger("Encode").WithFields(logrus.Fields{
		"frame_index": frameIndex,
		"error":       err.Error(),
	}).Warn("Frame dropped")
}

// Close releases the picture, the encoder, the converter and the dump file
// in that order, marks the session closed and signals finished. It is
// safe to call on a session in any state.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.unlock()

	err := s.closeLocked()
	s.logger("Close").WithField("frames", s.frames).Info("Encoder session closed")
	return err
}

func (s *Session) closeLocked() error {
	var errs []error

	if s.pic != nil {
		s.pic.Release()
		s.pic = nil
	}
	if s.enc != nil {
		if err := s.enc.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close encoder: %w", err))
		}
		s.enc = nil
	}
	if s.conv != nil {
		if err := s.conv.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close converter: %w", err))
		}
		s.conv = nil
	}
	if s.dump != nil {
		if err := s.dump.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close dump file: %w", err))
		}
		s.dump = nil
	}

	s.headers = nil
	s.state = StateClosed
	s.signalFinished()

	return errors.Join(errs...)
}

func (s *Session) signalFinished() {
	s.pending++
}

// unlock releases the session lock and then runs finished handlers once
// for every signal raised while it was held.
func (s *Session) unlock() {
	n := s.pending
	s.pending = 0
	handlers := append([]func(){}, s.finished...)
	s.mu.Unlock()

	for i := 0; i < n; i++ {
		for _, fn := range handlers {
			fn()
		}
	}
}

func (s *Session) logger(fn string) *logrus.Entry {
	return logrus.WithFields(logrus.Fields{
		"function": "Session." + fn,
		"session":  s.id,
	})
}

// ID returns the session identifier used in logs.
func (s *Session) ID() string {
	return s.id
}

// State returns the lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// PTS returns the timestamp the next submitted frame will carry.
func (s *Session) PTS() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pts
}

// FrameCount returns the number of access units emitted since Open.
func (s *Session) FrameCount() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// Headers returns a copy of the stream headers, or nil when not open.
func (s *Session) Headers() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.headers == nil {
		return nil
	}
	return append([]byte(nil), s.headers...)
}

// Params returns the resolved encoder parameters of the last open.
func (s *Session) Params() params.Params {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params
}

// Config returns the configuration of the last open.
func (s *Session) Config() config.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}
