// Package pipeline drives one encoding stream: it creates the datagram
// sender once, opens the codec session, feeds it frames in submission order
// and converges every termination path on the same idempotent shutdown.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/framecast/codec"
	"github.com/opd-ai/framecast/colorconv"
	"github.com/opd-ai/framecast/config"
	"github.com/opd-ai/framecast/source"
	"github.com/opd-ai/framecast/transport"
)

var (
	// ErrNotStarted is returned when frames are submitted before Start.
	ErrNotStarted = errors.New("pipeline not started")
	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("pipeline already started")
	// ErrStopped is returned once the pipeline has stopped.
	ErrStopped = errors.New("pipeline stopped")
)

// Sender is the datagram transport the pipeline owns.
type Sender interface {
	codec.Sink
	Stats() transport.Stats
	Close() error
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithEncoderBackend sets the encoder backend handed to the session.
func WithEncoderBackend(b codec.EncoderBackend) Option {
	return func(p *Pipeline) { p.encBackend = b }
}

// WithConverterBackend sets the color conversion backend.
func WithConverterBackend(b colorconv.Backend) Option {
	return func(p *Pipeline) { p.convBackend = b }
}

// WithSender replaces the UDP sender Start would otherwise create. The
// pipeline takes ownership and closes it on Stop.
func WithSender(s Sender) Option {
	return func(p *Pipeline) { p.sender = s }
}

// WithFinishedHandler registers fn with OnFinished.
func WithFinishedHandler(fn func()) Option {
	return func(p *Pipeline) { p.handlers = append(p.handlers, fn) }
}

// WithFrameInterval overrides the pacing interval Run uses between frames.
// Zero or negative disables pacing.
func WithFrameInterval(d time.Duration) Option {
	return func(p *Pipeline) {
		p.interval = d
		p.intervalSet = true
	}
}

// Pipeline owns a codec session and its transport.
type Pipeline struct {
	cfg         config.Config
	encBackend  codec.EncoderBackend
	convBackend colorconv.Backend
	sender      Sender
	interval    time.Duration
	intervalSet bool

	// mu serializes Start, Submit and Stop. Readers use the atomics so
	// finished handlers may query the pipeline while a stop is under way.
	mu      sync.Mutex
	session atomic.Pointer[codec.Session]
	started bool
	stopped atomic.Bool
	since   atomic.Int64

	errMu sync.Mutex
	err   error

	handlersMu sync.Mutex
	handlers   []func()
	finished   chan struct{}
	finishOnce sync.Once
	// pending counts finished signals raised while mu is held. They are
	// delivered by unlock.
	pending atomic.Int64

	submitted atomic.Uint64
	dropped   atomic.Uint64
	// out holds the sender once Start has settled on it.
	out       atomic.Value
}

// New creates a pipeline for cfg. Nothing is acquired until Start.
func New(cfg config.Config, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:      cfg,
		finished: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if !p.intervalSet && cfg.FrameRate > 0 {
		p.interval = time.Second / time.Duration(cfg.FrameRate)
	}
	return p
}

// OnFinished registers fn to run every time the stream signals it has
// finished. It may run more than once.
func (p *Pipeline) OnFinished(fn func()) {
	p.handlersMu.Lock()
	p.handlers = append(p.handlers, fn)
	p.handlersMu.Unlock()
}

// Finished is closed the first time the stream finishes.
func (p *Pipeline) Finished() <-chan struct{} {
	return p.finished
}

func (p *Pipeline) finish() {
	p.finishOnce.Do(func() { close(p.finished) })
	p.pending.Add(1)
}

// unlock releases mu and then runs the finished handlers once for every
// signal raised while it was held. Handlers may call Stop.
func (p *Pipeline) unlock() {
	p.mu.Unlock()

	n := p.pending.Swap(0)
	if n == 0 {
		return
	}
	p.handlersMu.Lock()
	handlers := append([]func(){}, p.handlers...)
	p.handlersMu.Unlock()
	for i := int64(0); i < n; i++ {
		for _, fn := range handlers {
			fn()
		}
	}
}

// Start validates the configuration, creates the transport and opens the
// codec session. It returns the stream headers.
func (p *Pipeline) Start() ([]byte, error) {
	p.mu.Lock()
	defer p.unlock()

	if p.stopped.Load() {
		return nil, ErrStopped
	}
	if p.started {
		return nil, ErrAlreadyStarted
	}

	if err := config.Validate(p.cfg); err != nil {
		p.setErr(err)
		p.finish()
		return nil, err
	}

	if p.sender == nil {
		if err := config.ValidateDestination(p.cfg); err != nil {
			p.setErr(err)
			p.finish()
			return nil, err
		}
		sender, err := transport.NewUDPSender(p.cfg.BindAddress, p.cfg.Destination())
		if err != nil {
			p.setErr(err)
			p.finish()
			return nil, err
		}
		p.sender = sender
	}
	p.out.Store(p.sender)

	session := codec.NewSession(
		codec.WithEncoderBackend(p.encBackend),
		codec.WithConverterBackend(p.convBackend),
		codec.WithSink(p.sender),
		codec.WithFinishedHandler(p.finish),
	)
	p.session.Store(session)
	p.started = true

	headers, err := session.Open(p.cfg)
	if err != nil {
		p.stopLocked(err)
		return nil, err
	}
	p.since.Store(time.Now().UnixNano())

	logrus.WithFields(logrus.Fields{
		"function":     "Pipeline.Start",
		"session":      session.ID(),
		"destination":  p.cfg.Destination(),
		"header_bytes": len(headers),
	}).Info("Pipeline started")

	return headers, nil
}

// Submit encodes one frame. Submissions are serialized. Per-frame errors
// drop the frame and leave the stream running unless the configuration
// asks for them to be fatal.
func (p *Pipeline) Submit(frame []byte, index int64, keyHint byte) error {
	p.mu.Lock()
	defer p.unlock()

	if p.stopped.Load() {
		return ErrStopped
	}
	session := p.session.Load()
	if session == nil {
		return ErrNotStarted
	}

	p.submitted.Add(1)
	_, err := session.Encode(frame, index, keyHint)
	if err == nil {
		return nil
	}

	p.dropped.Add(1)
	if p.cfg.FatalFrameErrors || !codec.IsFrameError(err) {
		logrus.WithFields(logrus.Fields{
			"function":    "Pipeline.Submit",
			"frame_index": index,
			"error":       err.Error(),
		}).Error("Stopping stream after frame failure")
		p.stopLocked(err)
	}
	return err
}

// Run pulls frames from src at the configured capture rate until ctx is
// cancelled, the source is exhausted or the stream stops. The first frame
// is taken immediately. It and every frame on a keyframe interval boundary
// carry the key tag.
func (p *Pipeline) Run(ctx context.Context, src source.Source) error {
	session := p.session.Load()
	if session == nil {
		return ErrNotStarted
	}

	keyint := int64(session.Params().KeyIntMax)

	var tick <-chan time.Time
	if p.interval > 0 {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for index := int64(0); ; index++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.finished:
			return p.Err()
		default:
		}

		if tick != nil && index > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-p.finished:
				return p.Err()
			case <-tick:
			}
		}

		frame, err := src.Next()
		if errors.Is(err, io.EOF) {
			logrus.WithFields(logrus.Fields{
				"function": "Pipeline.Run",
				"frames":   index,
			}).Info("Frame source exhausted")
			return nil
		}
		if err != nil {
			return fmt.Errorf("read frame %d: %w", index, err)
		}

		if err := p.Submit(frame, index, KeyHint(index, keyint)); err != nil && p.stopped.Load() {
			return p.Err()
		}
	}
}

// KeyHint returns the tag for frame index under a keyframe interval. With
// no interval only the first frame is tagged as key.
func KeyHint(index, keyint int64) byte {
	if keyint <= 0 {
		if index == 0 {
			return codec.TagKey
		}
		return codec.TagDelta
	}
	if index%keyint == 0 {
		return codec.TagKey
	}
	return codec.TagDelta
}

// Stop closes the session and then the transport. It is idempotent.
func (p *Pipeline) Stop() error {
	p.mu.Lock()
	defer p.unlock()
	return p.stopLocked(nil)
}

func (p *Pipeline) stopLocked(cause error) error {
	if p.stopped.Load() {
		return nil
	}
	p.stopped.Store(true)
	if cause != nil {
		p.setErr(cause)
	}

	var errs []error
	if session := p.session.Load(); session != nil {
		if err := session.Close(); err != nil {
			errs = append(errs, err)
		}
	} else {
		p.finish()
	}
	if p.sender != nil {
		if err := p.sender.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close transport: %w", err))
		}
	}

	logrus.WithFields(logrus.Fields{
		"function":  "Pipeline.Stop",
		"submitted": p.submitted.Load(),
		"dropped":   p.dropped.Load(),
	}).Info("Pipeline stopped")

	return errors.Join(errs...)
}

func (p *Pipeline) setErr(err error) {
	p.errMu.Lock()
	defer p.errMu.Unlock()
	if p.err == nil {
		p.err = err
	}
}

// Err returns the error that terminated the stream, if any.
func (p *Pipeline) Err() error {
	p.errMu.Lock()
	defer p.errMu.Unlock()
	return p.err
}

// Headers returns the stream headers, or nil when no session is open.
func (p *Pipeline) Headers() []byte {
	session := p.session.Load()
	if session == nil {
		return nil
	}
	return session.Headers()
}

// Config returns the configuration the pipeline was created with.
func (p *Pipeline) Config() config.Config {
	return p.cfg
}
