package codec

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/framecast/colorconv"
	"github.com/opd-ai/framecast/config"
	"github.com/opd-ai/framecast/h264"
	"github.com/opd-ai/framecast/params"
	"github.com/opd-ai/framecast/picture"
	"github.com/opd-ai/framecast/pixfmt"
)

var (
	testSPS = []byte{0x67, 0x42, 0xc0, 0x1e}
	testPPS = []byte{0x68, 0xce, 0x3c, 0x80}
	testIDR = []byte{0x65, 0x88, 0x84, 0x21}
)

type fakeEncoder struct {
	headers    []byte
	headersErr error
	encodeErr  error
	// buffer is the number of leading pictures the encoder holds back.
	buffer  int
	encoded int
	closed  int
	lastPTS int64
}

func (e *fakeEncoder) Headers() ([]byte, error) {
	return e.headers, e.headersErr
}

func (e *fakeEncoder) Encode(pic *picture.Picture) ([]byte, error) {
	if e.encodeErr != nil {
		return nil, e.encodeErr
	}
	e.encoded++
	e.lastPTS = pic.PTS
	if e.encoded <= e.buffer {
		return nil, nil
	}
	return h264.Join(testIDR), nil
}

func (e *fakeEncoder) Close() error {
	e.closed++
	return nil
}

type fakeBackend struct {
	enc    *fakeEncoder
	err    error
	opened int
	params params.Params
}

func (b *fakeBackend) Open(p params.Params) (Encoder, error) {
	b.opened++
	b.params = p
	if b.err != nil {
		return nil, b.err
	}
	return b.enc, nil
}

type failingConverter struct{}

func (failingConverter) NewContext(src, dst pixfmt.Format, width, height int) (colorconv.Context, error) {
	return nil, errors.New("no memory")
}

// shortScaleBackend yields contexts that write one scanline too few.
type shortScaleBackend struct{}

func (shortScaleBackend) NewContext(src, dst pixfmt.Format, width, height int) (colorconv.Context, error) {
	return shortScaleContext{height: height}, nil
}

type shortScaleContext struct {
	height int
}

func (c shortScaleContext) Scale(src picture.Raw, dst *picture.Picture) (int, error) {
	return c.height - 1, nil
}

func (shortScaleContext) Close() error { return nil }

type recordingSink struct {
	units []AccessUnit
}

func (r *recordingSink) Send(au AccessUnit) error {
	r.units = append(r.units, au)
	return nil
}

func newFakeEncoder() *fakeEncoder {
	return &fakeEncoder{headers: h264.Join(testSPS, testPPS)}
}

func newTestSession(t *testing.T, backend *fakeBackend, opts ...Option) (*Session, *int) {
	t.Helper()
	finished := 0
	opts = append([]Option{
		WithEncoderBackend(backend),
		WithFinishedHandler(func() { finished++ }),
	}, opts...)
	return NewSession(opts...), &finished
}

func grayFrame(cfg config.Config) []byte {
	return bytes.Repeat([]byte{0x80}, cfg.FrameSize())
}

func TestOpenRejectsMissingWidth(t *testing.T) {
	backend := &fakeBackend{enc: newFakeEncoder()}
	s, finished := newTestSession(t, backend)

	cfg := config.Default()
	cfg.Width = 0

	headers, err := s.Open(cfg)
	assert.Nil(t, headers)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
	assert.Equal(t, 0, backend.opened)
	assert.Equal(t, 1, *finished)
	assert.Equal(t, StateUnopened, s.State())
}

func TestOpenRejectsNonI420Output(t *testing.T) {
	backend := &fakeBackend{enc: newFakeEncoder()}
	s, finished := newTestSession(t, backend)

	cfg := config.Default()
	cfg.DestFormat = pixfmt.RGBA

	_, err := s.Open(cfg)
	assert.True(t, errors.Is(err, ErrUnsupportedOutputFormat))
	assert.Equal(t, 0, backend.opened)
	assert.Equal(t, 1, *finished)
}

func TestOpenAndEncodeCIFGray(t *testing.T) {
	backend := &fakeBackend{enc: newFakeEncoder()}
	sink := &recordingSink{}
	s, finished := newTestSession(t, backend, WithSink(sink))

	cfg := config.Default()
	require.Equal(t, 352, cfg.Width)
	require.Equal(t, 288, cfg.Height)

	headers, err := s.Open(cfg)
	require.NoError(t, err)
	assert.Equal(t, h264.Join(testSPS, testPPS), headers)
	assert.Equal(t, StateOpen, s.State())
	assert.Equal(t, 0, *finished)

	p := s.Params()
	assert.Equal(t, params.DefaultPreset, p.Preset)
	assert.Equal(t, 1, p.KeyIntMax)
	assert.Equal(t, 1, p.Threads)
	assert.Equal(t, backend.params, p)

	au, err := s.Encode(grayFrame(cfg), 0, TagKey)
	require.NoError(t, err)
	require.NotNil(t, au)
	assert.Equal(t, TagKey, au.Tag)
	assert.Equal(t, int64(0), au.PTS)
	assert.True(t, h264.HasIDR(au.Payload))

	au, err = s.Encode(grayFrame(cfg), 1, TagDelta)
	require.NoError(t, err)
	require.NotNil(t, au)
	assert.Equal(t, TagDelta, au.Tag)
	assert.Equal(t, int64(1), au.FrameIndex)

	require.Len(t, sink.units, 2)
	assert.Equal(t, TagKey, sink.units[0].Tag)
	assert.Equal(t, int64(2), s.PTS())
	assert.Equal(t, int64(2), s.FrameCount())
	assert.Equal(t, int64(1), backend.enc.lastPTS)
}

func TestEncodeBeforeOpen(t *testing.T) {
	s, finished := newTestSession(t, &fakeBackend{enc: newFakeEncoder()})

	au, err := s.Encode(make([]byte, 16), 0, TagKey)
	assert.Nil(t, au)
	assert.True(t, errors.Is(err, ErrNotOpen))
	assert.Equal(t, int64(0), s.PTS())
	assert.Equal(t, int64(0), s.FrameCount())
	assert.Equal(t, 1, *finished)
}

func TestEncodeAfterClose(t *testing.T) {
	sink := &recordingSink{}
	s, finished := newTestSession(t, &fakeBackend{enc: newFakeEncoder()}, WithSink(sink))
	cfg := config.Default()
	_, err := s.Open(cfg)
	require.NoError(t, err)

	_, err = s.Encode(grayFrame(cfg), 0, TagKey)
	require.NoError(t, err)
	require.NoError(t, s.Close())
	assert.Equal(t, 1, *finished)

	pts, frames := s.PTS(), s.FrameCount()
	au, err := s.Encode(grayFrame(cfg), 1, TagDelta)
	assert.Nil(t, au)
	assert.True(t, errors.Is(err, ErrNotOpen))
	assert.Equal(t, pts, s.PTS())
	assert.Equal(t, frames, s.FrameCount())
	assert.Len(t, sink.units, 1)
	assert.Equal(t, 2, *finished)
}

func TestEncodeScaleMismatchKeepsSessionOpen(t *testing.T) {
	sink := &recordingSink{}
	enc := newFakeEncoder()
	s, finished := newTestSession(t, &fakeBackend{enc: enc},
		WithConverterBackend(shortScaleBackend{}), WithSink(sink))
	cfg := config.Default()
	_, err := s.Open(cfg)
	require.NoError(t, err)

	au, err := s.Encode(grayFrame(cfg), 0, TagKey)
	assert.Nil(t, au)
	assert.True(t, errors.Is(err, ErrScaleMismatch))
	assert.True(t, IsFrameError(err))
	assert.Equal(t, int64(1), s.PTS())
	assert.Equal(t, int64(0), s.FrameCount())
	assert.Equal(t, StateOpen, s.State())
	assert.Equal(t, 0, enc.encoded)
	assert.Empty(t, sink.units)
	assert.Equal(t, 0, *finished)
}

func TestEncodeShortBufferKeepsSessionOpen(t *testing.T) {
	backend := &fakeBackend{enc: newFakeEncoder()}
	s, _ := newTestSession(t, backend)
	cfg := config.Default()
	_, err := s.Open(cfg)
	require.NoError(t, err)

	au, err := s.Encode(make([]byte, 10), 0, TagKey)
	assert.Nil(t, au)
	assert.True(t, errors.Is(err, ErrFillFailed))
	assert.True(t, IsFrameError(err))
	assert.Equal(t, int64(1), s.PTS())
	assert.Equal(t, StateOpen, s.State())

	au, err = s.Encode(grayFrame(cfg), 1, TagDelta)
	require.NoError(t, err)
	assert.NotNil(t, au)
	assert.Equal(t, int64(1), au.PTS)
}

func TestEncodeBufferedFrame(t *testing.T) {
	enc := newFakeEncoder()
	enc.buffer = 2
	sink := &recordingSink{}
	s, _ := newTestSession(t, &fakeBackend{enc: enc}, WithSink(sink))
	cfg := config.Default()
	cfg.BFrames = 2
	_, err := s.Open(cfg)
	require.NoError(t, err)
	assert.Equal(t, 4, s.Params().KeyIntMax)

	for i := int64(0); i < 2; i++ {
		au, err := s.Encode(grayFrame(cfg), i, TagDelta)
		assert.NoError(t, err)
		assert.Nil(t, au)
	}
	assert.Empty(t, sink.units)
	assert.Equal(t, int64(0), s.FrameCount())
	assert.Equal(t, int64(2), s.PTS())

	au, err := s.Encode(grayFrame(cfg), 2, TagDelta)
	require.NoError(t, err)
	require.NotNil(t, au)
	assert.Len(t, sink.units, 1)
}

func TestEncodeFailureIsFrameLocal(t *testing.T) {
	enc := newFakeEncoder()
	enc.encodeErr = errors.New("x264_encoder_encode failed")
	s, _ := newTestSession(t, &fakeBackend{enc: enc})
	cfg := config.Default()
	_, err := s.Open(cfg)
	require.NoError(t, err)

	_, err = s.Encode(grayFrame(cfg), 0, TagKey)
	assert.True(t, errors.Is(err, ErrEncodeFailed))
	assert.True(t, IsFrameError(err))
	assert.False(t, IsFatal(err))
	assert.Equal(t, StateOpen, s.State())
}

func TestDoubleOpen(t *testing.T) {
	backend := &fakeBackend{enc: newFakeEncoder()}
	s, finished := newTestSession(t, backend)
	cfg := config.Default()

	first, err := s.Open(cfg)
	require.NoError(t, err)

	_, err = s.Open(cfg)
	assert.True(t, errors.Is(err, ErrAlreadyOpen))
	assert.Equal(t, 1, backend.opened)
	assert.Equal(t, 0, backend.enc.closed)
	assert.Equal(t, StateOpen, s.State())
	assert.Equal(t, first, s.Headers())
	assert.Equal(t, 1, *finished)
}

func TestConverterFailureIsFatal(t *testing.T) {
	backend := &fakeBackend{enc: newFakeEncoder()}
	s, finished := newTestSession(t, backend, WithConverterBackend(failingConverter{}))

	_, err := s.Open(config.Default())
	assert.True(t, IsFatal(err))
	assert.True(t, errors.Is(err, colorconv.ErrCannotCreateContext))
	assert.Equal(t, 0, backend.opened)
	assert.Equal(t, 1, *finished)
	assert.Equal(t, StateClosed, s.State())
}

func TestEncoderOpenFailureReleasesResources(t *testing.T) {
	backend := &fakeBackend{err: errors.New("x264_encoder_open returned NULL")}
	s, finished := newTestSession(t, backend)

	_, err := s.Open(config.Default())
	assert.True(t, errors.Is(err, ErrEncoderOpenFailed))
	assert.False(t, IsFatal(err))
	assert.Equal(t, 1, *finished)
	assert.Equal(t, StateClosed, s.State())

	_, err = s.Encode(make([]byte, 1), 0, TagKey)
	assert.True(t, errors.Is(err, ErrNotOpen))
}

func TestHeaderFailureClosesEncoder(t *testing.T) {
	enc := newFakeEncoder()
	enc.headers = nil
	s, finished := newTestSession(t, &fakeBackend{enc: enc})

	_, err := s.Open(config.Default())
	assert.True(t, errors.Is(err, ErrHeaderGenerationFailed))
	assert.Equal(t, 1, enc.closed)
	assert.Equal(t, 1, *finished)
	assert.Nil(t, s.Headers())
}

func TestMissingEncoderBackend(t *testing.T) {
	s := NewSession()
	_, err := s.Open(config.Default())
	assert.True(t, errors.Is(err, ErrEncoderOpenFailed))
}

func TestCloseAndReopen(t *testing.T) {
	backend := &fakeBackend{enc: newFakeEncoder()}
	s, finished := newTestSession(t, backend)
	cfg := config.Default()

	_, err := s.Open(cfg)
	require.NoError(t, err)
	_, err = s.Encode(grayFrame(cfg), 0, TagKey)
	require.NoError(t, err)

	require.NoError(t, s.Close())
	assert.Equal(t, StateClosed, s.State())
	assert.Equal(t, 1, backend.enc.closed)
	assert.Equal(t, 1, *finished)

	// closing twice is harmless and signals again
	require.NoError(t, s.Close())
	assert.Equal(t, 1, backend.enc.closed)
	assert.Equal(t, 2, *finished)

	_, err = s.Open(cfg)
	require.NoError(t, err)
	assert.Equal(t, int64(0), s.PTS())
	assert.Equal(t, int64(0), s.FrameCount())
}

func TestFinishedHandlerMayCallSession(t *testing.T) {
	s := NewSession(WithEncoderBackend(&fakeBackend{enc: newFakeEncoder()}))
	var seen State
	s.OnFinished(func() { seen = s.State() })

	require.NoError(t, s.Close())
	assert.Equal(t, StateClosed, seen)
}

func TestDumpFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.h264")
	s, _ := newTestSession(t, &fakeBackend{enc: newFakeEncoder()})
	cfg := config.Default()
	cfg.DumpPath = path

	headers, err := s.Open(cfg)
	require.NoError(t, err)
	au, err := s.Encode(grayFrame(cfg), 0, TagKey)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, append(append([]byte{}, headers...), au.Payload...), data)
}

func TestDumpFileFailure(t *testing.T) {
	enc := newFakeEncoder()
	s, finished := newTestSession(t, &fakeBackend{enc: enc})
	cfg := config.Default()
	cfg.DumpPath = filepath.Join(t.TempDir(), "missing", "out.h264")

	_, err := s.Open(cfg)
	assert.True(t, errors.Is(err, ErrDumpFailed))
	assert.Equal(t, 1, enc.closed)
	assert.Equal(t, 1, *finished)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "unopened", StateUnopened.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "unknown", State(9).String())
}
