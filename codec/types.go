package codec

import (
	"github.com/opd-ai/framecast/params"
	"github.com/opd-ai/framecast/picture"
)

// Frame-type tags carried in the first byte of every datagram.
const (
	TagDelta byte = 0
	TagKey   byte = 1
)

// AccessUnit is one compressed output frame and the caller-supplied tag it
// is sent with. It is handed to the sink and not retained by the session.
type AccessUnit struct {
	Tag     byte
	Payload []byte
	// PTS is the presentation timestamp of the submission that released
	// this access unit.
	PTS int64
	// FrameIndex is the caller's index of that submission.
	FrameIndex int64
}

// Encoder is an open compressed-bitstream encoder.
type Encoder interface {
	// Headers returns the stream headers (SPS/PPS for H.264).
	Headers() ([]byte, error)
	// Encode compresses pic. An empty result means the encoder buffered the
	// picture and has no access unit ready yet; it is not an error.
	Encode(pic *picture.Picture) ([]byte, error)
	// Close releases the encoder.
	Close() error
}

// EncoderBackend opens encoders for resolved parameters.
type EncoderBackend interface {
	Open(p params.Params) (Encoder, error)
}

// Sink receives every access unit the session produces.
type Sink interface {
	Send(au AccessUnit) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(au AccessUnit) error

// Send implements Sink.
func (f SinkFunc) Send(au AccessUnit) error {
	return f(au)
}

// State is the lifecycle state of a Session.
type State int

const (
	// StateUnopened is a fresh session.
	StateUnopened State = iota
	// StateOpen holds an encoder, a converter and a working picture.
	StateOpen
	// StateClosed has released everything; Open may be called again.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnopened:
		return "unopened"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}
