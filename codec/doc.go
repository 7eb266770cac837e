// Package codec implements the encoder session: a state machine that owns a
// color converter, a working I420 picture and a compressed-bitstream
// encoder for the lifetime of one stream.
//
// # Lifecycle
//
//	Unopened --Open ok--> Open --Close--> Closed --Open ok--> Open
//
// Open validates the configuration, rejects a second Open while the first
// is still active, derives the low-latency encoder parameters and returns
// the stream headers. Every failed Open and every Close signals finished
// to the registered handlers.
//
// # Encoding
//
//	s := codec.NewSession(
//	    codec.WithEncoderBackend(x264.Backend{}),
//	    codec.WithSink(sender),
//	)
//	headers, err := s.Open(cfg)
//	...
//	au, err := s.Encode(raw, index, codec.TagKey)
//
// Per-frame failures (ErrFillFailed, ErrScaleMismatch, ErrEncodeFailed)
// drop only the submitted frame. The presentation timestamp advances once
// per Encode on an open session regardless of the outcome.
package codec
