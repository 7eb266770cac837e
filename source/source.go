// Package source provides raw frame sources for the encoding daemon.
//
// A Source yields one complete frame per Next call in the configured source
// pixel layout. The returned slice is only valid until the next call.
package source

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Source produces raw frames.
type Source interface {
	// Next returns the next frame, or io.EOF when there are no more.
	Next() ([]byte, error)
	Close() error
}

// ErrFrameSize indicates a non-positive frame size.
var ErrFrameSize = errors.New("frame size must be positive")

// RawFile reads fixed-size frames back to back from a file or stream.
type RawFile struct {
	r         io.Reader
	closer    io.Closer
	frameSize int
	loop      bool
	buf       []byte
	frames    int64
	name      string
}

// OpenRawFile opens path for frame reading. The path "-" reads standard
// input, which cannot loop.
func OpenRawFile(path string, frameSize int, loop bool) (*RawFile, error) {
	if frameSize <= 0 {
		return nil, ErrFrameSize
	}

	if path == "-" {
		if loop {
			logrus.WithField("function", "OpenRawFile").Warn("Looping is not possible on standard input, disabled")
		}
		src := NewRawReader(os.Stdin, frameSize)
		src.name = "stdin"
		return src, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open frame file: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"function":   "OpenRawFile",
		"path":       path,
		"frame_size": frameSize,
		"loop":       loop,
	}).Info("Frame file opened")

	return &RawFile{
		r:         f,
		closer:    f,
		frameSize: frameSize,
		loop:      loop,
		buf:       make([]byte, frameSize),
		name:      path,
	}, nil
}

// NewRawReader reads frames from r without looping.
func NewRawReader(r io.Reader, frameSize int) *RawFile {
	return &RawFile{
		r:         r,
		frameSize: frameSize,
		buf:       make([]byte, frameSize),
		name:      "reader",
	}
}

// Next implements Source. A trailing partial frame is discarded.
func (s *RawFile) Next() ([]byte, error) {
	_, err := io.ReadFull(s.r, s.buf)
	if err == nil {
		s.frames++
		return s.buf, nil
	}
	if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, err
	}

	if errors.Is(err, io.ErrUnexpectedEOF) {
		logrus.WithFields(logrus.Fields{
			"function": "RawFile.Next",
			"source":   s.name,
		}).Debug("Discarding trailing partial frame")
	}

	seeker, ok := s.r.(io.Seeker)
	if !s.loop || !ok || s.frames == 0 {
		return nil, io.EOF
	}
	if _, err := seeker.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind frame file: %w", err)
	}
	logrus.WithFields(logrus.Fields{
		"function": "RawFile.Next",
		"source":   s.name,
		"frames":   s.frames,
	}).Debug("Looping frame file")

	if _, err := io.ReadFull(s.r, s.buf); err != nil {
		return nil, io.EOF
	}
	s.frames++
	return s.buf, nil
}

// Frames returns the number of frames read so far, loops included.
func (s *RawFile) Frames() int64 {
	return s.frames
}

// Close closes the underlying file, if any.
func (s *RawFile) Close() error {
	if s.closer == nil {
		return nil
	}
	c := s.closer
	s.closer = nil
	return c.Close()
}
