package transport

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/framecast/codec"
	"github.com/opd-ai/framecast/limits"
)

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("transport closed")

// Stats counts what the sender has done since it was created.
type Stats struct {
	Datagrams uint64 `json:"datagrams"`
	Bytes     uint64 `json:"bytes"`
	Errors    uint64 `json:"errors"`
	Oversize  uint64 `json:"oversize"`

	// Fragmented counts datagrams above the recommended MTU payload.
	Fragmented uint64 `json:"fragmented"`
}

// UDPSender is a fire-and-forget datagram sender bound to one destination.
// It implements codec.Sink.
type UDPSender struct {
	conn net.PacketConn
	dest net.Addr

	mu     sync.Mutex
	closed bool

	datagrams  atomic.Uint64
	bytes      atomic.Uint64
	failures   atomic.Uint64
	oversize   atomic.Uint64
	fragmented atomic.Uint64
}

// NewUDPSender binds a datagram socket on bindAddr and resolves destAddr
// once. Neither is changed for the lifetime of the sender.
func NewUDPSender(bindAddr, destAddr string) (*UDPSender, error) {
	dest, err := net.ResolveUDPAddr("udp", destAddr)
	if err != nil {
		return nil, fmt.Errorf("resolve destination %q: %w", destAddr, err)
	}

	conn, err := net.ListenPacket("udp", bindAddr)
	if err != nil {
		return nil, fmt.Errorf("bind %q: %w", bindAddr, err)
	}

	logrus.WithFields(logrus.Fields{
		"function":    "NewUDPSender",
		"local_addr":  conn.LocalAddr().String(),
		"destination": dest.String(),
	}).Info("UDP sender ready")

	return NewSender(conn, dest), nil
}

// NewSender wraps an existing packet connection. The sender takes
// ownership of conn and closes it on Close.
func NewSender(conn net.PacketConn, dest net.Addr) *UDPSender {
	return &UDPSender{
		conn: conn,
		dest: dest,
	}
}

// Send packetizes au and writes it as one datagram.
func (s *UDPSender) Send(au codec.AccessUnit) error {
	return s.SendDatagram(Packetize(au.Tag, au.Payload))
}

// SendDatagram writes an already tagged datagram to the destination.
func (s *UDPSender) SendDatagram(datagram []byte) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}

	if err := limits.ValidateDatagram(datagram); err != nil {
		s.failures.Add(1)
		if errors.Is(err, limits.ErrDatagramTooLarge) {
			s.oversize.Add(1)
		}
		logrus.WithFields(logrus.Fields{
			"function": "UDPSender.SendDatagram",
			"size":     len(datagram),
			"error":    err.Error(),
		}).Warn("Datagram rejected")
		return err
	}

	if limits.Fragments(len(datagram)) {
		s.fragmented.Add(1)
	}

	n, err := s.conn.WriteTo(datagram, s.dest)
	if err != nil {
		s.failures.Add(1)
		logrus.WithFields(logrus.Fields{
			"function":    "UDPSender.SendDatagram",
			"destination": s.dest.String(),
			"size":        len(datagram),
			"error":       err.Error(),
		}).Debug("Datagram write failed")
		return err
	}

	s.datagrams.Add(1)
	s.bytes.Add(uint64(n))
	return nil
}

// Stats returns a snapshot of the counters.
func (s *UDPSender) Stats() Stats {
	return Stats{
		Datagrams:  s.datagrams.Load(),
		Bytes:      s.bytes.Load(),
		Errors:     s.failures.Load(),
		Oversize:   s.oversize.Load(),
		Fragmented: s.fragmented.Load(),
	}
}

// LocalAddr returns the address the sender is bound to.
func (s *UDPSender) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

// Destination returns the fixed destination address.
func (s *UDPSender) Destination() net.Addr {
	return s.dest
}

// Close releases the socket. Calling it more than once is harmless.
func (s *UDPSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.conn.Close()
}
