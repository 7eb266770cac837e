// Package limits provides centralized datagram size limits for the frame
// transmitter. This ensures consistent validation across the components
// that build and send packets.
package limits

import (
	"errors"
	"fmt"
)

const (
	// MaxUDPPayload is the largest payload a single IPv4 UDP datagram can carry
	// (65535 - 8 byte UDP header - 20 byte IP header).
	MaxUDPPayload = 65507

	// TagSize is the size of the frame-type tag prepended to every datagram.
	TagSize = 1

	// MaxAccessUnit is the largest compressed access unit that still fits in
	// one datagram together with its tag.
	MaxAccessUnit = MaxUDPPayload - TagSize

	// RecommendedMTUPayload is the payload size that avoids IP fragmentation
	// on a standard 1500 byte Ethernet MTU. Larger datagrams are still sent
	// but are logged at debug level since they fragment on the wire.
	RecommendedMTUPayload = 1472
)

var (
	// ErrDatagramEmpty indicates an empty datagram was provided
	ErrDatagramEmpty = errors.New("empty datagram")

	// ErrDatagramTooLarge indicates a datagram exceeds the maximum size
	ErrDatagramTooLarge = errors.New("datagram too large")
)

// ValidateDatagramSize validates a datagram against the specified maximum size.
// Returns an error with context including the actual and maximum sizes.
func ValidateDatagramSize(datagram []byte, maxSize int) error {
	if len(datagram) == 0 {
		return ErrDatagramEmpty
	}
	if len(datagram) > maxSize {
		return fmt.Errorf("%w: size %d exceeds limit %d", ErrDatagramTooLarge, len(datagram), maxSize)
	}
	return nil
}

// ValidateDatagram validates a complete tagged datagram against MaxUDPPayload.
func ValidateDatagram(datagram []byte) error {
	return ValidateDatagramSize(datagram, MaxUDPPayload)
}

// Fragments reports whether a datagram of the given size will be fragmented
// at the IP layer on a standard Ethernet path.
func Fragments(size int) bool {
	return size > RecommendedMTUPayload
}
