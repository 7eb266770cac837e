// Package limits provides centralized datagram size constants and validation
// functions for the frame transmitter.
//
// # Size Hierarchy
//
//   - MaxUDPPayload (65507 bytes): the largest payload of a single IPv4 UDP
//     datagram. A tagged access unit larger than this cannot be sent at all.
//
//   - MaxAccessUnit (65506 bytes): MaxUDPPayload minus the one byte
//     frame-type tag.
//
//   - RecommendedMTUPayload (1472 bytes): above this size the datagram is
//     fragmented by IP. Low-latency encodes of small resolutions stay below
//     it; larger frames still go out but depend on fragment reassembly.
//
// # Validation
//
//	err := limits.ValidateDatagram(packet)
//	if errors.Is(err, limits.ErrDatagramTooLarge) {
//	    // drop the frame, the transport has no fragmentation of its own
//	}
package limits
