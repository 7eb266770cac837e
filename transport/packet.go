package transport

// Packetize prefixes payload with the frame-type tag. The result is a new
// slice; payload is not modified.
func Packetize(tag byte, payload []byte) []byte {
	datagram := make([]byte, 1+len(payload))
	datagram[0] = tag
	copy(datagram[1:], payload)
	return datagram
}

// Unpacketize splits a received datagram into its tag and payload. ok is
// false for an empty datagram.
func Unpacketize(datagram []byte) (tag byte, payload []byte, ok bool) {
	if len(datagram) == 0 {
		return 0, nil, false
	}
	return datagram[0], datagram[1:], true
}
