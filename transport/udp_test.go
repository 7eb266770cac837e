package transport

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/framecast/codec"
	"github.com/opd-ai/framecast/limits"
)

func TestPacketize(t *testing.T) {
	payload := []byte{0x00, 0x00, 0x00, 0x01, 0x65}
	datagram := Packetize(codec.TagKey, payload)

	assert.Equal(t, []byte{0x01, 0x00, 0x00, 0x00, 0x01, 0x65}, datagram)
	assert.Equal(t, byte(0x00), payload[0], "payload must not be modified")

	tag, body, ok := Unpacketize(datagram)
	require.True(t, ok)
	assert.Equal(t, codec.TagKey, tag)
	assert.Equal(t, payload, body)

	_, _, ok = Unpacketize(nil)
	assert.False(t, ok)

	assert.Equal(t, []byte{0x00}, Packetize(codec.TagDelta, nil))
}

func newLoopback(t *testing.T) (net.PacketConn, *UDPSender) {
	t.Helper()
	listener, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { listener.Close() })

	sender, err := NewUDPSender("127.0.0.1:0", listener.LocalAddr().String())
	require.NoError(t, err)
	t.Cleanup(func() { sender.Close() })

	return listener, sender
}

func readDatagram(t *testing.T, conn net.PacketConn) []byte {
	t.Helper()
	buf := make([]byte, limits.MaxUDPPayload)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, _, err := conn.ReadFrom(buf)
	require.NoError(t, err)
	return buf[:n]
}

func TestUDPSenderDeliversTaggedAccessUnits(t *testing.T) {
	listener, sender := newLoopback(t)

	units := []codec.AccessUnit{
		{Tag: codec.TagKey, Payload: []byte{0x00, 0x00, 0x00, 0x01, 0x65, 0x88}},
		{Tag: codec.TagDelta, Payload: []byte{0x00, 0x00, 0x00, 0x01, 0x41, 0x9a}},
	}
	for _, au := range units {
		require.NoError(t, sender.Send(au))
	}

	for _, au := range units {
		got := readDatagram(t, listener)
		assert.Equal(t, Packetize(au.Tag, au.Payload), got)
	}

	stats := sender.Stats()
	assert.Equal(t, uint64(2), stats.Datagrams)
	assert.Equal(t, uint64(14), stats.Bytes)
	assert.Zero(t, stats.Errors)
	assert.Equal(t, listener.LocalAddr().String(), sender.Destination().String())
}

func TestUDPSenderRejectsOversize(t *testing.T) {
	_, sender := newLoopback(t)

	err := sender.Send(codec.AccessUnit{Tag: codec.TagKey, Payload: make([]byte, limits.MaxAccessUnit+1)})
	assert.True(t, errors.Is(err, limits.ErrDatagramTooLarge))

	stats := sender.Stats()
	assert.Equal(t, uint64(1), stats.Oversize)
	assert.Equal(t, uint64(1), stats.Errors)
	assert.Zero(t, stats.Datagrams)
}

func TestUDPSenderCountsFragmentedDatagrams(t *testing.T) {
	listener, sender := newLoopback(t)

	require.NoError(t, sender.Send(codec.AccessUnit{Payload: make([]byte, limits.RecommendedMTUPayload)}))
	readDatagram(t, listener)

	assert.Equal(t, uint64(1), sender.Stats().Fragmented)
}

func TestUDPSenderClose(t *testing.T) {
	_, sender := newLoopback(t)

	require.NoError(t, sender.Close())
	require.NoError(t, sender.Close())

	err := sender.Send(codec.AccessUnit{Payload: []byte{1}})
	assert.True(t, errors.Is(err, ErrClosed))
}

func TestNewUDPSenderBadDestination(t *testing.T) {
	_, err := NewUDPSender("127.0.0.1:0", "not-an-address")
	assert.Error(t, err)
}
