// Package transport sends tagged access units as single UDP datagrams.
//
// # Wire Format
//
// Every datagram is one byte of frame-type tag followed by one complete
// access unit:
//
//	+-----+---------------------------+
//	| tag |  access unit (Annex-B)    |
//	+-----+---------------------------+
//	  1 B   up to limits.MaxAccessUnit
//
// There is no sequence number, no fragmentation and no acknowledgement.
// Datagrams that are lost or arrive out of order stay that way.
//
// # Usage
//
//	sender, err := transport.NewUDPSender(":0", "10.0.0.2:5000")
//	if err != nil {
//	    return err
//	}
//	defer sender.Close()
//
//	session := codec.NewSession(codec.WithSink(sender))
//
// Send failures are logged and counted in Stats; they are never retried.
package transport
