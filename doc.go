// Package framecast streams raw video frames as low-latency H.264 over UDP.
//
// Raw frames at a fixed size and rate are converted to planar I420,
// compressed with libx264 and every access unit is sent immediately as one
// datagram tagged with a one-byte frame type (1 for key, 0 otherwise).
//
// # Getting Started
//
//	cfg := config.Default()
//	cfg.DestAddress = "10.0.0.2"
//	cfg.DestPort = 5000
//
//	stream := framecast.New(cfg)
//	headers, err := stream.Start()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer stream.Stop()
//
//	// hand headers to receivers out of band, then
//	err = stream.Submit(frame, 0, codec.TagKey)
//
// Or let the stream pull from a source at the configured rate:
//
//	src, _ := source.NewPattern(cfg.SourceFormat, cfg.Width, cfg.Height)
//	err = stream.Run(ctx, src)
//
// # Packages
//
//   - [github.com/opd-ai/framecast/config]: session configuration, YAML and environment loading
//   - [github.com/opd-ai/framecast/params]: low-latency encoder parameter derivation
//   - [github.com/opd-ai/framecast/colorconv]: conversion of raw layouts to I420
//   - [github.com/opd-ai/framecast/codec]: the encoder session state machine
//   - [github.com/opd-ai/framecast/transport]: tagged UDP datagrams
//   - [github.com/opd-ai/framecast/pipeline]: one stream from start to stop
//   - [github.com/opd-ai/framecast/control]: HTTP and WebSocket side channel
//
// # Delivery
//
// Datagrams are fire-and-forget. There is no retransmission, no
// acknowledgement and no rate adaptation. Receivers that join late fetch
// the stream headers from the control channel.
package framecast
