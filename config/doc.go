// Package config defines the session configuration for the frame encoding
// pipeline.
//
// A Config starts from Default, is optionally overlaid with a YAML file
// (Load), then with FRAMECAST_* environment variables (ApplyEnvironment),
// and finally with command-line flags by the daemon:
//
//	cfg, err := config.Load("framecast.yaml")
//	if err != nil {
//	    return err
//	}
//	config.ApplyEnvironment(&cfg)
//	if err := config.Validate(cfg); err != nil {
//	    return err // wraps config.ErrInvalidConfig
//	}
//
// # Environment Variables
//
//	FRAMECAST_WIDTH, FRAMECAST_HEIGHT, FRAMECAST_FRAME_RATE
//	FRAMECAST_SOURCE_FORMAT            gray8 | bgr24 | rgb24 | rgba | i420
//	FRAMECAST_B_FRAMES, FRAMECAST_QP   QP -1 disables constant quantizer
//	FRAMECAST_PRESET, FRAMECAST_TUNE, FRAMECAST_PROFILE
//	FRAMECAST_FRAME_MULTIPLIER, FRAMECAST_BIT_RATE
//	FRAMECAST_DEST_ADDRESS, FRAMECAST_DEST_PORT, FRAMECAST_BIND_ADDRESS
//	FRAMECAST_DUMP_PATH, FRAMECAST_FATAL_FRAME_ERRORS
//
// Invalid values are logged with logrus and ignored.
package config
