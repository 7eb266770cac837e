// Package x264 opens H.264 encoders through the libx264 binding of
// github.com/pion/mediadevices. It requires cgo and libx264 at build time.
//
// The binding exposes the preset, the keyframe interval and the bit rate.
// B-frame count, constant quantizer, tune and profile cannot be passed
// through it; they are logged and left to the preset.
package x264
