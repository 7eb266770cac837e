// Package colorconv adapts a color conversion backend to an encoding
// session's fixed geometry.
//
// A Converter is opened once per session for one source layout, the I420
// destination layout and one frame size:
//
//	conv, err := colorconv.Open(colorconv.SoftwareBackend{}, pixfmt.Gray8, pixfmt.I420, 352, 288)
//	if colorconv.IsFatal(err) {
//	    // no degraded mode exists without a conversion context
//	}
//	defer conv.Close()
//
//	raw, _ := picture.Fill(buf, pixfmt.Gray8, 352, 288)
//	if err := conv.Convert(raw, pic); errors.Is(err, colorconv.ErrScaleMismatch) {
//	    // per-frame failure, the converter stays usable
//	}
//
// Backends implement Backend and Context. SoftwareBackend handles gray8 and
// i420 sources plane by plane and converts packed bgr24, rgb24 and rgba
// sources through github.com/pion/mediadevices/pkg/io/video.ToI420.
package colorconv
