package pixfmt

import "errors"

// ErrUnknownFormat indicates a pixel layout name that is not recognized.
var ErrUnknownFormat = errors.New("unknown pixel format")
