//go:build !cgo

package encoder

import (
	"image"
	"io"
)

const webpEncoderBuilt = false

func encodeWebP(io.Writer, image.Image, int) error {
	return unavailable("raster", "webp encoder needs cgo")
}
