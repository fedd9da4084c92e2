// Package imagebuf builds ImageBuffer descriptors over existing pixel memory.
package imagebuf

import (
	iface "FaceOverlay/interface"
	"fmt"
)

// Wrap describes mem as an image of the given geometry. No pixel data is
// copied or converted; rowStride must be the physical byte pitch between the
// starts of consecutive rows.
func Wrap(mem []byte, width, height, rowStride int, format iface.PixelFormat) (iface.ImageBuffer, error) {
	bpp := format.BytesPerPixel()
	if bpp == 0 {
		return iface.ImageBuffer{}, fmt.Errorf("unsupported pixel format %d", format)
	}
	if width <= 0 || height <= 0 {
		return iface.ImageBuffer{}, fmt.Errorf("invalid image size %dx%d", width, height)
	}
	if rowStride < width*bpp {
		return iface.ImageBuffer{}, fmt.Errorf("row stride %d smaller than row width %d bytes", rowStride, width*bpp)
	}
	size := height * rowStride
	if len(mem) < size {
		return iface.ImageBuffer{}, fmt.Errorf("pixel memory holds %d bytes, need %d", len(mem), size)
	}
	return iface.ImageBuffer{
		Width:        width,
		Height:       height,
		WidthStride:  rowStride,
		HeightStride: height,
		Format:       format,
		Data:         mem[:size:size],
		Size:         size,
		Fd:           0,
	}, nil
}

// Pack returns a tightly packed copy of buf's visible rows.
func Pack(buf iface.ImageBuffer) []byte {
	rowBytes := buf.Width * buf.Format.BytesPerPixel()
	if rowBytes == buf.WidthStride {
		out := make([]byte, buf.Size)
		copy(out, buf.Data)
		return out
	}
	out := make([]byte, rowBytes*buf.Height)
	for y := 0; y < buf.Height; y++ {
		copy(out[y*rowBytes:], buf.Row(y))
	}
	return out
}
