package ledstrip

import (
	"math"

	"libdb.so/pulseglow/internal/lights"
)

// RGB is one pixel.
type RGB [3]uint8

// Frame is the full pixel state of a strip.
type Frame []RGB

// NewFrame creates a frame of numPixels pixels, all off.
func NewFrame(numPixels int) Frame {
	return make(Frame, numPixels)
}

// SetRange fills [start, end) with the given pixel value. Out-of-bounds
// indices are clipped.
func (f Frame) SetRange(start, end int, c RGB) {
	if start < 0 {
		start = 0
	}
	if end > len(f) {
		end = len(f)
	}
	for i := start; i < end; i++ {
		f[i] = c
	}
}

// Pixels returns the frame as the flat byte layout the wire protocol wants.
func (f Frame) Pixels() []uint8 {
	pix := make([]uint8, 0, 3*len(f))
	for _, c := range f {
		pix = append(pix, c[0], c[1], c[2])
	}
	return pix
}

// fromHSBK converts an HSBK color to a strip pixel. RGB strips have no
// white channel, so kelvin is not representable and low-saturation colors
// come out as plain scaled white.
func fromHSBK(c lights.Color) RGB {
	h := float64(c.Hue) / lights.ColorMax * 360
	s := float64(c.Saturation) / lights.ColorMax
	v := float64(c.Brightness) / lights.ColorMax

	chroma := v * s
	x := chroma * (1 - math.Abs(math.Mod(h/60, 2)-1))
	m := v - chroma

	var r, g, b float64
	switch {
	case h < 60:
		r, g, b = chroma, x, 0
	case h < 120:
		r, g, b = x, chroma, 0
	case h < 180:
		r, g, b = 0, chroma, x
	case h < 240:
		r, g, b = 0, x, chroma
	case h < 300:
		r, g, b = x, 0, chroma
	default:
		r, g, b = chroma, 0, x
	}

	return RGB{
		uint8((r + m) * 255),
		uint8((g + m) * 255),
		uint8((b + m) * 255),
	}
}
