// Package lights defines the color model and the device boundary that the
// effect loops emit into.
package lights

import "fmt"

// HSBK ranges. Hue, saturation and brightness share the same 16-bit scale;
// kelvin only matters when saturation is low.
const (
	ColorMax  = 65535
	KelvinMin = 1500
	KelvinMax = 9000
)

// Color is a hue/saturation/brightness/kelvin tuple.
type Color struct {
	Hue        int
	Saturation int
	Brightness int
	Kelvin     int
}

// NewColor creates a validated color.
func NewColor(hue, saturation, brightness, kelvin int) (Color, error) {
	c := Color{
		Hue:        hue,
		Saturation: saturation,
		Brightness: brightness,
		Kelvin:     kelvin,
	}
	if err := c.Validate(); err != nil {
		return Color{}, err
	}
	return c, nil
}

// Validate checks that every channel is within its range.
func (c Color) Validate() error {
	if c.Hue < 0 || c.Hue > ColorMax {
		return fmt.Errorf("invalid hue: %d", c.Hue)
	}
	if c.Saturation < 0 || c.Saturation > ColorMax {
		return fmt.Errorf("invalid saturation: %d", c.Saturation)
	}
	if c.Brightness < 0 || c.Brightness > ColorMax {
		return fmt.Errorf("invalid brightness: %d", c.Brightness)
	}
	if c.Kelvin < KelvinMin || c.Kelvin > KelvinMax {
		return fmt.Errorf("invalid kelvin: %d", c.Kelvin)
	}
	return nil
}

// WithBrightness returns a copy of the color with the brightness replaced.
func (c Color) WithBrightness(brightness int) Color {
	c.Brightness = brightness
	return c
}

func (c Color) String() string {
	return fmt.Sprintf("hsbk(%d, %d, %d, %d)", c.Hue, c.Saturation, c.Brightness, c.Kelvin)
}
