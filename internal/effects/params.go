package effects

import (
	"time"

	"libdb.so/pulseglow/internal/lights"
)

// Params tunes a running effect.
type Params struct {
	// Speed is the effect speed multiplier, 0 to 10.
	Speed float64
	// Intensity scales the effect's brightness, 0 to 1.
	Intensity float64
	// Color is an optional base color for effects that take one.
	Color *lights.Color
}

// DefaultParams returns the parameters effects start with.
func DefaultParams() Params {
	return Params{Speed: 1, Intensity: 1}
}

// Validate checks the parameters against their declared ranges. Out-of-range
// values are rejected here, never clamped downstream.
func (p Params) Validate() error {
	if p.Speed < 0 || p.Speed > 10 {
		return validationErrorf("speed", "must be between 0 and 10, got %v", p.Speed)
	}
	if p.Intensity < 0 || p.Intensity > 1 {
		return validationErrorf("intensity", "must be between 0 and 1, got %v", p.Intensity)
	}
	if p.Color != nil {
		if err := p.Color.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// tick derives an iteration period from the base period and the speed
// multiplier. Speed 0 is a valid parameter but a useless divisor, so it
// behaves like 1.
func (p Params) tick(base time.Duration) time.Duration {
	if p.Speed <= 0 {
		return base
	}
	return time.Duration(float64(base) / p.Speed)
}
