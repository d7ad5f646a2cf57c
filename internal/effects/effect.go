// Package effects implements the beat-reactive visual effects and the
// scheduler that owns the single active one.
package effects

import (
	"context"
	"fmt"
	"sync"

	"libdb.so/pulseglow/internal/dsp"
)

// Kind identifies an effect variant. The set is closed.
type Kind int

const (
	Pulse Kind = iota
	Strobe
	Rainbow
	Chase
	Music
	Static

	numKinds
)

func (k Kind) String() string {
	switch k {
	case Pulse:
		return "pulse"
	case Strobe:
		return "strobe"
	case Rainbow:
		return "rainbow"
	case Chase:
		return "chase"
	case Music:
		return "music"
	case Static:
		return "static"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// KindFromString resolves an effect name, as used on DJ-deck buttons.
func KindFromString(s string) (Kind, bool) {
	for k := Kind(0); k < numKinds; k++ {
		if k.String() == s {
			return k, true
		}
	}
	return 0, false
}

type validationError struct {
	field  string
	reason string
}

func (e *validationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.field, e.reason)
}

func validationErrorf(field, format string, args ...interface{}) error {
	return &validationError{field: field, reason: fmt.Sprintf(format, args...)}
}

// effect is one cached effect instance. Instances are created lazily on
// first selection, reused across activations, and destroyed only at
// scheduler teardown.
type effect struct {
	kind Kind

	mu           sync.Mutex
	params       Params
	beatInterval float64 // seconds per beat, pulse only
	features     dsp.Features
	hasFeatures  bool

	// set while the control loop is running
	cancel context.CancelFunc
	done   chan struct{}
}

func newEffect(kind Kind) *effect {
	return &effect{
		kind:         kind,
		params:       DefaultParams(),
		beatInterval: 0.5, // 120 BPM until the first beat arrives
	}
}

func (e *effect) getParams() Params {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.params
}

func (e *effect) setParams(p Params) {
	e.mu.Lock()
	e.params = p
	e.mu.Unlock()
}

func (e *effect) getBeatInterval() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.beatInterval
}

func (e *effect) setBeatInterval(seconds float64) {
	e.mu.Lock()
	e.beatInterval = seconds
	e.mu.Unlock()
}

// latestFeatures returns the most recent band-energy snapshot, if any has
// arrived yet.
func (e *effect) latestFeatures() (dsp.Features, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.features, e.hasFeatures
}

func (e *effect) setFeatures(f dsp.Features) {
	e.mu.Lock()
	e.features = f
	e.hasFeatures = true
	e.mu.Unlock()
}
