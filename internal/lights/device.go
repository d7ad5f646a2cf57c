package lights

import (
	"context"
	"time"
)

// Device is a single addressable light. Implementations are expected to be
// safe for use from one goroutine at a time; callers serialize emissions.
type Device interface {
	// Label returns a stable human-readable name for logging.
	Label() string
	// SetColor moves the device to the given color over the fade duration.
	// A zero duration applies the color immediately.
	SetColor(ctx context.Context, c Color, fade time.Duration) error
	// SetPower turns the device on or off.
	SetPower(ctx context.Context, on bool) error
}
