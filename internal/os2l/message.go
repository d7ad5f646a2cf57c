// Package os2l implements the OS2L (Open Sound to Light) protocol spoken by
// DJ software such as VirtualDJ: a TCP link carrying brace-framed JSON events
// for beats, buttons and faders, with feedback messages going the other way.
//
// See https://www.virtualdj.com/wiki/os2l.html
package os2l

import (
	"fmt"

	"github.com/pkg/errors"
)

// Validation bounds for inbound events.
const (
	MinBPM      = 30.0
	MaxBPM      = 300.0
	MinStrength = 0.0
	MaxStrength = 100.0
	MinCmdID    = 1
	MaxCmdID    = 4
	MinParam    = 0.0
	MaxParam    = 100.0
)

// Decode errors. ValidationError covers in-range checks; everything else is
// a malformed or unknown message.
var (
	ErrMissingEvent = errors.New("missing 'evt' field in message")
	ErrUnknownEvent = errors.New("unknown event type")
)

// ValidationError reports a field whose value is outside its declared range.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func validationErrorf(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Message is an OS2L protocol message.
type Message interface {
	// Event returns the value of the message's evt field.
	Event() string
	// Validate checks every field against its declared range.
	Validate() error
}

// Beat carries beat timing from the DJ software.
type Beat struct {
	Pos      int     // beat position in the track
	BPM      float64 // 30-300
	Strength float64 // 0-100
	Change   bool    // whether the BPM just changed
}

func (Beat) Event() string { return "beat" }

func (m Beat) Validate() error {
	if m.Pos < 0 {
		return validationErrorf("pos", "must not be negative, got %d", m.Pos)
	}
	if m.BPM < MinBPM || m.BPM > MaxBPM {
		return validationErrorf("bpm", "must be between %v and %v, got %v", MinBPM, MaxBPM, m.BPM)
	}
	if m.Strength < MinStrength || m.Strength > MaxStrength {
		return validationErrorf("strength", "must be between %v and %v, got %v", MinStrength, MaxStrength, m.Strength)
	}
	return nil
}

// Interval returns the duration of one beat.
func (m Beat) Interval() float64 {
	return 60.0 / m.BPM
}

// Button carries a pad or button state change.
type Button struct {
	Name  string
	State string // "on" or "off"
	Page  string // optional
}

func (Button) Event() string { return "btn" }

func (m Button) Validate() error {
	if m.Name == "" {
		return validationErrorf("name", "must not be empty")
	}
	if m.State != "on" && m.State != "off" {
		return validationErrorf("state", "must be \"on\" or \"off\", got %q", m.State)
	}
	return nil
}

// On reports whether the button is pressed.
func (m Button) On() bool { return m.State == "on" }

// Command carries a fader or knob value.
type Command struct {
	ID    int     // 1-4
	Param float64 // 0-100
}

func (Command) Event() string { return "cmd" }

func (m Command) Validate() error {
	if m.ID < MinCmdID || m.ID > MaxCmdID {
		return validationErrorf("id", "must be between %d and %d, got %d", MinCmdID, MaxCmdID, m.ID)
	}
	if m.Param < MinParam || m.Param > MaxParam {
		return validationErrorf("param", "must be between %v and %v, got %v", MinParam, MaxParam, m.Param)
	}
	return nil
}

// Feedback mirrors a button state back to the DJ software. Outbound only.
type Feedback struct {
	Name  string
	State string // "on" or "off"
	Page  string // optional, omitted from the wire when empty
}

func (Feedback) Event() string { return "feedback" }

func (m Feedback) Validate() error {
	if m.Name == "" {
		return validationErrorf("name", "must not be empty")
	}
	if m.State != "on" && m.State != "off" {
		return validationErrorf("state", "must be \"on\" or \"off\", got %q", m.State)
	}
	return nil
}

// NewFeedback builds a feedback message from a boolean state.
func NewFeedback(name, page string, on bool) Feedback {
	state := "off"
	if on {
		state = "on"
	}
	return Feedback{Name: name, State: state, Page: page}
}
