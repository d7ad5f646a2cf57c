package pulseglow

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"libdb.so/pulseglow/internal/effects"
	"libdb.so/pulseglow/internal/lights"
	"libdb.so/pulseglow/internal/os2l"
)

type nullDevice struct{}

func (nullDevice) Label() string                                               { return "null" }
func (nullDevice) SetColor(context.Context, lights.Color, time.Duration) error { return nil }
func (nullDevice) SetPower(context.Context, bool) error                        { return nil }

// feedbackRecorder stands in for the OS2L server's broadcast side.
type feedbackRecorder struct {
	sent []os2l.Feedback
}

func (r *feedbackRecorder) SendFeedback(fb os2l.Feedback) error {
	r.sent = append(r.sent, fb)
	return nil
}

func newTestDaemon(t *testing.T) (*internalDaemon, *feedbackRecorder) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	feedback := &feedbackRecorder{}
	d := &internalDaemon{
		Daemon:    &Daemon{cfg: &Config{}, logger: logger},
		scheduler: effects.NewScheduler([]lights.Device{nullDevice{}}, logger),
		feedback:  feedback,
	}
	t.Cleanup(d.scheduler.Teardown)
	return d, feedback
}

func TestHandleBeatDrivesPulse(t *testing.T) {
	d, _ := newTestDaemon(t)

	if err := d.scheduler.Select(effects.Pulse, nil); err != nil {
		t.Fatal(err)
	}

	d.HandleBeat(os2l.Beat{Pos: 1, BPM: 128, Strength: 80})

	p, ok := d.scheduler.ActiveParams()
	if !ok {
		t.Fatal("no active effect")
	}
	if p.Intensity != 0.8 {
		t.Errorf("intensity = %v, want 0.8 from strength 80", p.Intensity)
	}
}

func TestHandleBeatLeavesOtherEffectsAlone(t *testing.T) {
	d, _ := newTestDaemon(t)

	if err := d.scheduler.Select(effects.Rainbow, &effects.Params{Speed: 1, Intensity: 0.3}); err != nil {
		t.Fatal(err)
	}

	d.HandleBeat(os2l.Beat{Pos: 1, BPM: 128, Strength: 10})

	p, _ := d.scheduler.ActiveParams()
	if p.Intensity != 0.3 {
		t.Errorf("beat strength overwrote rainbow intensity: %v", p.Intensity)
	}
}

func TestHandleButtonSelectsAndStops(t *testing.T) {
	d, feedback := newTestDaemon(t)

	d.HandleButton(os2l.Button{Name: "strobe", State: "on", Page: "fx"})
	if kind, ok := d.scheduler.Active(); !ok || kind != effects.Strobe {
		t.Fatalf("active after press = %v, %v; want strobe", kind, ok)
	}

	// Releasing a variant that is not active must not disturb the one
	// that is.
	d.HandleButton(os2l.Button{Name: "pulse", State: "off", Page: "fx"})
	if kind, ok := d.scheduler.Active(); !ok || kind != effects.Strobe {
		t.Fatalf("active after foreign release = %v, %v; want strobe", kind, ok)
	}

	d.HandleButton(os2l.Button{Name: "strobe", State: "off", Page: "fx"})
	if _, ok := d.scheduler.Active(); ok {
		t.Fatal("release of the active variant did not stop it")
	}

	want := []os2l.Feedback{
		{Name: "strobe", State: "on", Page: "fx"},
		{Name: "pulse", State: "off", Page: "fx"},
		{Name: "strobe", State: "off", Page: "fx"},
	}
	if len(feedback.sent) != len(want) {
		t.Fatalf("sent %d feedback messages, want %d", len(feedback.sent), len(want))
	}
	for i, fb := range want {
		if feedback.sent[i] != fb {
			t.Errorf("feedback[%d] = %+v, want %+v", i, feedback.sent[i], fb)
		}
	}
}

func TestHandleButtonIgnoresUnmappedNames(t *testing.T) {
	d, feedback := newTestDaemon(t)

	d.HandleButton(os2l.Button{Name: "smoke_machine", State: "on"})

	if _, ok := d.scheduler.Active(); ok {
		t.Error("unmapped button selected an effect")
	}
	if len(feedback.sent) != 0 {
		t.Errorf("unmapped button produced feedback: %+v", feedback.sent)
	}
}

func TestHandleCommandMapsFaders(t *testing.T) {
	d, _ := newTestDaemon(t)

	if err := d.scheduler.Select(effects.Static, nil); err != nil {
		t.Fatal(err)
	}

	d.HandleCommand(os2l.Command{ID: 1, Param: 25})
	d.HandleCommand(os2l.Command{ID: 2, Param: 50})
	d.HandleCommand(os2l.Command{ID: 3, Param: 100})
	d.HandleCommand(os2l.Command{ID: 4, Param: 0})

	p, ok := d.scheduler.ActiveParams()
	if !ok {
		t.Fatal("no active effect")
	}
	if p.Speed != 2.5 {
		t.Errorf("speed = %v, want 2.5", p.Speed)
	}
	if p.Intensity != 0.5 {
		t.Errorf("intensity = %v, want 0.5", p.Intensity)
	}
	if p.Color == nil {
		t.Fatal("commands 3 and 4 did not set a base color")
	}
	if p.Color.Hue != lights.ColorMax {
		t.Errorf("hue = %d, want %d", p.Color.Hue, lights.ColorMax)
	}
	if p.Color.Kelvin != lights.KelvinMin {
		t.Errorf("kelvin = %d, want %d", p.Color.Kelvin, lights.KelvinMin)
	}
}
