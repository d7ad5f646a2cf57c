// Package pulseglow drives networked lights in time with live music: a DJ
// application streams beat, button and fader events over TCP, and/or a
// microphone feed is analyzed locally; both feed a set of mutually
// exclusive visual effects emitting color commands at the lights.
package pulseglow

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"libdb.so/pulseglow/internal/audio"
	"libdb.so/pulseglow/internal/effects"
	"libdb.so/pulseglow/internal/ledstrip"
	"libdb.so/pulseglow/internal/lights"
	"libdb.so/pulseglow/internal/os2l"
)

// Daemon is the main pulseglow daemon.
type Daemon struct {
	cfg    *Config
	logger *slog.Logger
}

// NewDaemon creates a new pulseglow daemon.
func NewDaemon(cfg *Config, logger *slog.Logger) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}

	return &Daemon{
		cfg:    cfg,
		logger: logger,
	}, nil
}

// Run starts the daemon. It blocks until the given context is canceled.
func (d *Daemon) Run(ctx context.Context) error {
	return (&internalDaemon{Daemon: d}).Run(ctx)
}

type internalDaemon struct {
	*Daemon
	scheduler *effects.Scheduler
	feedback  feedbackSender
}

var _ os2l.Handler = (*internalDaemon)(nil)

// feedbackSender is the slice of the OS2L server that the event handlers
// need to answer button presses.
type feedbackSender interface {
	SendFeedback(os2l.Feedback) error
}

func (d *internalDaemon) Run(ctx context.Context) error {
	strip, err := ledstrip.Open(
		d.cfg.Strip.Device, d.cfg.Strip.Baud, d.cfg.NumPixels(), d.logger)
	if err != nil {
		return errors.Wrap(err, "failed to open strip")
	}
	defer strip.Close()

	devices := make([]lights.Device, len(d.cfg.Strip.Segments))
	for i, seg := range d.cfg.Strip.Segments {
		devices[i] = strip.Segment(seg.Name, seg.Range[0], seg.Range[1])
	}

	d.scheduler = effects.NewScheduler(devices, d.logger)
	defer d.scheduler.Teardown()

	server := os2l.NewServer(d.cfg.Listen, d, d.logger)
	d.feedback = server

	errg, ctx := errgroup.WithContext(ctx)
	errg.Go(func() error {
		<-ctx.Done()
		d.logger.Debug("closing strip")
		if err := strip.Close(); err != nil {
			return errors.Wrap(err, "failed to close strip")
		}
		return ctx.Err()
	})
	errg.Go(func() error {
		return strip.ReadReplies(ctx)
	})
	errg.Go(func() error {
		return server.Run(ctx)
	})

	if d.cfg.Audio.Enabled {
		ac := d.cfg.audioConfig()
		capture := audio.NewCapture(audio.Config{
			Backend:    ac.Backend,
			Device:     ac.Device,
			SampleRate: ac.SampleRate,
			WindowSize: ac.Window,
			Channels:   ac.Channels,
		}, d.logger)

		errg.Go(func() error {
			return capture.Run(ctx)
		})
		errg.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case features := <-capture.Features():
					d.scheduler.RouteFeatures(features)
				}
			}
		})
	}

	if d.cfg.DefaultEffect != "" {
		kind, _ := effects.KindFromString(d.cfg.DefaultEffect)
		if err := d.scheduler.Select(kind, nil); err != nil {
			return errors.Wrap(err, "failed to start default effect")
		}
	}

	return errg.Wait()
}

// HandleBeat forwards beat timing to the active effect; when the pulse
// effect is active, beat strength also drives its intensity.
func (d *internalDaemon) HandleBeat(beat os2l.Beat) {
	d.scheduler.RouteTiming(beat.BPM)

	if kind, ok := d.scheduler.Active(); ok && kind == effects.Pulse {
		if err := d.scheduler.SetIntensity(beat.Strength / 100); err != nil {
			d.logger.Warn("failed to apply beat strength", "error", err)
		}
	}
}

// HandleButton maps button names onto effect variants: pressing a variant's
// button selects it, releasing the active variant's button stops it. Every
// accepted press is echoed back as feedback.
func (d *internalDaemon) HandleButton(btn os2l.Button) {
	kind, ok := effects.KindFromString(btn.Name)
	if !ok {
		d.logger.Debug("ignoring unmapped button", "name", btn.Name)
		return
	}

	if btn.On() {
		if err := d.scheduler.Select(kind, nil); err != nil {
			d.logger.Warn("failed to select effect", "effect", kind, "error", err)
			return
		}
	} else {
		d.scheduler.StopIf(kind)
	}

	if err := d.feedback.SendFeedback(os2l.NewFeedback(btn.Name, btn.Page, btn.On())); err != nil {
		d.logger.Warn("failed to send feedback", "error", err)
	}
}

// HandleCommand maps the four fader ids onto live parameter updates of the
// active effect: 1 speed, 2 intensity, 3 base-color hue, 4 color
// temperature.
func (d *internalDaemon) HandleCommand(cmd os2l.Command) {
	err := d.scheduler.UpdateParams(func(p *effects.Params) {
		switch cmd.ID {
		case 1:
			p.Speed = cmd.Param / 10
		case 2:
			p.Intensity = cmd.Param / 100
		case 3:
			c := baseColor(p)
			c.Hue = int(cmd.Param / 100 * lights.ColorMax)
			p.Color = &c
		case 4:
			c := baseColor(p)
			c.Kelvin = lights.KelvinMin + int(cmd.Param/100*(lights.KelvinMax-lights.KelvinMin))
			p.Color = &c
		}
	})
	if err != nil {
		d.logger.Warn("failed to apply command", "id", cmd.ID, "error", err)
	}
}

// baseColor returns the params' base color, or a saturated full-brightness
// starting point when none is set.
func baseColor(p *effects.Params) lights.Color {
	if p.Color != nil {
		return *p.Color
	}
	return lights.Color{
		Saturation: lights.ColorMax,
		Brightness: lights.ColorMax,
		Kelvin:     3500,
	}
}
