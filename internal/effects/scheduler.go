package effects

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"libdb.so/pulseglow/internal/dsp"
	"libdb.so/pulseglow/internal/lights"
)

// Scheduler owns the effect instances and guarantees that at most one of
// them is running at any time. Selecting a new effect fully stops the old
// one before the new loop starts; there is never a window with two loops
// emitting.
type Scheduler struct {
	logger  *slog.Logger
	devices []lights.Device

	// emitMu serializes device emission so a stopping loop's last write
	// cannot interleave with the next loop's first.
	emitMu sync.Mutex

	mu      sync.Mutex
	effects map[Kind]*effect
	active  *effect
}

// NewScheduler creates a scheduler driving the given device set.
func NewScheduler(devices []lights.Device, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		logger:  logger,
		devices: devices,
		effects: make(map[Kind]*effect),
	}
}

// Select activates the given effect variant, constructing its instance on
// first use. If params is non-nil it replaces the instance's parameters.
// Any active effect, including the requested one, is stopped and fully
// awaited before the new loop starts, so Select with the active variant
// cleanly restarts it.
func (s *Scheduler) Select(kind Kind, params *Params) error {
	if params != nil {
		if err := params.Validate(); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopActiveLocked()

	e, ok := s.effects[kind]
	if !ok {
		e = newEffect(kind)
		s.effects[kind] = e
	}
	if params != nil {
		e.setParams(*params)
	}

	s.startLocked(e)
	s.logger.Info("effect selected", "effect", kind)
	return nil
}

// Stop stops the active effect, if any, and waits for its loop to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopActiveLocked()
}

// StopIf stops the active effect only when it is the given variant, in one
// step under the scheduler lock, and reports whether it stopped anything.
// A concurrent Select of a different variant can therefore never be undone
// by a stale release.
func (s *Scheduler) StopIf(kind Kind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil || s.active.kind != kind {
		return false
	}
	s.stopActiveLocked()
	return true
}

// Active returns the currently active effect variant.
func (s *Scheduler) Active() (Kind, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return 0, false
	}
	return s.active.kind, true
}

// ActiveParams returns the active effect's current parameters.
func (s *Scheduler) ActiveParams() (Params, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return Params{}, false
	}
	return s.active.getParams(), true
}

// RouteTiming forwards a beat interval derived from bpm to the active
// effect. Only the pulse variant consumes timing; for anything else this is
// a no-op.
func (s *Scheduler) RouteTiming(bpm float64) {
	if bpm <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil && s.active.kind == Pulse {
		s.active.setBeatInterval(60.0 / bpm)
	}
}

// RouteFeatures forwards a band-energy snapshot to the active effect. Only
// the music variant consumes features; for anything else this is a no-op.
func (s *Scheduler) RouteFeatures(f dsp.Features) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil && s.active.kind == Music {
		s.active.setFeatures(f)
	}
}

// UpdateParams mutates the active effect's parameters in place. The mutated
// parameters are validated before being applied; the loop picks them up on
// its next iteration. Without an active effect this is a no-op.
func (s *Scheduler) UpdateParams(mutate func(*Params)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return nil
	}

	p := s.active.getParams()
	mutate(&p)
	if err := p.Validate(); err != nil {
		return err
	}
	s.active.setParams(p)
	return nil
}

// SetIntensity replaces the active effect's intensity.
func (s *Scheduler) SetIntensity(intensity float64) error {
	return s.UpdateParams(func(p *Params) { p.Intensity = intensity })
}

// Teardown stops the active effect and discards every cached instance.
func (s *Scheduler) Teardown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopActiveLocked()
	s.effects = make(map[Kind]*effect)
}

// startLocked launches the effect's control loop and marks it active.
func (s *Scheduler) startLocked(e *effect) {
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.done = make(chan struct{})
	s.active = e
	go s.run(ctx, e)
}

// stopActiveLocked signals cancellation and blocks until the loop has
// observably exited. Two phases, so a stale loop can never race a freshly
// started one.
func (s *Scheduler) stopActiveLocked() {
	e := s.active
	if e == nil {
		return
	}
	e.cancel()
	<-e.done
	e.cancel = nil
	e.done = nil
	s.active = nil
}

func (s *Scheduler) run(ctx context.Context, e *effect) {
	defer close(e.done)

	logger := s.logger.With("effect", e.kind)
	logger.Debug("effect loop started")
	defer logger.Debug("effect loop exited")

	switch e.kind {
	case Pulse:
		s.runPulse(ctx, e)
	case Strobe:
		s.runStrobe(ctx, e)
	case Rainbow:
		s.runRainbow(ctx, e)
	case Chase:
		s.runChase(ctx, e)
	case Music:
		s.runMusic(ctx, e)
	case Static:
		s.runStatic(ctx, e)
	}
}

const neutralKelvin = 3500

// Pulse brightness levels on the 16-bit scale.
const (
	pulseFloor    = 16384 // 25%
	pulseBaseline = 32767 // 50%
)

// runPulse pulses brightness on the beat: a hard rise scaled by intensity,
// then a timed fall back to the baseline over the rest of the interval.
func (s *Scheduler) runPulse(ctx context.Context, e *effect) {
	for {
		params := e.getParams()
		interval := e.getBeatInterval()

		peak := pulseFloor + int(float64(lights.ColorMax-pulseFloor)*params.Intensity)
		s.emit(ctx, lights.Color{Brightness: peak, Kelvin: neutralKelvin}, 0)
		if !sleep(ctx, seconds(interval*0.25)) {
			return
		}

		fall := seconds(interval * 0.25)
		s.emit(ctx, lights.Color{Brightness: pulseBaseline, Kelvin: neutralKelvin}, fall)
		if !sleep(ctx, seconds(interval*0.75)) {
			return
		}
	}
}

// runStrobe alternates full brightness and off at a 50% duty cycle.
func (s *Scheduler) runStrobe(ctx context.Context, e *effect) {
	for {
		params := e.getParams()
		period := params.tick(100 * time.Millisecond)

		s.emit(ctx, lights.Color{Brightness: lights.ColorMax, Kelvin: neutralKelvin}, 0)
		if !sleep(ctx, period/2) {
			return
		}

		s.emit(ctx, lights.Color{Kelvin: neutralKelvin}, 0)
		if !sleep(ctx, period-period/2) {
			return
		}
	}
}

// runRainbow walks the hue wheel at full saturation.
func (s *Scheduler) runRainbow(ctx context.Context, e *effect) {
	hue := 0
	for {
		params := e.getParams()

		s.emit(ctx, lights.Color{
			Hue:        hue,
			Saturation: lights.ColorMax,
			Brightness: int(pulseBaseline * params.Intensity),
			Kelvin:     neutralKelvin,
		}, 100*time.Millisecond)

		hue = (hue + 1000) % lights.ColorMax

		if !sleep(ctx, params.tick(50*time.Millisecond)) {
			return
		}
	}
}

// runChase moves a bright spot along the device ordering, with brightness
// falling off linearly by distance from the spot.
func (s *Scheduler) runChase(ctx context.Context, e *effect) {
	n := len(s.devices)
	if n == 0 {
		return
	}

	position := 0
	for {
		params := e.getParams()

		s.emitEach(ctx, 50*time.Millisecond, func(i int) lights.Color {
			dist := i - position
			if dist < 0 {
				dist = -dist
			}
			falloff := 1 - float64(dist)/float64(n)
			if falloff < 0 {
				falloff = 0
			}
			return lights.Color{
				Brightness: int(lights.ColorMax * falloff * params.Intensity),
				Kelvin:     neutralKelvin,
			}
		})

		position = (position + 1) % n

		if !sleep(ctx, params.tick(200*time.Millisecond)) {
			return
		}
	}
}

// runMusic maps the latest band-energy snapshot onto the color wheel: bass
// drives hue (red through yellow), mids saturation, highs brightness. Until
// the first snapshot arrives the loop idles without emitting.
func (s *Scheduler) runMusic(ctx context.Context, e *effect) {
	for {
		features, ok := e.latestFeatures()
		if !ok {
			if !sleep(ctx, 100*time.Millisecond) {
				return
			}
			continue
		}

		params := e.getParams()
		s.emit(ctx, lights.Color{
			Hue:        int(features.Level(dsp.Bass) * 21845),
			Saturation: int(features.Level(dsp.Mid) * lights.ColorMax),
			Brightness: int(features.Level(dsp.High) * lights.ColorMax * params.Intensity),
			Kelvin:     neutralKelvin,
		}, 0)

		if !sleep(ctx, 50*time.Millisecond) {
			return
		}
	}
}

// runStatic emits the configured base color once, then idles until stopped.
func (s *Scheduler) runStatic(ctx context.Context, e *effect) {
	params := e.getParams()

	color := lights.Color{Brightness: lights.ColorMax, Kelvin: neutralKelvin}
	if params.Color != nil {
		color = *params.Color
	}
	color.Brightness = int(float64(color.Brightness) * params.Intensity)

	s.emit(ctx, color, 0)
	<-ctx.Done()
}

// emit sends one color to every device. The color is validated before it
// crosses the device boundary; a failing device is logged and skipped so a
// flaky light never stops the loop.
func (s *Scheduler) emit(ctx context.Context, c lights.Color, fade time.Duration) {
	s.emitEach(ctx, fade, func(int) lights.Color { return c })
}

func (s *Scheduler) emitEach(ctx context.Context, fade time.Duration, colorFor func(i int) lights.Color) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	for i, dev := range s.devices {
		c := colorFor(i)
		if err := c.Validate(); err != nil {
			s.logger.Error("refusing to emit invalid color",
				"device", dev.Label(),
				"color", c,
				"error", err)
			continue
		}
		if err := dev.SetColor(ctx, c, fade); err != nil {
			s.logger.Warn("device command failed",
				"device", dev.Label(),
				"error", err)
		}
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// sleep waits for the duration or for cancellation, reporting whether the
// loop should keep going.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
