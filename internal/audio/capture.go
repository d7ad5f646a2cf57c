// Package audio captures microphone audio and feeds it through the spectral
// analyzer, publishing band-energy snapshots for the music effect.
package audio

import (
	"context"
	"log/slog"

	"github.com/noriah/catnip/input"
	"github.com/pkg/errors"

	"libdb.so/pulseglow/internal/dsp"

	// Register the capture backends.
	_ "github.com/noriah/catnip/input/all"
)

// Config selects and shapes the capture session.
type Config struct {
	// Backend is the catnip input backend name, e.g. "pipewire" or "parec".
	Backend string
	// Device is the capture device name. Empty means the backend default.
	Device string
	// SampleRate in Hz.
	SampleRate float64
	// WindowSize is the number of samples per analyzed frame.
	WindowSize int
	// Channels is the number of capture channels.
	Channels int
}

// Capture runs an audio session and analyzes every delivered frame. The
// analysis happens inside the capture callback and must stay cheap; the
// results leave through a latest-wins channel so a slow consumer never
// backs up the audio thread.
type Capture struct {
	cfg      Config
	logger   *slog.Logger
	analyzer *dsp.Analyzer

	buffers [][]input.Sample
	scratch [][]float64
	out     chan dsp.Features
}

// NewCapture creates a capture for the given configuration.
func NewCapture(cfg Config, logger *slog.Logger) *Capture {
	if cfg.Channels <= 0 {
		cfg.Channels = 2
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = dsp.DefaultSampleRate
	}
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = dsp.DefaultWindowSize
	}

	buffers := make([][]input.Sample, cfg.Channels)
	scratch := make([][]float64, cfg.Channels)
	for i := range buffers {
		buffers[i] = make([]input.Sample, cfg.WindowSize)
		scratch[i] = make([]float64, cfg.WindowSize)
	}

	return &Capture{
		cfg:      cfg,
		logger:   logger,
		analyzer: dsp.NewAnalyzer(cfg.SampleRate, cfg.WindowSize),
		buffers:  buffers,
		scratch:  scratch,
		out:      make(chan dsp.Features, 1),
	}
}

// Features returns the snapshot channel. Only the latest snapshot is kept;
// stale ones are dropped.
func (c *Capture) Features() <-chan dsp.Features {
	return c.out
}

// Run opens the backend and blocks inside the capture session until the
// context is canceled.
func (c *Capture) Run(ctx context.Context) error {
	backend := input.FindBackend(c.cfg.Backend)
	if backend == nil {
		return errors.Errorf("unknown audio backend %q", c.cfg.Backend)
	}

	if err := backend.Init(); err != nil {
		return errors.Wrap(err, "failed to initialize audio backend")
	}
	defer backend.Close()

	device, err := c.findDevice(backend)
	if err != nil {
		return err
	}

	session, err := backend.Start(input.SessionConfig{
		Device:     device,
		FrameSize:  c.cfg.Channels,
		SampleSize: c.cfg.WindowSize,
		SampleRate: c.cfg.SampleRate,
	})
	if err != nil {
		return errors.Wrap(err, "failed to start audio session")
	}

	c.logger.Info("audio capture started",
		"backend", c.cfg.Backend,
		"device", device,
		"rate", c.cfg.SampleRate,
		"window", c.cfg.WindowSize)

	if err := session.Start(ctx, c.buffers, c); err != nil && ctx.Err() == nil {
		return errors.Wrap(err, "audio session failed")
	}
	return ctx.Err()
}

// Process implements the session callback. It is called by the backend
// every time the sample buffers have been refilled.
func (c *Capture) Process() {
	for i, buf := range c.buffers {
		for j, s := range buf {
			c.scratch[i][j] = float64(s)
		}
	}

	features := c.analyzer.Analyze(c.scratch)

	// Latest snapshot wins.
	select {
	case c.out <- features:
	default:
		select {
		case <-c.out:
		default:
		}
		select {
		case c.out <- features:
		default:
		}
	}
}

func (c *Capture) findDevice(backend input.Backend) (input.Device, error) {
	if c.cfg.Device == "" {
		device, err := backend.DefaultDevice()
		if err != nil {
			return nil, errors.Wrap(err, "failed to get default audio device")
		}
		return device, nil
	}

	devices, err := backend.Devices()
	if err != nil {
		return nil, errors.Wrap(err, "failed to list audio devices")
	}
	for _, device := range devices {
		if device.String() == c.cfg.Device {
			return device, nil
		}
	}
	return nil, errors.Errorf("audio device %q not found", c.cfg.Device)
}
