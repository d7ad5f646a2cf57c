package pulseglow

import (
	"fmt"
	"io"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"

	"libdb.so/pulseglow/internal/dsp"
	"libdb.so/pulseglow/internal/effects"
)

// Config is the configuration for the pulseglow daemon.
type Config struct {
	// Listen is the address the DJ-software protocol server binds to.
	Listen string `toml:"listen"`
	// DefaultEffect optionally names an effect to start on boot.
	DefaultEffect string `toml:"default_effect"`
	// Audio configures the microphone analysis path.
	Audio AudioConfig `toml:"audio"`
	// Strip configures the serial LED strip and its segments.
	Strip StripConfig `toml:"strip"`
}

// AudioConfig configures microphone capture.
type AudioConfig struct {
	// Enabled turns the microphone path on.
	Enabled bool `toml:"enabled"`
	// Backend is the capture backend, e.g. "pipewire" or "parec".
	Backend string `toml:"backend"`
	// Device is the capture device name. Empty means the backend default.
	Device string `toml:"device"`
	// SampleRate is the capture sample rate in Hz.
	SampleRate float64 `toml:"sample_rate"`
	// Window is the number of samples per analyzed frame.
	Window int `toml:"window"`
	// Channels is the number of capture channels.
	Channels int `toml:"channels"`
}

// StripConfig configures the LED strip.
type StripConfig struct {
	// Device is the path to the serial device file.
	// This is usually /dev/ttyUSB0 or /dev/ttyACM0.
	Device string `toml:"device"`
	// Baud is the baud rate for the serial connection.
	Baud int `toml:"baud"`
	// Segments splits the strip into logical lights.
	Segments []SegmentConfig `toml:"segment"`
}

// SegmentConfig is one logical light on the strip.
type SegmentConfig struct {
	// Name identifies the segment in logs and button mappings.
	Name string `toml:"name"`
	// Range is the segment's pixel range, start inclusive, end exclusive.
	Range [2]int `toml:"range"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return errors.New("no listen address configured")
	}
	if c.DefaultEffect != "" {
		if _, ok := effects.KindFromString(c.DefaultEffect); !ok {
			return fmt.Errorf("unknown default effect %q", c.DefaultEffect)
		}
	}
	if c.Audio.Enabled && c.Audio.Backend == "" {
		return errors.New("audio enabled but no backend configured")
	}

	if c.Strip.Device == "" {
		return errors.New("no strip device configured")
	}
	if len(c.Strip.Segments) == 0 {
		return errors.New("no strip segments configured")
	}

	for i, seg := range c.Strip.Segments {
		if seg.Name == "" {
			return fmt.Errorf("segment %d has no name", i)
		}
		if seg.Range[0] < 0 || seg.Range[1] <= seg.Range[0] {
			return fmt.Errorf("segment %q has invalid range %v", seg.Name, seg.Range)
		}
	}

	// Check for overlapping segment ranges.
	for i, seg1 := range c.Strip.Segments {
		for j, seg2 := range c.Strip.Segments {
			if i == j {
				continue
			}
			if seg1.Range[0] < seg2.Range[1] && seg2.Range[0] < seg1.Range[1] {
				return fmt.Errorf("segment range %v overlaps with %v", seg1.Range, seg2.Range)
			}
		}
	}

	return nil
}

// NumPixels returns the number of strip pixels covered by the segments.
func (c *Config) NumPixels() int {
	var numPixels int
	for _, seg := range c.Strip.Segments {
		if seg.Range[1] > numPixels {
			numPixels = seg.Range[1]
		}
	}
	return numPixels
}

// audioConfig lowers the TOML audio section with defaults applied.
func (c *Config) audioConfig() AudioConfig {
	a := c.Audio
	if a.SampleRate <= 0 {
		a.SampleRate = dsp.DefaultSampleRate
	}
	if a.Window <= 0 {
		a.Window = dsp.DefaultWindowSize
	}
	if a.Channels <= 0 {
		a.Channels = 2
	}
	return a
}

// ParseConfig parses a configuration from a reader.
func ParseConfig(r io.Reader) (*Config, error) {
	var config Config
	if err := toml.NewDecoder(r).Decode(&config); err != nil {
		return nil, err
	}
	return &config, nil
}
