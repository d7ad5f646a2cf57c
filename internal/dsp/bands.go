// Package dsp turns raw audio frames into normalized per-band energy levels
// for the audio-reactive effects.
package dsp

import "fmt"

// Band is one of the fixed frequency bands the analyzer reports.
type Band int

const (
	SubBass Band = iota
	Bass
	LowMid
	Mid
	HighMid
	High

	NumBands
)

// bandRanges holds the [low, high) frequency range of each band in Hz.
// Ranges are disjoint and ascending.
var bandRanges = [NumBands][2]float64{
	SubBass: {20, 60},
	Bass:    {60, 250},
	LowMid:  {250, 500},
	Mid:     {500, 2000},
	HighMid: {2000, 4000},
	High:    {4000, 20000},
}

// Range returns the band's frequency range in Hz, low inclusive and high
// exclusive.
func (b Band) Range() (low, high float64) {
	r := bandRanges[b]
	return r[0], r[1]
}

func (b Band) String() string {
	switch b {
	case SubBass:
		return "sub_bass"
	case Bass:
		return "bass"
	case LowMid:
		return "low_mid"
	case Mid:
		return "mid"
	case HighMid:
		return "high_mid"
	case High:
		return "high"
	default:
		return fmt.Sprintf("Band(%d)", int(b))
	}
}

// Features is an immutable snapshot of one analyzed frame. It is passed by
// value between goroutines.
type Features struct {
	// Levels holds the normalized energy of each band, in [0, 1].
	Levels [NumBands]float64
	// Volume is the RMS of the raw mono frame.
	Volume float64
}

// Level returns the normalized energy of the given band.
func (f Features) Level(b Band) float64 {
	return f.Levels[b]
}
