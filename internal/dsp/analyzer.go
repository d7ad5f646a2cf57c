package dsp

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
)

// Analyzer defaults.
const (
	DefaultSampleRate = 44100
	DefaultWindowSize = 2048
	DefaultSmoothing  = 0.2
)

// Analyzer extracts per-band energy levels from fixed-size audio frames.
//
// Each band keeps an adaptive peak reference that decays a little every
// frame; the reported level is the raw band energy against twice that peak,
// capped at 1. The overshoot keeps quiet passages visibly animated while
// leaving headroom for sudden transients.
//
// An Analyzer is stateful (peak tracking, scratch buffers) and must only be
// used from one goroutine; in practice that is the audio capture callback.
type Analyzer struct {
	sampleRate float64
	windowSize int
	smoothing  float64

	fft     *fourier.FFT
	hann    window.Values
	indices [NumBands][2]int
	peaks   [NumBands]float64

	// scratch, reused across frames
	mono   []float64
	coeffs []complex128
}

// NewAnalyzer creates an analyzer for frames of windowSize samples at the
// given sample rate. Non-positive arguments fall back to the defaults.
func NewAnalyzer(sampleRate float64, windowSize int) *Analyzer {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}

	a := &Analyzer{
		sampleRate: sampleRate,
		windowSize: windowSize,
		smoothing:  DefaultSmoothing,
		fft:        fourier.NewFFT(windowSize),
		hann:       window.NewValues(window.Hann, windowSize),
		mono:       make([]float64, windowSize),
		coeffs:     make([]complex128, windowSize/2+1),
	}
	a.calculateBandIndices()
	return a
}

// WindowSize returns the frame length the analyzer expects.
func (a *Analyzer) WindowSize() int { return a.windowSize }

// calculateBandIndices maps each band's frequency range onto a contiguous
// range of FFT coefficient indices, once, from the bin resolution.
func (a *Analyzer) calculateBandIndices() {
	numCoeffs := a.windowSize/2 + 1

	lowerBound := func(hz float64) int {
		for i := 0; i < numCoeffs; i++ {
			if a.fft.Freq(i)*a.sampleRate >= hz {
				return i
			}
		}
		return numCoeffs
	}

	for b := Band(0); b < NumBands; b++ {
		low, high := b.Range()
		a.indices[b] = [2]int{lowerBound(low), lowerBound(high)}
	}
}

// Analyze processes one multi-channel frame and returns the band levels and
// overall volume. Channels are averaged to mono before windowing.
//
// A malformed frame (no channels, or channels shorter than the window size)
// degrades to all-zero output instead of failing: the capture loop must
// never die because of one bad buffer.
func (a *Analyzer) Analyze(frame [][]float64) Features {
	energies, volume, ok := a.measure(frame)
	if !ok {
		return Features{}
	}

	var out Features
	out.Volume = volume
	for b := Band(0); b < NumBands; b++ {
		out.Levels[b] = a.normalize(b, energies[b])
	}
	return out
}

// measure computes the raw per-band energies and the RMS volume of one
// frame. It reports ok=false when the frame shape is unusable.
func (a *Analyzer) measure(frame [][]float64) (energies [NumBands]float64, volume float64, ok bool) {
	if !a.monoMix(frame) {
		return energies, 0, false
	}

	// RMS of the raw frame, before windowing.
	var sumSq float64
	for _, s := range a.mono {
		sumSq += s * s
	}
	volume = math.Sqrt(sumSq / float64(len(a.mono)))

	a.hann.Transform(a.mono)
	a.fft.Coefficients(a.coeffs, a.mono)

	// Amplitude normalization by spectrum length.
	norm := float64(len(a.coeffs))

	for b := Band(0); b < NumBands; b++ {
		start, end := a.indices[b][0], a.indices[b][1]
		var energy float64
		for i := start; i < end; i++ {
			m := cmplx.Abs(a.coeffs[i]) / norm
			energy += m * m
		}
		energies[b] = energy
	}
	return energies, volume, true
}

// normalize scales a raw band energy against the band's decaying peak.
func (a *Analyzer) normalize(b Band, energy float64) float64 {
	a.peaks[b] *= 1.0 - a.smoothing
	if energy > a.peaks[b] {
		a.peaks[b] = energy
	}
	if a.peaks[b] > 0 {
		return math.Min(1.0, energy/a.peaks[b]*2.0)
	}
	return 0
}

// monoMix averages the frame's channels into the scratch mono buffer.
// It reports whether the frame had a usable shape.
func (a *Analyzer) monoMix(frame [][]float64) bool {
	if len(frame) == 0 {
		return false
	}
	for _, ch := range frame {
		if len(ch) < a.windowSize {
			return false
		}
	}

	n := float64(len(frame))
	for i := range a.mono {
		var sum float64
		for _, ch := range frame {
			sum += ch[i]
		}
		a.mono[i] = sum / n
	}
	return true
}
