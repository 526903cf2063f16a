package spectral

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// FFT computes one-sided spectra of real frames using mjibson/go-dsp
type FFT struct{}

// NewFFT creates a new FFT calculator
func NewFFT() *FFT {
	return &FFT{}
}

// Compute computes the full complex transform of a real frame
func (f *FFT) Compute(x []float64) []complex128 {
	if len(x) == 0 {
		return []complex128{}
	}

	// mjibson/go-dsp handles all sizes, including non-power-of-2
	return fft.FFTReal(x)
}

// Magnitude returns |X[k]| for k = 0..n/2 (n/2+1 bins)
func (f *FFT) Magnitude(x []float64) []float64 {
	if len(x) == 0 {
		return []float64{}
	}

	spectrum := f.Compute(x)
	bins := len(x)/2 + 1

	magnitude := make([]float64, bins)
	for k := range bins {
		magnitude[k] = cmplx.Abs(spectrum[k])
	}

	return magnitude
}

// BinCount returns the number of one-sided bins for a frame length
func BinCount(frameSize int) int {
	return frameSize/2 + 1
}

// BinFrequencies returns the center frequency in Hz of each one-sided bin.
// Bin i sits at i * sampleRate / frameSize.
func BinFrequencies(frameSize, sampleRate int) []float64 {
	bins := BinCount(frameSize)
	freqs := make([]float64, bins)
	step := float64(sampleRate) / float64(frameSize)

	for i := range freqs {
		freqs[i] = float64(i) * step
	}

	return freqs
}

// BandBins returns the half-open bin index range [lo, hi) covering
// [minHz, maxHz]. maxHz <= 0 means up to Nyquist.
func BandBins(frameSize, sampleRate int, minHz, maxHz float64) (int, int) {
	bins := BinCount(frameSize)
	step := float64(sampleRate) / float64(frameSize)

	lo := 0
	if minHz > 0 {
		lo = int(minHz/step + 0.999999)
	}

	hi := bins
	if maxHz > 0 {
		hi = min(int(maxHz/step)+1, bins)
	}

	if lo >= hi {
		return 0, bins
	}
	return lo, hi
}
