package spectral

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// minPower keeps log() finite for empty bins
const minPower = 1e-10

// Power returns the squared magnitude spectrum
func Power(magnitude []float64) []float64 {
	power := make([]float64, len(magnitude))
	for i, mag := range magnitude {
		power[i] = mag * mag
	}
	return power
}

// Energy returns the mean squared amplitude of a time-domain frame
func Energy(frame []float64) float64 {
	if len(frame) == 0 {
		return 0.0
	}
	return floats.Dot(frame, frame) / float64(len(frame))
}

// Centroid returns the magnitude-weighted mean frequency.
// Returns 0 for an all-zero spectrum.
func Centroid(magnitude, freqs []float64) float64 {
	if len(magnitude) == 0 || len(magnitude) != len(freqs) {
		return 0.0
	}

	denominator := floats.Sum(magnitude)
	if denominator == 0 {
		return 0.0
	}

	return floats.Dot(freqs, magnitude) / denominator
}

// Entropy returns the Shannon entropy of the normalized power spectrum
// divided by log2(bins), so the result is in [0, 1].
func Entropy(power []float64) float64 {
	n := len(power)
	if n < 2 {
		return 0.0
	}

	total := floats.Sum(power)
	if total <= 0 {
		return 0.0
	}

	h := 0.0
	for _, p := range power {
		if p <= 0 {
			continue
		}
		q := p / total
		h -= q * math.Log2(q)
	}

	return h / math.Log2(float64(n))
}

// Flatness returns geometric mean / arithmetic mean of the power spectrum
// (Wiener entropy). 0 for silence, near 1 for white noise.
func Flatness(power []float64) float64 {
	if len(power) == 0 {
		return 0.0
	}

	arithmeticMean := floats.Sum(power) / float64(len(power))
	if arithmeticMean <= minPower {
		return 0.0
	}

	// Geometric mean in the log domain
	logSum := 0.0
	for _, p := range power {
		logSum += math.Log(math.Max(p, minPower))
	}
	geometricMean := math.Exp(logSum / float64(len(power)))

	return math.Min(geometricMean/arithmeticMean, 1.0)
}

// Dominant returns the frequency of the strongest bin in [lo, hi).
// ok is false when the band is empty or carries no energy.
func Dominant(magnitude, freqs []float64, lo, hi int) (freq float64, ok bool) {
	if lo < 0 {
		lo = 0
	}
	hi = min(hi, len(magnitude), len(freqs))
	if lo >= hi {
		return 0, false
	}

	idx := lo + floats.MaxIdx(magnitude[lo:hi])
	if magnitude[idx] <= 0 {
		return 0, false
	}

	return freqs[idx], true
}
