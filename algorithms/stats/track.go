package stats

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Track summarizes a time series such as a pitch or dominant-frequency track
type Track struct {
	Mean  float64 `json:"mean"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Range float64 `json:"range"`
	// ModulationIndex is mean |x[i]-x[i-1]| divided by Range, 0 when Range is 0
	ModulationIndex float64 `json:"modulation_index"`
	Count           int     `json:"count"`
}

// SummarizeTrack computes Track for values. An empty track is all zeros.
func SummarizeTrack(values []float64) Track {
	if len(values) == 0 {
		return Track{}
	}

	t := Track{
		Mean:  stat.Mean(values, nil),
		Min:   floats.Min(values),
		Max:   floats.Max(values),
		Count: len(values),
	}
	t.Range = t.Max - t.Min
	t.ModulationIndex = ModulationIndex(values, t.Range)

	return t
}

// ModulationIndex returns the mean absolute first difference over span
func ModulationIndex(values []float64, span float64) float64 {
	if len(values) < 2 || span == 0 {
		return 0.0
	}

	sum := 0.0
	for i := 1; i < len(values); i++ {
		sum += math.Abs(values[i] - values[i-1])
	}

	return sum / float64(len(values)-1) / span
}
