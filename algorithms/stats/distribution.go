package stats

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Distribution describes a weighted histogram, e.g. a magnitude spectrum
// over bin frequencies. All moments are population (not sample) moments.
type Distribution struct {
	Mean     float64 `json:"mean"`
	StdDev   float64 `json:"std_dev"`
	Median   float64 `json:"median"`
	Q25      float64 `json:"q25"`
	Q75      float64 `json:"q75"`
	IQR      float64 `json:"iqr"`
	Skewness float64 `json:"skewness"` // third standardized moment
	Kurtosis float64 `json:"kurtosis"` // fourth standardized moment (not excess)
	Mode     float64 `json:"mode"`     // value carrying the largest weight
}

// Describe computes the weighted distribution of values. values must be
// sorted ascending and weights non-negative. A zero total weight yields the
// zero Distribution.
func Describe(values, weights []float64) (Distribution, error) {
	if len(values) != len(weights) {
		return Distribution{}, fmt.Errorf("values (%d) and weights (%d) length mismatch", len(values), len(weights))
	}
	if len(values) == 0 {
		return Distribution{}, nil
	}
	if !sortedAscending(values) {
		return Distribution{}, fmt.Errorf("values must be sorted ascending")
	}

	total := 0.0
	for i, w := range weights {
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return Distribution{}, fmt.Errorf("invalid weight %v at %d", w, i)
		}
		total += w
	}
	if total == 0 {
		return Distribution{}, nil
	}

	mean := stat.Mean(values, weights)
	variance := stat.MomentAbout(2, values, mean, weights)
	sd := math.Sqrt(variance)

	d := Distribution{
		Mean:   mean,
		StdDev: sd,
		Median: WeightedQuantile(0.5, values, weights),
		Q25:    WeightedQuantile(0.25, values, weights),
		Q75:    WeightedQuantile(0.75, values, weights),
		Mode:   values[floats.MaxIdx(weights)],
	}
	d.IQR = d.Q75 - d.Q25

	if sd > 0 {
		d.Skewness = stat.MomentAbout(3, values, mean, weights) / (variance * sd)
		d.Kurtosis = stat.MomentAbout(4, values, mean, weights) / (variance * variance)
	}

	return d, nil
}

// WeightedQuantile returns the first value whose cumulative weight reaches
// fraction p of the total. values must be sorted; total weight must be > 0.
func WeightedQuantile(p float64, values, weights []float64) float64 {
	if len(values) == 0 {
		return 0.0
	}
	p = math.Max(0, math.Min(1, p))

	if p == 1 {
		// Rounding in the cumulative sum can leave it just under the total
		for i := len(weights) - 1; i >= 0; i-- {
			if weights[i] > 0 {
				return values[i]
			}
		}
		return values[len(values)-1]
	}

	return stat.Quantile(p, stat.Empirical, values, weights)
}

func sortedAscending(x []float64) bool {
	for i := 1; i < len(x); i++ {
		if x[i] < x[i-1] {
			return false
		}
	}
	return true
}
