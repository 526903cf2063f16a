package model

import (
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-voz/voiceerr"
)

// Scaler standardizes features as (x - mean) / scale
type Scaler struct {
	Mean  []float64 `json:"mean" msgpack:"mean"`
	Scale []float64 `json:"scale" msgpack:"scale"`
}

// Features returns the expected input length
func (s *Scaler) Features() int {
	return len(s.Mean)
}

// Validate checks the parameter shapes
func (s *Scaler) Validate() error {
	if len(s.Mean) == 0 {
		return fmt.Errorf("scaler has no features")
	}
	if len(s.Scale) != len(s.Mean) {
		return voiceerr.Errorf(voiceerr.KindArtifactShapeMismatch, "model.Scaler.Validate",
			"scale has %d entries, mean has %d", len(s.Scale), len(s.Mean))
	}
	for i := range s.Mean {
		if !finite(s.Mean[i]) || !finite(s.Scale[i]) {
			return fmt.Errorf("scaler entry %d is not finite", i)
		}
	}
	return nil
}

// Transform returns the standardized copy of x. A zero scale entry is
// treated as 1, like a constant feature in the fitted data.
func (s *Scaler) Transform(x []float64) ([]float64, error) {
	const op = "model.Scaler.Transform"

	if len(x) != len(s.Mean) {
		return nil, voiceerr.Errorf(voiceerr.KindArtifactShapeMismatch, op,
			"got %d features, want %d", len(x), len(s.Mean))
	}
	if i := firstNonFinite(x); i >= 0 {
		return nil, voiceerr.Errorf(voiceerr.KindClassifierInference, op, "feature %d is not finite: %v", i, x[i])
	}

	out := make([]float64, len(x))
	for i, v := range x {
		scale := s.Scale[i]
		if scale == 0 {
			scale = 1
		}
		out[i] = (v - s.Mean[i]) / scale
	}
	return out, nil
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

func firstNonFinite(x []float64) int {
	for i, v := range x {
		if !finite(v) {
			return i
		}
	}
	return -1
}
