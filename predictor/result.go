package predictor

import (
	"maps"

	"github.com/RyanBlaney/sonido-voz/features"
)

// Source identifies what a prediction was computed from
type Source string

const (
	SourceAudio    Source = "audio"
	SourceFeatures Source = "features"
)

// Result is the outcome of one prediction. It shares no memory with the
// predictor or with other results.
type Result struct {
	Label         string             `json:"label"`
	Confidence    float64            `json:"confidence"`
	Probabilities map[string]float64 `json:"probabilities"`

	Features  features.Vector `json:"features"`
	Scaled    []float64       `json:"scaled_features"`
	Projected []float64       `json:"projected_features"`

	Source        Source `json:"source"`
	BundleVersion string `json:"bundle_version"`
}

// Clone returns a deep copy of r
func (r *Result) Clone() *Result {
	if r == nil {
		return nil
	}
	c := *r
	c.Probabilities = maps.Clone(r.Probabilities)
	c.Scaled = append([]float64(nil), r.Scaled...)
	c.Projected = append([]float64(nil), r.Projected...)
	return &c
}

// BatchItem is the outcome for one input of PredictBatch
type BatchItem struct {
	Input  string  `json:"input"`
	Result *Result `json:"result,omitempty"`
	Err    error   `json:"-"`
}
