package model

import (
	"fmt"

	"github.com/RyanBlaney/sonido-voz/voiceerr"
)

// LabelDecoder maps class indexes to names
type LabelDecoder struct {
	Classes []string `json:"classes" msgpack:"classes"`
}

// Validate rejects empty or duplicate labels
func (l *LabelDecoder) Validate() error {
	if len(l.Classes) < 2 {
		return fmt.Errorf("need at least 2 class labels, got %d", len(l.Classes))
	}
	seen := make(map[string]struct{}, len(l.Classes))
	for _, c := range l.Classes {
		if c == "" {
			return fmt.Errorf("empty class label")
		}
		if _, dup := seen[c]; dup {
			return fmt.Errorf("duplicate class label %q", c)
		}
		seen[c] = struct{}{}
	}
	return nil
}

// Len returns the number of classes
func (l *LabelDecoder) Len() int {
	return len(l.Classes)
}

// Decode returns the name of class index i
func (l *LabelDecoder) Decode(i int) (string, error) {
	if i < 0 || i >= len(l.Classes) {
		return "", voiceerr.Errorf(voiceerr.KindClassifierInference, "model.LabelDecoder.Decode",
			"class index %d out of range [0,%d)", i, len(l.Classes))
	}
	return l.Classes[i], nil
}

// Probabilities pairs each label with its probability
func (l *LabelDecoder) Probabilities(probs []float64) (map[string]float64, error) {
	if len(probs) != len(l.Classes) {
		return nil, voiceerr.Errorf(voiceerr.KindArtifactShapeMismatch, "model.LabelDecoder.Probabilities",
			"got %d probabilities for %d labels", len(probs), len(l.Classes))
	}
	m := make(map[string]float64, len(probs))
	for i, p := range probs {
		m[l.Classes[i]] = p
	}
	return m, nil
}
