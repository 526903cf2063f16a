package model

import (
	"fmt"
	"slices"
	"sync"

	"gonum.org/v1/gonum/floats"

	"github.com/RyanBlaney/sonido-voz/voiceerr"
)

// Classifier maps a projected vector to a class index and per-class
// probabilities. Implementations are read-only after decoding and safe for
// concurrent use.
type Classifier interface {
	Kind() string
	Classes() int
	InputDim() int
	Predict(x []float64) (int, []float64, error)
}

// DecodeFunc builds a classifier from an artifact file
type DecodeFunc func(codec Codec, data []byte) (Classifier, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]DecodeFunc)
)

// RegisterClassifier makes a classifier kind available to DecodeClassifier.
// Registering the same kind twice panics.
func RegisterClassifier(kind string, fn DecodeFunc) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, dup := registry[kind]; dup {
		panic("model: classifier kind registered twice: " + kind)
	}
	registry[kind] = fn
}

// ClassifierKinds lists the registered kinds
func ClassifierKinds() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	kinds := make([]string, 0, len(registry))
	for k := range registry {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}

type envelope struct {
	Kind string `json:"kind" msgpack:"kind"`
}

// DecodeClassifier reads the kind tag and dispatches to the registered decoder
func DecodeClassifier(codec Codec, data []byte) (Classifier, error) {
	const op = "model.DecodeClassifier"

	var env envelope
	if err := codec.Unmarshal(data, &env); err != nil {
		return nil, voiceerr.New(voiceerr.KindArtifactLoad, op, fmt.Errorf("failed to read classifier kind: %w", err))
	}

	registryMu.RLock()
	fn, ok := registry[env.Kind]
	registryMu.RUnlock()
	if !ok {
		return nil, voiceerr.Errorf(voiceerr.KindArtifactLoad, op,
			"unknown classifier kind %q (registered: %v)", env.Kind, ClassifierKinds())
	}

	c, err := fn(codec, data)
	if err != nil {
		return nil, voiceerr.New(voiceerr.KindArtifactLoad, op, fmt.Errorf("%s: %w", env.Kind, err))
	}
	return c, nil
}

// checkInput validates a classifier input vector
func checkInput(op string, x []float64, dim int) error {
	if len(x) != dim {
		return voiceerr.Errorf(voiceerr.KindArtifactShapeMismatch, op, "got %d inputs, want %d", len(x), dim)
	}
	if i := firstNonFinite(x); i >= 0 {
		return voiceerr.Errorf(voiceerr.KindClassifierInference, op, "input %d is not finite: %v", i, x[i])
	}
	return nil
}

// finishProbabilities clamps, renormalizes and picks the winning class
func finishProbabilities(op string, probs []float64) (int, []float64, error) {
	if len(probs) == 0 {
		return 0, nil, voiceerr.Errorf(voiceerr.KindClassifierInference, op, "no probabilities")
	}

	for i, p := range probs {
		if !finite(p) {
			return 0, nil, voiceerr.Errorf(voiceerr.KindClassifierInference, op, "probability %d is not finite", i)
		}
		if p < 0 {
			probs[i] = 0
		}
	}

	total := floats.Sum(probs)
	if total <= 0 {
		return 0, nil, voiceerr.Errorf(voiceerr.KindClassifierInference, op, "probabilities sum to %v", total)
	}
	floats.Scale(1/total, probs)

	return floats.MaxIdx(probs), probs, nil
}
