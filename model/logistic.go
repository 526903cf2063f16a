package model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// KindLogistic is the artifact tag of Logistic
const KindLogistic = "logistic"

func init() {
	RegisterClassifier(KindLogistic, decodeLogistic)
}

// Logistic is a fitted logistic regression. A single coefficient row is
// the binary model, P(class 1) = sigmoid(w·x + b); k rows are multinomial
// with a softmax over the k scores.
type Logistic struct {
	KindTag   string      `json:"kind" msgpack:"kind"`
	Coef      [][]float64 `json:"coef" msgpack:"coef"`
	Intercept []float64   `json:"intercept" msgpack:"intercept"`
}

func decodeLogistic(codec Codec, data []byte) (Classifier, error) {
	var l Logistic
	if err := codec.Unmarshal(data, &l); err != nil {
		return nil, err
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	return &l, nil
}

// Validate checks coefficient shapes
func (l *Logistic) Validate() error {
	if len(l.Coef) == 0 || len(l.Coef[0]) == 0 {
		return fmt.Errorf("logistic model has no coefficients")
	}
	if len(l.Coef) == 2 {
		return fmt.Errorf("logistic model with 2 coefficient rows is ambiguous; binary models use one row")
	}
	if len(l.Intercept) != len(l.Coef) {
		return fmt.Errorf("intercept has %d entries, want %d", len(l.Intercept), len(l.Coef))
	}
	dim := len(l.Coef[0])
	for i, row := range l.Coef {
		if len(row) != dim {
			return fmt.Errorf("coef row %d has %d entries, want %d", i, len(row), dim)
		}
	}
	return nil
}

func (l *Logistic) Kind() string { return KindLogistic }

func (l *Logistic) InputDim() int { return len(l.Coef[0]) }

func (l *Logistic) Classes() int {
	if len(l.Coef) == 1 {
		return 2
	}
	return len(l.Coef)
}

// Predict returns the class index and probabilities
func (l *Logistic) Predict(x []float64) (int, []float64, error) {
	const op = "model.Logistic.Predict"

	if err := checkInput(op, x, l.InputDim()); err != nil {
		return 0, nil, err
	}

	if len(l.Coef) == 1 {
		p := sigmoid(floats.Dot(l.Coef[0], x) + l.Intercept[0])
		return finishProbabilities(op, []float64{1 - p, p})
	}

	scores := make([]float64, len(l.Coef))
	for k, row := range l.Coef {
		scores[k] = floats.Dot(row, x) + l.Intercept[k]
	}
	return finishProbabilities(op, softmax(scores))
}

// sigmoid is evaluated on the side that cannot overflow
func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

func softmax(scores []float64) []float64 {
	peak := floats.Max(scores)
	out := make([]float64, len(scores))
	for i, s := range scores {
		out[i] = math.Exp(s - peak)
	}
	floats.Scale(1/floats.Sum(out), out)
	return out
}
