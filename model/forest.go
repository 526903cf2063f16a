package model

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// KindForest is the artifact tag of Forest
const KindForest = "forest"

func init() {
	RegisterClassifier(KindForest, decodeForest)
}

// Tree is one decision tree in flat (scikit-learn tree_) layout.
// Leaves have Left[i] == Right[i] == -1. Children always have a larger
// index than their parent.
type Tree struct {
	Feature   []int       `json:"feature" msgpack:"feature"`
	Threshold []float64   `json:"threshold" msgpack:"threshold"`
	Left      []int       `json:"children_left" msgpack:"children_left"`
	Right     []int       `json:"children_right" msgpack:"children_right"`
	Value     [][]float64 `json:"value" msgpack:"value"` // per-node class weights
}

// Forest averages the normalized leaf distributions of its trees
type Forest struct {
	KindTag   string `json:"kind" msgpack:"kind"`
	NClasses  int    `json:"n_classes" msgpack:"n_classes"`
	NFeatures int    `json:"n_features" msgpack:"n_features"`
	Trees     []Tree `json:"trees" msgpack:"trees"`
}

func decodeForest(codec Codec, data []byte) (Classifier, error) {
	var f Forest
	if err := codec.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks every tree is well formed
func (f *Forest) Validate() error {
	if f.NClasses < 2 {
		return fmt.Errorf("forest needs at least 2 classes, got %d", f.NClasses)
	}
	if f.NFeatures < 1 {
		return fmt.Errorf("forest needs n_features >= 1, got %d", f.NFeatures)
	}
	if len(f.Trees) == 0 {
		return fmt.Errorf("forest has no trees")
	}
	for i := range f.Trees {
		if err := f.Trees[i].validate(f.NClasses, f.NFeatures); err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
	}
	return nil
}

func (t *Tree) validate(classes, features int) error {
	n := len(t.Left)
	if n == 0 {
		return fmt.Errorf("no nodes")
	}
	if len(t.Right) != n || len(t.Feature) != n || len(t.Threshold) != n || len(t.Value) != n {
		return fmt.Errorf("node arrays differ in length")
	}

	for i := range n {
		l, r := t.Left[i], t.Right[i]
		if l == -1 && r == -1 {
			if len(t.Value[i]) != classes {
				return fmt.Errorf("leaf %d has %d class weights, want %d", i, len(t.Value[i]), classes)
			}
			if floats.Sum(t.Value[i]) <= 0 {
				return fmt.Errorf("leaf %d has no weight", i)
			}
			continue
		}
		if l <= i || r <= i || l >= n || r >= n {
			return fmt.Errorf("node %d has invalid children %d/%d", i, l, r)
		}
		if t.Feature[i] < 0 || t.Feature[i] >= features {
			return fmt.Errorf("node %d splits on feature %d of %d", i, t.Feature[i], features)
		}
	}
	return nil
}

func (f *Forest) Kind() string { return KindForest }

func (f *Forest) Classes() int { return f.NClasses }

func (f *Forest) InputDim() int { return f.NFeatures }

// Predict returns the class index and the mean leaf distribution
func (f *Forest) Predict(x []float64) (int, []float64, error) {
	const op = "model.Forest.Predict"

	if err := checkInput(op, x, f.NFeatures); err != nil {
		return 0, nil, err
	}

	probs := make([]float64, f.NClasses)
	for i := range f.Trees {
		leaf := f.Trees[i].Value[f.Trees[i].leaf(x)]
		floats.AddScaled(probs, 1/floats.Sum(leaf), leaf)
	}
	floats.Scale(1/float64(len(f.Trees)), probs)

	return finishProbabilities(op, probs)
}

// leaf walks from the root; x[feature] <= threshold goes left
func (t *Tree) leaf(x []float64) int {
	node := 0
	for t.Left[node] != -1 {
		if x[t.Feature[node]] <= t.Threshold[node] {
			node = t.Left[node]
		} else {
			node = t.Right[node]
		}
	}
	return node
}
