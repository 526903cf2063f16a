package model

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/RyanBlaney/sonido-voz/voiceerr"
)

func approxSlice(t *testing.T, name string, got, want []float64, tol float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s: len %d, want %d", name, len(got), len(want))
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > tol {
			t.Errorf("%s[%d] = %v, want %v", name, i, got[i], want[i])
		}
	}
}

func sumsToOne(t *testing.T, probs []float64) {
	t.Helper()
	total := 0.0
	for i, p := range probs {
		if p < 0 || math.IsNaN(p) {
			t.Errorf("probability %d = %v", i, p)
		}
		total += p
	}
	if math.Abs(total-1) > 1e-9 {
		t.Errorf("probabilities sum to %v", total)
	}
}

func TestScalerTransform(t *testing.T) {
	s := &Scaler{Mean: []float64{1, 2, 3}, Scale: []float64{2, 0, 0.5}}
	if err := s.Validate(); err != nil {
		t.Fatal(err)
	}

	got, err := s.Transform([]float64{3, 5, 2})
	if err != nil {
		t.Fatal(err)
	}
	// zero scale behaves like 1
	approxSlice(t, "scaled", got, []float64{1, 3, -2}, 1e-12)

	_, err = s.Transform([]float64{1, 2})
	if !errors.Is(err, voiceerr.ErrArtifactShapeMismatch) {
		t.Errorf("short input: err = %v", err)
	}
	_, err = s.Transform([]float64{1, math.NaN(), 2})
	if !errors.Is(err, voiceerr.ErrClassifierInference) {
		t.Errorf("NaN input: err = %v", err)
	}
}

func TestProjectorTransform(t *testing.T) {
	tests := []struct {
		name string
		p    *Projector
		in   []float64
		want []float64
	}{
		{
			"plain",
			&Projector{Components: [][]float64{{1, 0, 0}, {0, 1, 1}}},
			[]float64{2, 3, 4},
			[]float64{2, 7},
		},
		{
			"centered",
			&Projector{Components: [][]float64{{1, 0, 0}, {0, 1, 1}}, Mean: []float64{1, 1, 1}},
			[]float64{2, 3, 4},
			[]float64{1, 5},
		},
		{
			"whitened",
			&Projector{
				Components:        [][]float64{{1, 0, 0}, {0, 1, 1}},
				ExplainedVariance: []float64{4, 25},
				Whiten:            true,
			},
			[]float64{2, 3, 4},
			[]float64{1, 7.0 / 5.0},
		},
	}

	for _, tt := range tests {
		if err := tt.p.Validate(); err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		got, err := tt.p.Transform(tt.in)
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		approxSlice(t, tt.name, got, tt.want, 1e-12)
	}
}

func TestProjectorValidate(t *testing.T) {
	tests := []struct {
		name string
		p    *Projector
	}{
		{"empty", &Projector{}},
		{"ragged", &Projector{Components: [][]float64{{1, 0}, {1}}}},
		{"too many components", &Projector{Components: [][]float64{{1}, {1}}}},
		{"mean length", &Projector{Components: [][]float64{{1, 0}}, Mean: []float64{1}}},
		{"whiten without variance", &Projector{Components: [][]float64{{1, 0}}, Whiten: true}},
	}
	for _, tt := range tests {
		if err := tt.p.Validate(); err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}

	if _, err := (&Projector{Components: [][]float64{{1}}}).Transform([]float64{1}); !errors.Is(err, voiceerr.ErrArtifactLoad) {
		t.Errorf("unvalidated projector: err = %v", err)
	}
}

func TestChain(t *testing.T) {
	scaler := &Scaler{Mean: make([]float64, 3), Scale: []float64{1, 1, 1}}
	chain, err := NewChain(scaler, &Projector{Components: [][]float64{{1, 1, 0}}})
	if err != nil {
		t.Fatal(err)
	}

	scaled, projected, err := chain.Apply([]float64{1, 2, 3})
	if err != nil {
		t.Fatal(err)
	}
	approxSlice(t, "scaled", scaled, []float64{1, 2, 3}, 0)
	approxSlice(t, "projected", projected, []float64{3}, 0)

	_, _, err = chain.Apply([]float64{1, 2})
	if !errors.Is(err, voiceerr.ErrArtifactShapeMismatch) {
		t.Errorf("err = %v", err)
	}

	_, err = NewChain(scaler, &Projector{Components: [][]float64{{1, 1}}})
	if !errors.Is(err, voiceerr.ErrArtifactLoad) || !errors.Is(err, voiceerr.ErrArtifactShapeMismatch) {
		t.Errorf("dimension join: err = %v", err)
	}
}

func TestLogistic(t *testing.T) {
	binary := &Logistic{Coef: [][]float64{{2, -1}}, Intercept: []float64{0.5}}
	if err := binary.Validate(); err != nil {
		t.Fatal(err)
	}

	class, probs, err := binary.Predict([]float64{1, 0})
	if err != nil {
		t.Fatal(err)
	}
	want := 1 / (1 + math.Exp(-2.5))
	approxSlice(t, "binary", probs, []float64{1 - want, want}, 1e-12)
	if class != 1 || binary.Classes() != 2 {
		t.Errorf("class = %d, classes = %d", class, binary.Classes())
	}

	multi := &Logistic{
		Coef:      [][]float64{{1, 0}, {0, 1}, {0, 0}},
		Intercept: []float64{0, 0, 0},
	}
	if err := multi.Validate(); err != nil {
		t.Fatal(err)
	}
	class, probs, err = multi.Predict([]float64{0, math.Log(2)})
	if err != nil {
		t.Fatal(err)
	}
	approxSlice(t, "softmax", probs, []float64{0.25, 0.5, 0.25}, 1e-12)
	if class != 1 {
		t.Errorf("class = %d, want 1", class)
	}

	// Extreme logits stay finite
	_, probs, err = binary.Predict([]float64{-800, 0})
	if err != nil {
		t.Fatal(err)
	}
	sumsToOne(t, probs)

	if _, _, err := binary.Predict([]float64{1}); !errors.Is(err, voiceerr.ErrArtifactShapeMismatch) {
		t.Errorf("short input: err = %v", err)
	}
	if _, _, err := binary.Predict([]float64{math.Inf(1), 0}); !errors.Is(err, voiceerr.ErrClassifierInference) {
		t.Errorf("inf input: err = %v", err)
	}
}

func binarySVC() *SVC {
	return &SVC{
		Kernel:         "linear",
		SupportVectors: [][]float64{{1, 0}, {-1, 0}},
		NSupport:       []int{1, 1},
		DualCoef:       [][]float64{{0.5, -0.5}},
		Intercept:      []float64{0},
	}
}

func TestSVCBinary(t *testing.T) {
	s := binarySVC()
	if err := s.Validate(); err != nil {
		t.Fatal(err)
	}

	dec, err := s.Decision([]float64{2, 0})
	if err != nil {
		t.Fatal(err)
	}
	approxSlice(t, "decision", dec, []float64{2}, 1e-12)

	class, probs, err := s.Predict([]float64{2, 0})
	if err != nil {
		t.Fatal(err)
	}
	if class != 0 {
		t.Errorf("vote class = %d, want 0", class)
	}
	approxSlice(t, "votes", probs, []float64{1, 0}, 0)

	s.ProbA, s.ProbB = []float64{-2}, []float64{0}
	class, probs, err = s.Predict([]float64{2, 0})
	if err != nil {
		t.Fatal(err)
	}
	p0 := 1 / (1 + math.Exp(-4))
	approxSlice(t, "platt", probs, []float64{p0, 1 - p0}, 1e-12)
	if class != 0 {
		t.Errorf("platt class = %d, want 0", class)
	}
}

func TestSVCKernels(t *testing.T) {
	sv, x := []float64{1, 2}, []float64{3, 1}
	tests := []struct {
		kernel string
		want   float64
	}{
		{"linear", 5},
		{"poly", math.Pow(0.5*5+1, 3)},
		{"rbf", math.Exp(-0.5 * 5)},
		{"sigmoid", math.Tanh(0.5*5 + 1)},
	}

	for _, tt := range tests {
		s := &SVC{Kernel: tt.kernel, Gamma: 0.5, Coef0: 1, Degree: 3}
		if got := s.kernel(sv, x); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("%s: got %v, want %v", tt.kernel, got, tt.want)
		}
	}
}

func TestSVCMulticlass(t *testing.T) {
	s := &SVC{
		Kernel:         "rbf",
		Gamma:          0.5,
		SupportVectors: [][]float64{{1, 0}, {0, 1}, {-1, -1}},
		NSupport:       []int{1, 1, 1},
		DualCoef:       [][]float64{{1, 1, -1}, {1, -1, -1}},
		Intercept:      []float64{0.1, 0.2, -0.1},
		ProbA:          []float64{-1.5, -1.5, -1.5},
		ProbB:          []float64{0, 0, 0},
	}
	if err := s.Validate(); err != nil {
		t.Fatal(err)
	}

	for _, x := range [][]float64{{1, 0}, {0, 1}, {-1, -1}, {5, 5}} {
		class, probs, err := s.Predict(x)
		if err != nil {
			t.Fatal(err)
		}
		sumsToOne(t, probs)
		if class < 0 || class > 2 {
			t.Errorf("class %d out of range", class)
		}
	}

	s.Intercept = s.Intercept[:2]
	if err := s.Validate(); err == nil {
		t.Error("expected error for intercept length")
	}
}

func TestPairwiseCoupling(t *testing.T) {
	want := []float64{0.5, 0.3, 0.2}
	r := make([][]float64, 3)
	for i := range r {
		r[i] = make([]float64, 3)
		for j := range r[i] {
			if i != j {
				r[i][j] = want[i] / (want[i] + want[j])
			}
		}
	}
	approxSlice(t, "coupled", pairwiseCoupling(r), want, 0.01)
}

func TestForest(t *testing.T) {
	f := &Forest{
		NClasses:  2,
		NFeatures: 1,
		Trees: []Tree{
			{
				Feature:   []int{0, -2, -2},
				Threshold: []float64{0.5, -2, -2},
				Left:      []int{1, -1, -1},
				Right:     []int{2, -1, -1},
				Value:     [][]float64{{3, 3}, {3, 1}, {0, 2}},
			},
			{
				Feature:   []int{-2},
				Threshold: []float64{-2},
				Left:      []int{-1},
				Right:     []int{-1},
				Value:     [][]float64{{1, 1}},
			},
		},
	}
	if err := f.Validate(); err != nil {
		t.Fatal(err)
	}

	class, probs, err := f.Predict([]float64{0.2})
	if err != nil {
		t.Fatal(err)
	}
	approxSlice(t, "left", probs, []float64{0.625, 0.375}, 1e-12)
	if class != 0 {
		t.Errorf("class = %d, want 0", class)
	}

	class, probs, err = f.Predict([]float64{0.9})
	if err != nil {
		t.Fatal(err)
	}
	approxSlice(t, "right", probs, []float64{0.25, 0.75}, 1e-12)
	if class != 1 {
		t.Errorf("class = %d, want 1", class)
	}

	// A child pointing back at its parent would loop forever
	f.Trees[0].Left[0] = 0
	if err := f.Validate(); err == nil {
		t.Error("expected error for cyclic tree")
	}
}

func TestLabelDecoder(t *testing.T) {
	l := &LabelDecoder{Classes: []string{"female", "male"}}
	if err := l.Validate(); err != nil {
		t.Fatal(err)
	}
	if name, err := l.Decode(1); err != nil || name != "male" {
		t.Errorf("Decode(1) = %q, %v", name, err)
	}
	if _, err := l.Decode(2); !errors.Is(err, voiceerr.ErrClassifierInference) {
		t.Errorf("Decode(2): err = %v", err)
	}

	m, err := l.Probabilities([]float64{0.3, 0.7})
	if err != nil || m["female"] != 0.3 || m["male"] != 0.7 {
		t.Errorf("Probabilities = %v, %v", m, err)
	}

	for _, bad := range [][]string{{"male"}, {"a", "a"}, {"a", ""}} {
		if err := (&LabelDecoder{Classes: bad}).Validate(); err == nil {
			t.Errorf("%v: expected error", bad)
		}
	}
}

func TestDecodeClassifier(t *testing.T) {
	data := []byte(`{"kind":"logistic","coef":[[1,2]],"intercept":[0]}`)
	c, err := DecodeClassifier(JSON, data)
	if err != nil {
		t.Fatal(err)
	}
	if c.Kind() != KindLogistic || c.InputDim() != 2 {
		t.Errorf("decoded %s with %d inputs", c.Kind(), c.InputDim())
	}

	_, err = DecodeClassifier(JSON, []byte(`{"kind":"xgboost"}`))
	if !errors.Is(err, voiceerr.ErrArtifactLoad) || !strings.Contains(err.Error(), "xgboost") {
		t.Errorf("unknown kind: err = %v", err)
	}

	_, err = DecodeClassifier(JSON, []byte(`{"kind":"svc","kernel":"laplace"}`))
	if !errors.Is(err, voiceerr.ErrArtifactLoad) {
		t.Errorf("bad svc: err = %v", err)
	}

	kinds := ClassifierKinds()
	if strings.Join(kinds, ",") != "forest,logistic,svc" {
		t.Errorf("kinds = %v", kinds)
	}
}

func TestCodecFor(t *testing.T) {
	tests := []struct {
		file string
		want string
	}{
		{"scaler.json", "json"},
		{"dir/classifier.MSGPACK", "msgpack"},
		{"labels.mpk", "msgpack"},
	}
	for _, tt := range tests {
		c, err := CodecFor(tt.file)
		if err != nil || c.Name() != tt.want {
			t.Errorf("%s: got %v, %v", tt.file, c, err)
		}
	}
	if _, err := CodecFor("model.pkl"); err == nil {
		t.Error("expected error for .pkl")
	}
}
