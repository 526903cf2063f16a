package model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// KindSVC is the artifact tag of SVC
const KindSVC = "svc"

func init() {
	RegisterClassifier(KindSVC, decodeSVC)
}

// SVC is a fitted kernel support vector classifier in libsvm layout.
//
// Support vectors are grouped by class (NSupport gives the group sizes).
// DualCoef is (classes-1) x n_SV and Intercept holds one entry per class
// pair (i<j) in lexical order. Signs follow libsvm: a positive decision
// value for pair (i, j) votes for class i. For binary scikit-learn models
// this means exporting _dual_coef_ and _intercept_, not the public
// attributes, which are negated.
type SVC struct {
	KindTag string  `json:"kind" msgpack:"kind"`
	Kernel  string  `json:"kernel" msgpack:"kernel"` // linear, poly, rbf, sigmoid
	Gamma   float64 `json:"gamma" msgpack:"gamma"`
	Coef0   float64 `json:"coef0" msgpack:"coef0"`
	Degree  int     `json:"degree" msgpack:"degree"`

	SupportVectors [][]float64 `json:"support_vectors" msgpack:"support_vectors"`
	NSupport       []int       `json:"n_support" msgpack:"n_support"`
	DualCoef       [][]float64 `json:"dual_coef" msgpack:"dual_coef"`
	Intercept      []float64   `json:"intercept" msgpack:"intercept"`

	// ProbA and ProbB are the Platt scaling parameters per class pair.
	// Without them probabilities are normalized pairwise votes.
	ProbA []float64 `json:"prob_a,omitempty" msgpack:"prob_a,omitempty"`
	ProbB []float64 `json:"prob_b,omitempty" msgpack:"prob_b,omitempty"`

	starts []int
}

func decodeSVC(codec Codec, data []byte) (Classifier, error) {
	var s SVC
	if err := codec.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks shapes and precomputes class offsets
func (s *SVC) Validate() error {
	switch s.Kernel {
	case "linear", "rbf", "sigmoid":
	case "poly":
		if s.Degree < 1 {
			return fmt.Errorf("poly kernel needs degree >= 1, got %d", s.Degree)
		}
	default:
		return fmt.Errorf("unsupported kernel %q", s.Kernel)
	}

	k := len(s.NSupport)
	if k < 2 {
		return fmt.Errorf("svc needs at least 2 classes, got %d", k)
	}
	if len(s.SupportVectors) == 0 {
		return fmt.Errorf("svc has no support vectors")
	}

	total := 0
	for i, n := range s.NSupport {
		if n < 0 {
			return fmt.Errorf("n_support[%d] is negative", i)
		}
		total += n
	}
	if total != len(s.SupportVectors) {
		return fmt.Errorf("n_support sums to %d, have %d support vectors", total, len(s.SupportVectors))
	}

	dim := len(s.SupportVectors[0])
	for i, sv := range s.SupportVectors {
		if len(sv) != dim {
			return fmt.Errorf("support vector %d has %d entries, want %d", i, len(sv), dim)
		}
	}

	if len(s.DualCoef) != k-1 {
		return fmt.Errorf("dual_coef has %d rows, want %d", len(s.DualCoef), k-1)
	}
	for i, row := range s.DualCoef {
		if len(row) != total {
			return fmt.Errorf("dual_coef row %d has %d entries, want %d", i, len(row), total)
		}
	}

	pairs := k * (k - 1) / 2
	if len(s.Intercept) != pairs {
		return fmt.Errorf("intercept has %d entries, want %d", len(s.Intercept), pairs)
	}
	if len(s.ProbA) != len(s.ProbB) || (len(s.ProbA) != 0 && len(s.ProbA) != pairs) {
		return fmt.Errorf("prob_a/prob_b must both have %d entries", pairs)
	}

	s.starts = make([]int, k)
	for i := 1; i < k; i++ {
		s.starts[i] = s.starts[i-1] + s.NSupport[i-1]
	}
	return nil
}

func (s *SVC) Kind() string { return KindSVC }

func (s *SVC) Classes() int { return len(s.NSupport) }

func (s *SVC) InputDim() int { return len(s.SupportVectors[0]) }

// Decision returns the pairwise decision values, pair order (0,1), (0,2), ... (k-2,k-1)
func (s *SVC) Decision(x []float64) ([]float64, error) {
	const op = "model.SVC.Decision"

	if err := checkInput(op, x, s.InputDim()); err != nil {
		return nil, err
	}

	kvalue := make([]float64, len(s.SupportVectors))
	for i, sv := range s.SupportVectors {
		kvalue[i] = s.kernel(sv, x)
	}

	k := s.Classes()
	dec := make([]float64, 0, k*(k-1)/2)
	p := 0
	for i := 0; i < k; i++ {
		for j := i + 1; j < k; j++ {
			si, sj := s.starts[i], s.starts[j]
			ci, cj := s.NSupport[i], s.NSupport[j]

			sum := 0.0
			for n := range ci {
				sum += s.DualCoef[j-1][si+n] * kvalue[si+n]
			}
			for n := range cj {
				sum += s.DualCoef[i][sj+n] * kvalue[sj+n]
			}
			dec = append(dec, sum+s.Intercept[p])
			p++
		}
	}

	return dec, nil
}

// Predict returns the class index and probabilities
func (s *SVC) Predict(x []float64) (int, []float64, error) {
	const op = "model.SVC.Predict"

	dec, err := s.Decision(x)
	if err != nil {
		return 0, nil, err
	}

	k := s.Classes()
	if len(s.ProbA) == 0 {
		votes := make([]float64, k)
		p := 0
		for i := 0; i < k; i++ {
			for j := i + 1; j < k; j++ {
				if dec[p] > 0 {
					votes[i]++
				} else {
					votes[j]++
				}
				p++
			}
		}
		return finishProbabilities(op, votes)
	}

	const minProb = 1e-7
	r := make([][]float64, k)
	for i := range r {
		r[i] = make([]float64, k)
	}
	p := 0
	for i := 0; i < k; i++ {
		for j := i + 1; j < k; j++ {
			v := plattProbability(dec[p], s.ProbA[p], s.ProbB[p])
			v = math.Min(math.Max(v, minProb), 1-minProb)
			r[i][j] = v
			r[j][i] = 1 - v
			p++
		}
	}

	if k == 2 {
		return finishProbabilities(op, []float64{r[0][1], r[1][0]})
	}
	return finishProbabilities(op, pairwiseCoupling(r))
}

func (s *SVC) kernel(sv, x []float64) float64 {
	switch s.Kernel {
	case "linear":
		return floats.Dot(sv, x)
	case "poly":
		return math.Pow(s.Gamma*floats.Dot(sv, x)+s.Coef0, float64(s.Degree))
	case "rbf":
		d := floats.Distance(sv, x, 2)
		return math.Exp(-s.Gamma * d * d)
	case "sigmoid":
		return math.Tanh(s.Gamma*floats.Dot(sv, x) + s.Coef0)
	default:
		return math.NaN()
	}
}

// plattProbability is libsvm's sigmoid_predict
func plattProbability(dec, a, b float64) float64 {
	f := dec*a + b
	if f >= 0 {
		return math.Exp(-f) / (1 + math.Exp(-f))
	}
	return 1 / (1 + math.Exp(f))
}

// pairwiseCoupling combines pairwise probabilities r[i][j] = P(i | i or j)
// into class probabilities (Wu, Lin & Weng 2004, second method)
func pairwiseCoupling(r [][]float64) []float64 {
	k := len(r)
	q := make([][]float64, k)
	for t := range q {
		q[t] = make([]float64, k)
	}

	p := make([]float64, k)
	qp := make([]float64, k)
	for t := range k {
		p[t] = 1 / float64(k)
		for j := range k {
			if j == t {
				continue
			}
			q[t][t] += r[j][t] * r[j][t]
			q[t][j] = -r[j][t] * r[t][j]
		}
	}

	maxIter := max(100, k)
	eps := 0.005 / float64(k)

	for range maxIter {
		pqp := 0.0
		for t := range k {
			qp[t] = floats.Dot(q[t], p)
			pqp += p[t] * qp[t]
		}

		maxError := 0.0
		for t := range k {
			maxError = math.Max(maxError, math.Abs(qp[t]-pqp))
		}
		if maxError < eps {
			break
		}

		for t := range k {
			diff := (-qp[t] + pqp) / q[t][t]
			p[t] += diff
			pqp = (pqp + diff*(diff*q[t][t]+2*qp[t])) / (1 + diff) / (1 + diff)
			for j := range k {
				qp[j] = (qp[j] + diff*q[t][j]) / (1 + diff)
				p[j] /= 1 + diff
			}
		}
	}

	return p
}
