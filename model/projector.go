package model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/RyanBlaney/sonido-voz/voiceerr"
)

// Projector is a fitted linear projection (PCA):
// out = (s - Mean) · Componentsᵀ, optionally divided by sqrt(ExplainedVariance).
// Mean defaults to zero when omitted.
type Projector struct {
	// Components is n_components x n_features
	Components        [][]float64 `json:"components" msgpack:"components"`
	Mean              []float64   `json:"mean,omitempty" msgpack:"mean,omitempty"`
	ExplainedVariance []float64   `json:"explained_variance,omitempty" msgpack:"explained_variance,omitempty"`
	Whiten            bool        `json:"whiten,omitempty" msgpack:"whiten,omitempty"`

	matrix *mat.Dense
}

// InputDim returns the number of features consumed
func (p *Projector) InputDim() int {
	if len(p.Components) == 0 {
		return 0
	}
	return len(p.Components[0])
}

// OutputDim returns the number of components produced
func (p *Projector) OutputDim() int {
	return len(p.Components)
}

// Validate checks shapes and freezes the projection matrix.
// It must be called before the projector is shared between goroutines.
func (p *Projector) Validate() error {
	const op = "model.Projector.Validate"

	rows := len(p.Components)
	if rows == 0 {
		return fmt.Errorf("projector has no components")
	}
	cols := len(p.Components[0])
	if cols == 0 {
		return fmt.Errorf("projector components are empty")
	}
	if rows > cols {
		return voiceerr.Errorf(voiceerr.KindArtifactShapeMismatch, op,
			"%d components exceed %d input features", rows, cols)
	}

	data := make([]float64, 0, rows*cols)
	for i, row := range p.Components {
		if len(row) != cols {
			return voiceerr.Errorf(voiceerr.KindArtifactShapeMismatch, op,
				"component %d has %d entries, want %d", i, len(row), cols)
		}
		if j := firstNonFinite(row); j >= 0 {
			return fmt.Errorf("component %d entry %d is not finite", i, j)
		}
		data = append(data, row...)
	}

	if p.Mean != nil && len(p.Mean) != cols {
		return voiceerr.Errorf(voiceerr.KindArtifactShapeMismatch, op,
			"mean has %d entries, want %d", len(p.Mean), cols)
	}
	if p.Whiten {
		if len(p.ExplainedVariance) != rows {
			return voiceerr.Errorf(voiceerr.KindArtifactShapeMismatch, op,
				"explained_variance has %d entries, want %d", len(p.ExplainedVariance), rows)
		}
		for i, v := range p.ExplainedVariance {
			if v <= 0 || !finite(v) {
				return fmt.Errorf("explained_variance[%d] must be positive for whitening: %v", i, v)
			}
		}
	}

	p.matrix = mat.NewDense(rows, cols, data)
	return nil
}

// Transform projects a scaled vector
func (p *Projector) Transform(s []float64) ([]float64, error) {
	const op = "model.Projector.Transform"

	if p.matrix == nil {
		return nil, voiceerr.Errorf(voiceerr.KindArtifactLoad, op, "projector used before Validate")
	}
	rows, cols := p.matrix.Dims()
	if len(s) != cols {
		return nil, voiceerr.Errorf(voiceerr.KindArtifactShapeMismatch, op,
			"got %d values, want %d", len(s), cols)
	}

	centered := make([]float64, cols)
	copy(centered, s)
	if p.Mean != nil {
		for i := range centered {
			centered[i] -= p.Mean[i]
		}
	}

	var out mat.VecDense
	out.MulVec(p.matrix, mat.NewVecDense(cols, centered))

	projected := make([]float64, rows)
	for i := range projected {
		projected[i] = out.AtVec(i)
		if p.Whiten {
			projected[i] /= math.Sqrt(p.ExplainedVariance[i])
		}
	}

	if i := firstNonFinite(projected); i >= 0 {
		return nil, voiceerr.Errorf(voiceerr.KindClassifierInference, op, "component %d is not finite", i)
	}
	return projected, nil
}
