package model

import (
	"github.com/RyanBlaney/sonido-voz/voiceerr"
)

// Chain applies the scaler then the projector
type Chain struct {
	Scaler    *Scaler
	Projector *Projector
}

// NewChain validates both stages and their join
func NewChain(scaler *Scaler, projector *Projector) (*Chain, error) {
	const op = "model.NewChain"

	if scaler == nil || projector == nil {
		return nil, voiceerr.Errorf(voiceerr.KindArtifactLoad, op, "scaler and projector are required")
	}
	if err := scaler.Validate(); err != nil {
		return nil, voiceerr.New(voiceerr.KindArtifactLoad, op, err)
	}
	if err := projector.Validate(); err != nil {
		return nil, voiceerr.New(voiceerr.KindArtifactLoad, op, err)
	}
	if projector.InputDim() != scaler.Features() {
		return nil, voiceerr.New(voiceerr.KindArtifactLoad, op,
			voiceerr.Errorf(voiceerr.KindArtifactShapeMismatch, op,
				"projector expects %d inputs, scaler produces %d", projector.InputDim(), scaler.Features()))
	}

	return &Chain{Scaler: scaler, Projector: projector}, nil
}

// InputDim returns the feature count the chain accepts
func (c *Chain) InputDim() int {
	return c.Scaler.Features()
}

// OutputDim returns the projected length
func (c *Chain) OutputDim() int {
	return c.Projector.OutputDim()
}

// Apply returns the scaled and projected vectors for x. Input length is
// checked before any arithmetic.
func (c *Chain) Apply(x []float64) (scaled, projected []float64, err error) {
	scaled, err = c.Scaler.Transform(x)
	if err != nil {
		return nil, nil, err
	}
	projected, err = c.Projector.Transform(scaled)
	if err != nil {
		return nil, nil, err
	}
	return scaled, projected, nil
}
