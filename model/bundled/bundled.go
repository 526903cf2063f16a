// Package bundled embeds the reference artifact bundle used when no
// artifact directory is configured, together with labelled feature
// vectors taken from the training dataset.
package bundled

import (
	"embed"
	"encoding/json"
	"io/fs"
	"sync"

	"github.com/RyanBlaney/sonido-voz/features"
	"github.com/RyanBlaney/sonido-voz/model"
)

//go:embed manifest.yaml scaler.json projector.json classifier.json labels.json samples.json
var files embed.FS

// FS returns the embedded bundle files
func FS() fs.FS {
	return files
}

var load = sync.OnceValues(func() (*model.Bundle, error) {
	return model.Load(files)
})

// Load returns the embedded bundle, decoding it on first use
func Load() (*model.Bundle, error) {
	return load()
}

// Sample is a labelled feature vector from the reference dataset
type Sample struct {
	Name     string          `json:"name"`
	Expected string          `json:"expected"`
	Features features.Vector `json:"features"`
}

var samples = sync.OnceValues(func() ([]Sample, error) {
	data, err := files.ReadFile("samples.json")
	if err != nil {
		return nil, err
	}
	var out []Sample
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
})

// Samples returns a copy of the reference dataset samples
func Samples() ([]Sample, error) {
	s, err := samples()
	if err != nil {
		return nil, err
	}
	return append([]Sample(nil), s...), nil
}
