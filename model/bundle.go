package model

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/RyanBlaney/sonido-voz/features"
	"github.com/RyanBlaney/sonido-voz/logging"
	"github.com/RyanBlaney/sonido-voz/voiceerr"
)

// ManifestFile is the bundle index file name
const ManifestFile = "manifest.yaml"

// Manifest describes the artifact files of a bundle
type Manifest struct {
	Version      string   `yaml:"version" json:"version"`
	Description  string   `yaml:"description,omitempty" json:"description,omitempty"`
	FeatureOrder []string `yaml:"feature_order" json:"feature_order"`

	// Normalization records the feature units the artifacts were fit with.
	// Empty means the extractor defaults.
	Normalization *features.Normalization `yaml:"normalization,omitempty" json:"normalization,omitempty"`

	Files ManifestFiles `yaml:"files" json:"files"`
}

// ManifestFiles names the artifact files relative to the bundle root
type ManifestFiles struct {
	Scaler     string `yaml:"scaler" json:"scaler"`
	Projector  string `yaml:"projector" json:"projector"`
	Classifier string `yaml:"classifier" json:"classifier"`
	Labels     string `yaml:"labels" json:"labels"`
}

// Bundle is a validated, read-only set of trained artifacts
type Bundle struct {
	Manifest   Manifest
	Chain      *Chain
	Classifier Classifier
	Labels     *LabelDecoder
}

// LoadDir loads a bundle from a directory on disk
func LoadDir(dir string) (*Bundle, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, voiceerr.New(voiceerr.KindArtifactLoad, "model.LoadDir", err)
	}
	if !info.IsDir() {
		return nil, voiceerr.Errorf(voiceerr.KindArtifactLoad, "model.LoadDir", "%s is not a directory", dir)
	}
	return Load(os.DirFS(dir))
}

// Load reads and validates a bundle from fsys
func Load(fsys fs.FS) (*Bundle, error) {
	const op = "model.Load"

	logger := logging.WithFields(logging.Fields{
		"component": "artifact_loader",
		"function":  "Load",
	})

	manifest, err := readManifest(fsys)
	if err != nil {
		logger.Error(err, "Failed to read bundle manifest")
		return nil, voiceerr.New(voiceerr.KindArtifactLoad, op, err)
	}

	var scaler Scaler
	if err := readArtifact(fsys, manifest.Files.Scaler, &scaler); err != nil {
		return nil, voiceerr.New(voiceerr.KindArtifactLoad, op, fmt.Errorf("scaler: %w", err))
	}

	var projector Projector
	if err := readArtifact(fsys, manifest.Files.Projector, &projector); err != nil {
		return nil, voiceerr.New(voiceerr.KindArtifactLoad, op, fmt.Errorf("projector: %w", err))
	}

	var labels LabelDecoder
	if err := readArtifact(fsys, manifest.Files.Labels, &labels); err != nil {
		return nil, voiceerr.New(voiceerr.KindArtifactLoad, op, fmt.Errorf("labels: %w", err))
	}

	classifier, err := readClassifier(fsys, manifest.Files.Classifier)
	if err != nil {
		return nil, err
	}

	chain, err := NewChain(&scaler, &projector)
	if err != nil {
		return nil, err
	}

	b := &Bundle{
		Manifest:   *manifest,
		Chain:      chain,
		Classifier: classifier,
		Labels:     &labels,
	}
	if err := b.Validate(); err != nil {
		logger.Error(err, "Bundle validation failed", logging.Fields{"version": manifest.Version})
		return nil, err
	}

	logger.Debug("Artifact bundle loaded", logging.Fields{
		"version":    manifest.Version,
		"classifier": classifier.Kind(),
		"components": chain.OutputDim(),
		"classes":    labels.Classes,
	})

	return b, nil
}

// Validate checks that the stages fit together
func (b *Bundle) Validate() error {
	const op = "model.Bundle.Validate"

	var errs []error
	shape := func(format string, args ...any) {
		errs = append(errs, voiceerr.Errorf(voiceerr.KindArtifactShapeMismatch, op, format, args...))
	}

	if !slices.Equal(b.Manifest.FeatureOrder, features.Names()) {
		errs = append(errs, fmt.Errorf("feature_order %v does not match extractor order %v",
			b.Manifest.FeatureOrder, features.Names()))
	}
	if b.Manifest.Normalization != nil {
		if err := b.Manifest.Normalization.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("normalization: %w", err))
		}
	}
	if b.Chain.InputDim() != features.Count {
		shape("scaler has %d features, want %d", b.Chain.InputDim(), features.Count)
	}
	if b.Classifier.InputDim() != b.Chain.OutputDim() {
		shape("classifier expects %d inputs, projector produces %d", b.Classifier.InputDim(), b.Chain.OutputDim())
	}
	if err := b.Labels.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("labels: %w", err))
	} else if b.Labels.Len() != b.Classifier.Classes() {
		shape("%d labels for %d classifier classes", b.Labels.Len(), b.Classifier.Classes())
	}

	if err := errors.Join(errs...); err != nil {
		return voiceerr.New(voiceerr.KindArtifactLoad, op, err)
	}
	return nil
}

// Version returns the manifest version string
func (b *Bundle) Version() string {
	return b.Manifest.Version
}

// Normalization returns the units the bundle expects
func (b *Bundle) Normalization() *features.Normalization {
	if b.Manifest.Normalization != nil {
		n := *b.Manifest.Normalization
		return &n
	}
	return features.DefaultNormalization()
}

func readManifest(fsys fs.FS) (*Manifest, error) {
	data, err := fs.ReadFile(fsys, ManifestFile)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", ManifestFile, err)
	}

	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("decode %s: %w", ManifestFile, err)
	}

	var errs []error
	if m.Version == "" {
		errs = append(errs, fmt.Errorf("version is required"))
	}
	for name, file := range map[string]string{
		"scaler":     m.Files.Scaler,
		"projector":  m.Files.Projector,
		"classifier": m.Files.Classifier,
		"labels":     m.Files.Labels,
	} {
		if file == "" {
			errs = append(errs, fmt.Errorf("files.%s is required", name))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	return &m, nil
}

func readArtifact(fsys fs.FS, name string, v any) error {
	codec, err := CodecFor(name)
	if err != nil {
		return err
	}
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return err
	}
	if err := codec.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

func readClassifier(fsys fs.FS, name string) (Classifier, error) {
	const op = "model.Load"

	codec, err := CodecFor(name)
	if err != nil {
		return nil, voiceerr.New(voiceerr.KindArtifactLoad, op, fmt.Errorf("classifier: %w", err))
	}
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, voiceerr.New(voiceerr.KindArtifactLoad, op, fmt.Errorf("classifier: %w", err))
	}
	return DecodeClassifier(codec, data)
}
