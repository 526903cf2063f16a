package features

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/RyanBlaney/sonido-voz/voiceerr"
)

// Count is the number of acoustic features
const Count = 20

// Feature indexes in the fixed vector order
const (
	MeanFreq = iota
	SD
	Median
	Q25
	Q75
	IQR
	Skew
	Kurt
	SpEnt
	SFM
	Mode
	Centroid
	MeanFun
	MinFun
	MaxFun
	MeanDom
	MinDom
	MaxDom
	DFRange
	ModIndx
)

var names = [Count]string{
	"meanfreq", "sd", "median", "Q25", "Q75", "IQR", "skew", "kurt",
	"sp.ent", "sfm", "mode", "centroid", "meanfun", "minfun", "maxfun",
	"meandom", "mindom", "maxdom", "dfrange", "modindx",
}

var nameIndex = func() map[string]int {
	m := make(map[string]int, Count)
	for i, n := range names {
		m[n] = i
	}
	return m
}()

// Names returns the feature names in vector order
func Names() []string {
	out := make([]string, Count)
	copy(out, names[:])
	return out
}

// Index returns the position of a named feature
func Index(name string) (int, bool) {
	i, ok := nameIndex[name]
	return i, ok
}

// Vector is the 20-value acoustic description of one recording.
// It is a value type; copies never alias.
type Vector [Count]float64

// FromSlice builds a Vector from exactly Count values
func FromSlice(values []float64) (Vector, error) {
	var v Vector
	if len(values) != Count {
		return v, voiceerr.Errorf(voiceerr.KindArtifactShapeMismatch, "features.FromSlice",
			"got %d features, want %d", len(values), Count)
	}
	copy(v[:], values)
	return v, nil
}

// FromMap builds a Vector from a name-keyed map. All Count names must be
// present; unknown keys are rejected.
func FromMap(values map[string]float64) (Vector, error) {
	const op = "features.FromMap"

	var v Vector
	for key := range values {
		if _, ok := nameIndex[key]; !ok {
			return v, voiceerr.Errorf(voiceerr.KindArtifactShapeMismatch, op, "unknown feature %q", key)
		}
	}
	for i, name := range names {
		val, ok := values[name]
		if !ok {
			return v, voiceerr.Errorf(voiceerr.KindArtifactShapeMismatch, op, "missing feature %q", name)
		}
		v[i] = val
	}
	return v, nil
}

// Slice returns the values as a new slice
func (v Vector) Slice() []float64 {
	out := make([]float64, Count)
	copy(out, v[:])
	return out
}

// Map returns the values keyed by feature name
func (v Vector) Map() map[string]float64 {
	m := make(map[string]float64, Count)
	for i, name := range names {
		m[name] = v[i]
	}
	return m
}

// Get returns a named feature
func (v Vector) Get(name string) (float64, bool) {
	i, ok := nameIndex[name]
	if !ok {
		return 0, false
	}
	return v[i], true
}

// Finite reports whether every value is a finite number
func (v Vector) Finite() bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

// MarshalJSON writes an object with keys in vector order
func (v Vector) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range names {
		if i > 0 {
			buf.WriteByte(',')
		}
		if math.IsNaN(v[i]) || math.IsInf(v[i], 0) {
			return nil, fmt.Errorf("feature %s is not finite: %v", name, v[i])
		}
		buf.WriteString(strconv.Quote(name))
		buf.WriteByte(':')
		buf.WriteString(strconv.FormatFloat(v[i], 'g', -1, 64))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON accepts either a name-keyed object or a 20-value array
func (v *Vector) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var values []float64
		if err := json.Unmarshal(data, &values); err != nil {
			return err
		}
		parsed, err := FromSlice(values)
		if err != nil {
			return err
		}
		*v = parsed
		return nil
	}

	var m map[string]float64
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	parsed, err := FromMap(m)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
