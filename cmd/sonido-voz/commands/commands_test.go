package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/RyanBlaney/sonido-voz/features"
	"github.com/RyanBlaney/sonido-voz/voiceerr"
)

var maleReference = []string{
	"0.0598", "0.0642", "0.0320", "0.0151", "0.0902", "0.0751", "12.863", "274.40", "0.8934", "0.4919",
	"0.0", "0.0598", "0.0843", "0.0157", "0.2759", "0.0078", "0.0078", "0.0078", "0.0", "0.0",
}

func runCmd(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()

	configPath = ""
	logLevel = "error"
	artifactsDir = ""
	enableFFmpeg = false
	jsonOutput = false
	serveAddr = ""
	globalConfig = nil

	var outBuf, errBuf bytes.Buffer
	rootCmd.SetOut(&outBuf)
	rootCmd.SetErr(&errBuf)
	rootCmd.SetArgs(args)
	err = rootCmd.Execute()

	return outBuf.String(), errBuf.String(), err
}

func writeVoice(t *testing.T, dir, name string, seconds, f0 float64) string {
	t.Helper()

	const rate = 22050
	data := make([]int, int(seconds*rate))
	for i := range data {
		x := float64(i) / rate
		data[i] = int(16000 * (math.Sin(2*math.Pi*f0*x) + 0.5*math.Sin(4*math.Pi*f0*x)) / 1.5)
	}

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, rate, 16, 1, 1)
	if err := enc.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: rate},
		Data:           data,
		SourceBitDepth: 16,
	}); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestBundleJSON(t *testing.T) {
	stdout, _, err := runCmd(t, "bundle", "--json")
	if err != nil {
		t.Fatalf("bundle: %v", err)
	}

	var info bundleInfo
	if err := json.Unmarshal([]byte(stdout), &info); err != nil {
		t.Fatalf("invalid JSON %q: %v", stdout, err)
	}
	if info.Version != "reference-1" || info.Features != features.Count || len(info.Labels) != 2 {
		t.Errorf("unexpected bundle info %+v", info)
	}
}

func TestBundleText(t *testing.T) {
	stdout, _, err := runCmd(t, "bundle")
	if err != nil {
		t.Fatalf("bundle: %v", err)
	}
	if !strings.Contains(stdout, "reference-1") || !strings.Contains(stdout, "logistic") {
		t.Errorf("unexpected output:\n%s", stdout)
	}
}

func TestPredictFeatures(t *testing.T) {
	args := append([]string{"predict-features", "--json"}, maleReference...)
	stdout, _, err := runCmd(t, args...)
	if err != nil {
		t.Fatalf("predict-features: %v", err)
	}

	var r struct {
		Label      string  `json:"label"`
		Confidence float64 `json:"confidence"`
		Source     string  `json:"source"`
	}
	if err := json.Unmarshal([]byte(stdout), &r); err != nil {
		t.Fatalf("invalid JSON %q: %v", stdout, err)
	}
	if r.Label != "male" || r.Confidence < 0.5 || r.Source != "features" {
		t.Errorf("unexpected result %+v", r)
	}
}

func TestPredictFeaturesWrongCount(t *testing.T) {
	args := append([]string{"predict-features"}, maleReference[:19]...)
	_, _, err := runCmd(t, args...)
	if !errors.Is(err, voiceerr.ErrArtifactShapeMismatch) {
		t.Fatalf("err = %v, want ErrArtifactShapeMismatch", err)
	}
}

func TestParseVector(t *testing.T) {
	array := "[" + strings.Join(maleReference, ",") + "]"
	v, err := parseVector([]string{array})
	if err != nil {
		t.Fatalf("parseVector(array): %v", err)
	}
	want, _ := strconv.ParseFloat(maleReference[7], 64)
	if v[features.Kurt] != want {
		t.Errorf("kurt = %v, want %v", v[features.Kurt], want)
	}

	obj, _ := json.Marshal(v)
	fromObj, err := parseVector([]string{string(obj)})
	if err != nil || fromObj != v {
		t.Errorf("parseVector(object) = %v, %v", fromObj, err)
	}

	if _, err := parseVector([]string{"abc"}); err == nil {
		t.Error("expected error for non-numeric value")
	}
}

func TestPredictAudio(t *testing.T) {
	dir := t.TempDir()
	path := writeVoice(t, dir, "voice.wav", 1, 130)

	stdout, _, err := runCmd(t, "predict", "--json", path)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if !strings.Contains(stdout, `"source": "audio"`) {
		t.Errorf("unexpected output:\n%s", stdout)
	}

	stdout, _, err = runCmd(t, "predict", path)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if !strings.Contains(stdout, "confidence") {
		t.Errorf("unexpected output:\n%s", stdout)
	}
}

func TestPredictBatchPartialFailure(t *testing.T) {
	dir := t.TempDir()
	good := writeVoice(t, dir, "voice.wav", 1, 200)
	missing := filepath.Join(dir, "missing.wav")

	stdout, _, err := runCmd(t, "predict", "--json", good, missing)
	if err == nil || !strings.Contains(err.Error(), "1 of 2") {
		t.Fatalf("err = %v, want partial failure", err)
	}

	var records []batchOutput
	if err := json.Unmarshal([]byte(stdout), &records); err != nil {
		t.Fatalf("invalid JSON %q: %v", stdout, err)
	}
	if len(records) != 2 || records[0].Result == nil || records[1].Error == "" {
		t.Errorf("unexpected records %+v", records)
	}
}

func TestFeaturesJSON(t *testing.T) {
	path := writeVoice(t, t.TempDir(), "voice.wav", 1, 150)

	stdout, _, err := runCmd(t, "features", "--json", path)
	if err != nil {
		t.Fatalf("features: %v", err)
	}

	var m map[string]float64
	if err := json.Unmarshal([]byte(stdout), &m); err != nil {
		t.Fatalf("invalid JSON %q: %v", stdout, err)
	}
	if len(m) != features.Count {
		t.Errorf("got %d features, want %d", len(m), features.Count)
	}
	if m["meanfun"] <= 0 {
		t.Errorf("meanfun = %v, want voiced pitch", m["meanfun"])
	}
}

func TestInvalidFlags(t *testing.T) {
	if _, _, err := runCmd(t, "bundle", "--log-level", "loud"); err == nil {
		t.Error("expected error for invalid log level")
	}
	if _, _, err := runCmd(t, "bundle", "--artifacts", filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("expected error for missing artifacts dir")
	}
	if _, _, err := runCmd(t, "bundle", "--config", filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestServeFailsOnBrokenBundle(t *testing.T) {
	_, _, err := runCmd(t, "serve", "--artifacts", t.TempDir(), "--addr", "127.0.0.1:0")
	if !errors.Is(err, voiceerr.ErrArtifactLoad) {
		t.Fatalf("err = %v, want ErrArtifactLoad", err)
	}
}

func TestFlushTelemetryOutlivesCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var sawDeadline bool
	err := flushTelemetry(ctx, func(flushCtx context.Context) error {
		_, sawDeadline = flushCtx.Deadline()
		return flushCtx.Err()
	})
	if err != nil {
		t.Fatalf("flush ran with a dead context: %v", err)
	}
	if !sawDeadline {
		t.Error("flush context has no deadline")
	}
}
