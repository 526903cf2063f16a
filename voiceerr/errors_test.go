package voiceerr

import (
	"errors"
	"fmt"
	"io"
	"testing"
)

func TestErrorMatchesSentinelOfItsKind(t *testing.T) {
	tests := []struct {
		kind     Kind
		sentinel error
	}{
		{KindDecode, ErrDecode},
		{KindEmptyAudio, ErrEmptyAudio},
		{KindInsufficientSignal, ErrInsufficientSignal},
		{KindArtifactShapeMismatch, ErrArtifactShapeMismatch},
		{KindArtifactLoad, ErrArtifactLoad},
		{KindClassifierInference, ErrClassifierInference},
		{KindInvalidConfig, ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			err := fmt.Errorf("outer: %w", New(tt.kind, "op", io.ErrUnexpectedEOF))
			if !errors.Is(err, tt.sentinel) {
				t.Fatalf("errors.Is(%v, %v) = false", err, tt.sentinel)
			}
			if tt.kind != KindDecode && errors.Is(err, ErrDecode) {
				t.Fatalf("%v unexpectedly matched ErrDecode", err)
			}
			if !errors.Is(err, io.ErrUnexpectedEOF) {
				t.Fatal("wrapped cause not reachable")
			}
			if got := KindOf(err); got != tt.kind {
				t.Fatalf("KindOf = %v, want %v", got, tt.kind)
			}
		})
	}
}

func TestRecoverable(t *testing.T) {
	if !IsRecoverable(New(KindInsufficientSignal, "", nil)) {
		t.Error("insufficient signal should be recoverable")
	}
	if IsRecoverable(New(KindArtifactLoad, "", nil)) {
		t.Error("artifact load should not be recoverable")
	}
	if IsRecoverable(New(KindInvalidConfig, "", nil)) {
		t.Error("invalid config should not be recoverable")
	}
	if IsRecoverable(io.EOF) {
		t.Error("plain errors are not recoverable pipeline errors")
	}
}

func TestErrorString(t *testing.T) {
	err := Errorf(KindArtifactShapeMismatch, "model.Scaler.Transform", "got %d features, want %d", 19, 20)
	want := "model.Scaler.Transform: artifact_shape_mismatch: got 19 features, want 20"
	if err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}
}
