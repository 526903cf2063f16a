// Package voiceerr defines the error taxonomy shared by every stage of the
// prediction pipeline.
//
// Stages return *Error values tagged with a Kind. Callers match on the
// sentinel values with errors.Is:
//
//	if errors.Is(err, voiceerr.ErrInsufficientSignal) {
//		// ask the user for a longer recording
//	}
package voiceerr

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline failure
type Kind int

const (
	KindUnknown Kind = iota
	KindDecode
	KindEmptyAudio
	KindInsufficientSignal
	KindArtifactShapeMismatch
	KindArtifactLoad
	KindClassifierInference
	KindInvalidConfig
)

func (k Kind) String() string {
	switch k {
	case KindDecode:
		return "decode"
	case KindEmptyAudio:
		return "empty_audio"
	case KindInsufficientSignal:
		return "insufficient_signal"
	case KindArtifactShapeMismatch:
		return "artifact_shape_mismatch"
	case KindArtifactLoad:
		return "artifact_load"
	case KindClassifierInference:
		return "classifier_inference"
	case KindInvalidConfig:
		return "invalid_config"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is matching. An *Error matches the sentinel of its Kind.
var (
	ErrDecode                = &sentinel{KindDecode}
	ErrEmptyAudio            = &sentinel{KindEmptyAudio}
	ErrInsufficientSignal    = &sentinel{KindInsufficientSignal}
	ErrArtifactShapeMismatch = &sentinel{KindArtifactShapeMismatch}
	ErrArtifactLoad          = &sentinel{KindArtifactLoad}
	ErrClassifierInference   = &sentinel{KindClassifierInference}
	ErrInvalidConfig         = &sentinel{KindInvalidConfig}
)

type sentinel struct {
	kind Kind
}

func (s *sentinel) Error() string {
	return s.kind.String()
}

// Error is a pipeline failure with the operation that produced it
type Error struct {
	Kind Kind
	Op   string // e.g. "transcode.LoadFile"
	Err  error
}

// New creates an *Error of the given kind wrapping err
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf creates an *Error of the given kind from a format string
func Errorf(kind Kind, op string, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for e's kind
func (e *Error) Is(target error) bool {
	if s, ok := target.(*sentinel); ok {
		return s.kind == e.Kind
	}
	return false
}

// Recoverable reports whether the caller can retry with different input.
// Artifact, inference and configuration failures are not.
func (e *Error) Recoverable() bool {
	switch e.Kind {
	case KindDecode, KindEmptyAudio, KindInsufficientSignal:
		return true
	default:
		return false
	}
}

// KindOf returns the Kind of the first *Error in err's chain, or KindUnknown
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsRecoverable reports whether err is a recoverable pipeline error
func IsRecoverable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Recoverable()
	}
	return false
}
