package engine

import (
	iface "FaceOverlay/interface"
	"errors"
	"fmt"
	"sync"
)

type State int32

const (
	Uninitialized State = iota
	Ready
	Released
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Ready:
		return "ready"
	case Released:
		return "released"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Error codes reported alongside failures, as the native engines do.
const (
	CodeUnreadable = -1
	CodeMalformed  = -2
	CodeEngine     = -3
	CodeBadInput   = -4
)

var (
	ErrNotReady = errors.New("model context is not ready")
	ErrBusy     = errors.New("model context is busy")
	ErrReleased = errors.New("model context already released")
)

// LoadError reports a model artifact that could not be loaded.
type LoadError struct {
	Path string
	Code int
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load model %s failed (code %d): %v", e.Path, e.Code, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// InferenceError is fatal to the frame it was raised on.
type InferenceError struct {
	Code int
	Err  error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference failed (code %d): %v", e.Code, e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }

// ReleaseError is reported but never changes the outcome of a run.
type ReleaseError struct {
	Err error
}

func (e *ReleaseError) Error() string {
	return fmt.Sprintf("release model failed: %v", e.Err)
}

func (e *ReleaseError) Unwrap() error { return e.Err }

// ModelContext owns one initialized backend. The zero value is an
// Uninitialized context whose Release is a no-op.
type ModelContext struct {
	mu      sync.Mutex
	busy    sync.Mutex
	state   State
	backend iface.Backend
	path    string
}
