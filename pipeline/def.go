package pipeline

import (
	"fmt"
	"time"

	"FaceOverlay/overlay"
)

type State int32

const (
	Starting State = iota
	Running
	Draining
	Stopped
)

func (s State) String() string {
	switch s {
	case Starting:
		return "Starting"
	case Running:
		return "Running"
	case Draining:
		return "Draining"
	case Stopped:
		return "Stopped"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// ExitReason names the transition that moved the loop to Draining.
type ExitReason string

const (
	ReasonNone           ExitReason = ""
	ReasonCaptureEnd     ExitReason = "capture-end"
	ReasonCaptureError   ExitReason = "capture-error"
	ReasonInferenceError ExitReason = "inference-error"
	ReasonDisplayError   ExitReason = "display-error"
	ReasonUserCancel     ExitReason = "user-cancel"
	ReasonContextCancel  ExitReason = "context-cancel"
)

// Failure reports whether the reason should make the process exit non-zero.
func (r ExitReason) Failure() bool {
	switch r {
	case ReasonCaptureError, ReasonInferenceError, ReasonDisplayError:
		return true
	}
	return false
}

type Report struct {
	RunID      string
	Frames     int
	Inferences int
	Faces      int
	Snapshots  []string
	Reason     ExitReason
}

// StartupError is returned when the loop never reached Running.
type StartupError struct {
	Stage string // capture or model
	Err   error
}

func (e *StartupError) Error() string {
	return fmt.Sprintf("startup failed at %s: %v", e.Stage, e.Err)
}

func (e *StartupError) Unwrap() error { return e.Err }

type Options struct {
	ModelPath   string
	QuitKey     int // -1 disables
	SnapshotKey int // -1 disables
	SnapshotDir string
	SnapshotAt  int // 1-based frame number, 0 disables
	FrameDelay  time.Duration
	Style       overlay.Style
}

func DefaultOptions() Options {
	return Options{
		QuitKey:     'q',
		SnapshotKey: 's',
		SnapshotDir: ".",
		FrameDelay:  20 * time.Millisecond,
		Style:       overlay.DefaultStyle(),
	}
}

// Status is a point-in-time view of a running loop.
type Status struct {
	RunID  string `json:"run"`
	State  string `json:"state"`
	Frames int64  `json:"frames"`
	Faces  int64  `json:"faces"`
}
