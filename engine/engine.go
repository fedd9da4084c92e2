package engine

import (
	iface "FaceOverlay/interface"
	"errors"
	"fmt"
	"os"
)

// Initialize loads modelPath into backend. On failure no context is returned
// and the backend holds no resources.
func Initialize(backend iface.Backend, modelPath string) (*ModelContext, error) {
	if backend == nil {
		return nil, &LoadError{Path: modelPath, Code: CodeEngine, Err: errors.New("no backend")}
	}
	if rl, ok := backend.(remoteLoader); !ok || !rl.RemoteArtifact() {
		if err := checkArtifact(modelPath); err != nil {
			return nil, err
		}
	} else if modelPath == "" {
		return nil, &LoadError{Path: modelPath, Code: CodeUnreadable, Err: errors.New("empty model path")}
	}
	if err := backend.Init(modelPath); err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			return nil, le
		}
		return nil, &LoadError{Path: modelPath, Code: CodeMalformed, Err: err}
	}
	return &ModelContext{state: Ready, backend: backend, path: modelPath}, nil
}

// remoteLoader is implemented by backends whose model artifact lives on the
// engine host rather than on local disk.
type remoteLoader interface {
	RemoteArtifact() bool
}

func checkArtifact(modelPath string) error {
	if modelPath == "" {
		return &LoadError{Path: modelPath, Code: CodeUnreadable, Err: errors.New("empty model path")}
	}
	info, err := os.Stat(modelPath)
	if err != nil {
		return &LoadError{Path: modelPath, Code: CodeUnreadable, Err: err}
	}
	if info.IsDir() {
		return &LoadError{Path: modelPath, Code: CodeUnreadable, Err: errors.New("model path is a directory")}
	}
	if info.Size() == 0 {
		return &LoadError{Path: modelPath, Code: CodeMalformed, Err: errors.New("model artifact is empty")}
	}
	f, err := os.Open(modelPath)
	if err != nil {
		return &LoadError{Path: modelPath, Code: CodeUnreadable, Err: err}
	}
	return f.Close()
}

// Release tears the backend down. Releasing a context that never reached
// Ready succeeds without side effects.
func (m *ModelContext) Release() error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.state {
	case Uninitialized:
		return nil
	case Released:
		return ErrReleased
	}
	// wait for an in-flight Infer
	m.busy.Lock()
	defer m.busy.Unlock()
	err := m.backend.Release()
	m.state = Released
	m.backend = nil
	if err != nil {
		return &ReleaseError{Err: err}
	}
	return nil
}

func (m *ModelContext) State() State {
	if m == nil {
		return Uninitialized
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *ModelContext) CheckConfig() iface.EngineConfig {
	if m == nil {
		return iface.EngineConfig{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.backend == nil {
		return iface.EngineConfig{ModelPath: m.path}
	}
	return m.backend.CheckConfig()
}

// Infer submits one image and blocks until the backend answers. Only one call
// may be outstanding per context.
func (m *ModelContext) Infer(img iface.ImageBuffer) (iface.DetectionResult, error) {
	var result iface.DetectionResult
	if m == nil {
		return result, ErrNotReady
	}
	m.mu.Lock()
	if m.state != Ready {
		m.mu.Unlock()
		return result, ErrNotReady
	}
	if !m.busy.TryLock() {
		m.mu.Unlock()
		return result, ErrBusy
	}
	backend := m.backend
	m.mu.Unlock()
	defer m.busy.Unlock()

	if img.Width <= 0 || img.Height <= 0 || len(img.Data) < img.Size || img.Size < img.Height*img.WidthStride {
		return result, &InferenceError{Code: CodeBadInput, Err: fmt.Errorf("malformed image buffer %dx%d stride %d size %d", img.Width, img.Height, img.WidthStride, img.Size)}
	}
	faces, err := backend.Infer(img)
	if err != nil {
		var ie *InferenceError
		if errors.As(err, &ie) {
			return result, ie
		}
		return result, &InferenceError{Code: CodeEngine, Err: err}
	}
	w, h := float32(img.Width), float32(img.Height)
	for _, f := range faces {
		if !result.Add(clampFace(f, w, h)) {
			break
		}
	}
	return result, nil
}

func clampFace(f iface.DetectedFace, w, h float32) iface.DetectedFace {
	f.Box.Left = clamp(f.Box.Left, 0, w)
	f.Box.Right = clamp(f.Box.Right, 0, w)
	f.Box.Top = clamp(f.Box.Top, 0, h)
	f.Box.Bottom = clamp(f.Box.Bottom, 0, h)
	if f.Box.Right < f.Box.Left {
		f.Box.Left, f.Box.Right = f.Box.Right, f.Box.Left
	}
	if f.Box.Bottom < f.Box.Top {
		f.Box.Top, f.Box.Bottom = f.Box.Bottom, f.Box.Top
	}
	f.Score = clamp(f.Score, 0, 1)
	for i := range f.Landmarks {
		f.Landmarks[i].X = clamp(f.Landmarks[i].X, 0, w)
		f.Landmarks[i].Y = clamp(f.Landmarks[i].Y, 0, h)
	}
	return f
}

func clamp(v, lo, hi float32) float32 {
	if v != v { // NaN
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
