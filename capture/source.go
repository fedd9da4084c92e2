// Package capture wires the loop's video source, frames and display to OpenCV.
package capture

import (
	iface "FaceOverlay/interface"
	"fmt"
	"strconv"

	"gocv.io/x/gocv"
)

type Renderer string

const (
	RendererOpenCV Renderer = "opencv"
	RendererBuffer Renderer = "buffer"
)

// VideoSource reads frames from a file path or, when Path is a number, a
// camera device index.
type VideoSource struct {
	Path     string
	Width    int
	Height   int
	Renderer Renderer

	cap *gocv.VideoCapture
}

func NewVideoSource(path string, width, height int, renderer Renderer) *VideoSource {
	return &VideoSource{Path: path, Width: width, Height: height, Renderer: renderer}
}

func (s *VideoSource) device() any {
	if id, err := strconv.Atoi(s.Path); err == nil {
		return id
	}
	return s.Path
}

func (s *VideoSource) Open() error {
	vc, err := gocv.OpenVideoCapture(s.device())
	if err != nil {
		return fmt.Errorf("open video capture %s: %w", s.Path, err)
	}
	if !vc.IsOpened() {
		_ = vc.Close()
		return fmt.Errorf("open video capture %s: source not opened", s.Path)
	}
	if s.Width > 0 && s.Height > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(s.Width))
		vc.Set(gocv.VideoCaptureFrameHeight, float64(s.Height))
	}
	s.cap = vc
	return nil
}

// FrameCount is the number of frames in a file source, or -1 when unknown.
func (s *VideoSource) FrameCount() int {
	if s.cap == nil {
		return -1
	}
	n := int(s.cap.Get(gocv.VideoCaptureFrameCount))
	if n <= 0 {
		return -1
	}
	return n
}

func (s *VideoSource) Read() (iface.Frame, error) {
	if s.cap == nil {
		return nil, fmt.Errorf("video source %s is not open", s.Path)
	}
	bgr := gocv.NewMat()
	if ok := s.cap.Read(&bgr); !ok || bgr.Empty() {
		_ = bgr.Close()
		return nil, iface.ErrCaptureEnd
	}
	return NewMatFrame(bgr, s.Renderer), nil
}

func (s *VideoSource) Close() error {
	if s.cap == nil {
		return nil
	}
	vc := s.cap
	s.cap = nil
	return vc.Close()
}
