package iface

import (
	"errors"
	"image"
	"image/color"
)

// MaxFaces is the engine's maximum output capacity per frame.
const MaxFaces = 128

// LandmarkCount is the number of facial keypoints returned per face.
const LandmarkCount = 5

// Landmark indices, in the order the engine returns them.
const (
	LeftEye = iota
	RightEye
	Nose
	LeftMouth
	RightMouth
)

// ErrCaptureEnd is returned by Source.Read once no more frames are available.
// It ends the loop normally and is never reported as a failure.
var ErrCaptureEnd = errors.New("capture end")

type PixelFormat int

const (
	FormatRGB888 PixelFormat = iota + 1
	FormatBGR888
	FormatRGBA8888
	FormatGray8
)

func (f PixelFormat) String() string {
	switch f {
	case FormatRGB888:
		return "RGB888"
	case FormatBGR888:
		return "BGR888"
	case FormatRGBA8888:
		return "RGBA8888"
	case FormatGray8:
		return "GRAY8"
	default:
		return "unknown"
	}
}

// BytesPerPixel returns 0 for unknown formats.
func (f PixelFormat) BytesPerPixel() int {
	switch f {
	case FormatRGB888, FormatBGR888:
		return 3
	case FormatRGBA8888:
		return 4
	case FormatGray8:
		return 1
	default:
		return 0
	}
}

// ImageBuffer describes one frame's pixel memory. It is a view: Data belongs
// to whoever produced the frame and must outlive every use of the descriptor.
type ImageBuffer struct {
	Width        int
	Height       int
	WidthStride  int // bytes per row as laid out in memory, padding included
	HeightStride int // rows per plane; equals Height for packed formats
	Format       PixelFormat
	Data         []byte
	Size         int
	Fd           int // 0 for plain host memory
}

// Row returns the visible bytes of row y, without padding.
func (b ImageBuffer) Row(y int) []byte {
	off := y * b.WidthStride
	return b.Data[off : off+b.Width*b.Format.BytesPerPixel()]
}

// Offset returns the byte offset of pixel (x, y), or -1 if it lies outside the image.
func (b ImageBuffer) Offset(x, y int) int {
	if x < 0 || y < 0 || x >= b.Width || y >= b.Height {
		return -1
	}
	return y*b.WidthStride + x*b.Format.BytesPerPixel()
}

func (b ImageBuffer) Bounds() image.Rectangle {
	return image.Rect(0, 0, b.Width, b.Height)
}

type Point struct {
	X, Y float32
}

type Box struct {
	Left, Top, Right, Bottom float32
}

func (b Box) Rect() image.Rectangle {
	return image.Rect(int(b.Left), int(b.Top), int(b.Right), int(b.Bottom))
}

type DetectedFace struct {
	Box       Box
	Score     float32
	Landmarks [LandmarkCount]Point
}

// DetectionResult is a bounded sequence of faces; Count never exceeds MaxFaces.
type DetectionResult struct {
	Faces [MaxFaces]DetectedFace
	Count int
}

// Add appends a face and reports false once the result is full.
func (r *DetectionResult) Add(f DetectedFace) bool {
	if r.Count >= MaxFaces {
		return false
	}
	r.Faces[r.Count] = f
	r.Count++
	return true
}

func (r *DetectionResult) Slice() []DetectedFace {
	return r.Faces[:r.Count]
}

type EngineConfig struct {
	Backend        string
	ModelPath      string
	Address        string
	ScoreThreshold float32
	NMSThreshold   float32
	TopK           int
}

// Backend is the neural inference engine. Implementations are driven by
// engine.ModelContext and never called concurrently.
type Backend interface {
	Init(modelPath string) error
	Infer(img ImageBuffer) ([]DetectedFace, error)
	Release() error
	CheckConfig() EngineConfig
}

// Canvas draws onto the pixel memory of one frame in place.
type Canvas interface {
	Rectangle(r image.Rectangle, c color.RGBA, thickness int)
	Text(s string, at image.Point, c color.RGBA, scale float64)
	Circle(center image.Point, radius int, c color.RGBA, thickness int)
}

// Frame is one captured frame, exclusively owned by the loop for one iteration.
type Frame interface {
	// Prepare converts the frame into the engine's channel order and returns a
	// view over the converted memory.
	Prepare() (ImageBuffer, error)
	// Canvas returns the drawing surface backed by the buffer Prepare returned.
	Canvas(buf ImageBuffer) Canvas
	Snapshot(path string) error
	Close() error
}

type Source interface {
	Open() error
	// Read returns ErrCaptureEnd once the source is exhausted.
	Read() (Frame, error)
	Close() error
}

type Display interface {
	// Show converts the frame back to display order and presents it.
	Show(f Frame) error
	// PollKey returns the pressed key code, or -1.
	PollKey() int
	Close() error
}
