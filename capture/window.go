package capture

import (
	iface "FaceOverlay/interface"
	"errors"
	"fmt"

	"gocv.io/x/gocv"
)

type Rotation int

const (
	RotateNone Rotation = iota
	RotateCW90
	RotateCCW90
	Rotate180
)

func ParseRotation(s string) (Rotation, error) {
	switch s {
	case "", "none":
		return RotateNone, nil
	case "cw90":
		return RotateCW90, nil
	case "ccw90":
		return RotateCCW90, nil
	case "180":
		return Rotate180, nil
	}
	return RotateNone, fmt.Errorf("unknown rotation %q", s)
}

func (r Rotation) String() string {
	switch r {
	case RotateCW90:
		return "cw90"
	case RotateCCW90:
		return "ccw90"
	case Rotate180:
		return "180"
	}
	return "none"
}

func (r Rotation) flag() gocv.RotateFlag {
	switch r {
	case RotateCW90:
		return gocv.Rotate90Clockwise
	case RotateCCW90:
		return gocv.Rotate90CounterClockwise
	}
	return gocv.Rotate180Clockwise
}

// Window shows frames in a HighGUI window. It must be created and used from
// the main OS thread.
type Window struct {
	Name       string
	Fullscreen bool
	Rotation   Rotation

	win     *gocv.Window
	rotated gocv.Mat
	out     gocv.Mat
}

func NewWindow(name string, fullscreen bool, rotation Rotation) *Window {
	w := &Window{
		Name:       name,
		Fullscreen: fullscreen,
		Rotation:   rotation,
		win:        gocv.NewWindow(name),
		rotated:    gocv.NewMat(),
		out:        gocv.NewMat(),
	}
	if fullscreen {
		w.win.SetWindowProperty(gocv.WindowPropertyFullscreen, gocv.WindowFullscreen)
	}
	return w
}

// Show rotates the rendered RGB frame, converts it back to BGR and presents it.
func (w *Window) Show(f iface.Frame) error {
	mf, ok := f.(*MatFrame)
	if !ok {
		return fmt.Errorf("window %s cannot show %T", w.Name, f)
	}
	src := mf.RGB()
	if src.Empty() {
		return errors.New("frame not prepared")
	}
	if w.Rotation != RotateNone {
		if err := gocv.Rotate(src, &w.rotated, w.Rotation.flag()); err != nil {
			return fmt.Errorf("rotate frame: %w", err)
		}
		src = w.rotated
	}
	if err := gocv.CvtColor(src, &w.out, gocv.ColorRGBToBGR); err != nil {
		return fmt.Errorf("convert frame: %w", err)
	}
	if err := w.win.IMShow(w.out); err != nil {
		return fmt.Errorf("show frame in %s: %w", w.Name, err)
	}
	return nil
}

func (w *Window) PollKey() int {
	return w.win.WaitKey(1)
}

func (w *Window) Close() error {
	return errors.Join(w.rotated.Close(), w.out.Close(), w.win.Close())
}
