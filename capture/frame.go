package capture

import (
	"FaceOverlay/imagebuf"
	iface "FaceOverlay/interface"
	"FaceOverlay/overlay"
	"errors"
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// MatFrame owns the captured BGR Mat and the RGB Mat the engine sees. The
// ImageBuffer from Prepare aliases the RGB Mat, so drawing on either shows up
// in the other.
type MatFrame struct {
	bgr      gocv.Mat
	rgb      gocv.Mat
	renderer Renderer
	prepared bool
}

func NewMatFrame(bgr gocv.Mat, renderer Renderer) *MatFrame {
	return &MatFrame{bgr: bgr, rgb: gocv.NewMat(), renderer: renderer}
}

func (f *MatFrame) Prepare() (iface.ImageBuffer, error) {
	if err := gocv.CvtColor(f.bgr, &f.rgb, gocv.ColorBGRToRGB); err != nil {
		return iface.ImageBuffer{}, fmt.Errorf("convert frame: %w", err)
	}
	data, err := f.rgb.DataPtrUint8()
	if err != nil {
		return iface.ImageBuffer{}, fmt.Errorf("frame data: %w", err)
	}
	buf, err := imagebuf.Wrap(data, f.rgb.Cols(), f.rgb.Rows(), f.rgb.Step(), iface.FormatRGB888)
	if err != nil {
		return iface.ImageBuffer{}, err
	}
	f.prepared = true
	return buf, nil
}

func (f *MatFrame) Canvas(buf iface.ImageBuffer) iface.Canvas {
	if f.renderer == RendererBuffer {
		return overlay.NewBufferCanvas(buf)
	}
	return NewMatCanvas(&f.rgb, true)
}

// RGB returns the converted Mat. It is empty until Prepare succeeds.
func (f *MatFrame) RGB() gocv.Mat {
	return f.rgb
}

func (f *MatFrame) Snapshot(path string) error {
	if !f.prepared {
		return errors.New("snapshot before prepare")
	}
	out := gocv.NewMat()
	defer out.Close()
	if err := gocv.CvtColor(f.rgb, &out, gocv.ColorRGBToBGR); err != nil {
		return fmt.Errorf("convert snapshot: %w", err)
	}
	if ok := gocv.IMWrite(path, out); !ok {
		return fmt.Errorf("write snapshot %s", path)
	}
	return nil
}

func (f *MatFrame) Close() error {
	return errors.Join(f.bgr.Close(), f.rgb.Close())
}

// MatCanvas draws with OpenCV primitives. OpenCV treats colors as BGR, so
// swapRB is set when the Mat holds RGB pixels.
type MatCanvas struct {
	mat    *gocv.Mat
	swapRB bool
}

func NewMatCanvas(mat *gocv.Mat, swapRB bool) *MatCanvas {
	return &MatCanvas{mat: mat, swapRB: swapRB}
}

func (c *MatCanvas) color(col color.RGBA) color.RGBA {
	if c.swapRB {
		col.R, col.B = col.B, col.R
	}
	return col
}

func (c *MatCanvas) Rectangle(r image.Rectangle, col color.RGBA, thickness int) {
	gocv.Rectangle(c.mat, r, c.color(col), thickness)
}

// Text places the top-left corner of the string at at. PutText anchors on the
// baseline, so the origin moves down by the text height.
func (c *MatCanvas) Text(s string, at image.Point, col color.RGBA, scale float64) {
	size := gocv.GetTextSize(s, gocv.FontHersheySimplex, scale, 1)
	gocv.PutText(c.mat, s, image.Pt(at.X, at.Y+size.Y), gocv.FontHersheySimplex, scale, c.color(col), 1)
}

func (c *MatCanvas) Circle(center image.Point, radius int, col color.RGBA, thickness int) {
	gocv.Circle(c.mat, center, radius, c.color(col), thickness)
}
