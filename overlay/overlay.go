// Package overlay draws detection results onto a frame in place.
package overlay

import (
	iface "FaceOverlay/interface"
	"fmt"
	"image"
	"image/color"
)

var (
	ColorGreen  = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	ColorRed    = color.RGBA{R: 255, G: 0, B: 0, A: 255}
	ColorOrange = color.RGBA{R: 255, G: 165, B: 0, A: 255}
)

type Style struct {
	BoxColor          color.RGBA
	BoxThickness      int
	LabelColor        color.RGBA
	LabelScale        float64
	LandmarkColor     color.RGBA
	LandmarkRadius    int
	LandmarkThickness int // negative fills the marker
}

func DefaultStyle() Style {
	return Style{
		BoxColor:          ColorGreen,
		BoxThickness:      3,
		LabelColor:        ColorRed,
		LabelScale:        0.6,
		LandmarkColor:     ColorOrange,
		LandmarkRadius:    2,
		LandmarkThickness: -1,
	}
}

type Renderer struct {
	style Style
}

func NewRenderer(style Style) *Renderer {
	return &Renderer{style: style}
}

// Draw renders every face of res in order: rectangle, then score label at the
// box's top-left corner, then the landmark markers. Bounds are left to the canvas.
func (r *Renderer) Draw(c iface.Canvas, res *iface.DetectionResult) {
	for _, f := range res.Slice() {
		box := f.Box.Rect()
		c.Rectangle(box, r.style.BoxColor, r.style.BoxThickness)
		c.Text(Label(f.Score), box.Min, r.style.LabelColor, r.style.LabelScale)
		for _, p := range f.Landmarks {
			c.Circle(image.Pt(int(p.X), int(p.Y)), r.style.LandmarkRadius, r.style.LandmarkColor, r.style.LandmarkThickness)
		}
	}
}

// Label formats a confidence score the way it is printed on the frame.
func Label(score float32) string {
	return fmt.Sprintf("%.2f", score)
}
