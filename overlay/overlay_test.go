package overlay

import (
	iface "FaceOverlay/interface"
	"fmt"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingCanvas struct {
	ops []string
}

func (r *recordingCanvas) Rectangle(rect image.Rectangle, c color.RGBA, thickness int) {
	r.ops = append(r.ops, fmt.Sprintf("rect %v", rect))
}

func (r *recordingCanvas) Text(s string, at image.Point, c color.RGBA, scale float64) {
	r.ops = append(r.ops, fmt.Sprintf("text %s %v", s, at))
}

func (r *recordingCanvas) Circle(center image.Point, radius int, c color.RGBA, thickness int) {
	r.ops = append(r.ops, fmt.Sprintf("circle %v", center))
}

func face(l, t, r, b float32, score float32) iface.DetectedFace {
	f := iface.DetectedFace{Box: iface.Box{Left: l, Top: t, Right: r, Bottom: b}, Score: score}
	for i := range f.Landmarks {
		f.Landmarks[i] = iface.Point{X: l + float32(i), Y: t + float32(i)}
	}
	return f
}

func TestRenderer_DrawOrder(t *testing.T) {
	var res iface.DetectionResult
	res.Add(face(10, 10, 50, 60, 0.93))
	res.Add(face(70, 5, 90, 30, 0.93))

	c := &recordingCanvas{}
	NewRenderer(DefaultStyle()).Draw(c, &res)

	expected := []string{
		"rect (10,10)-(50,60)",
		"text 0.93 (10,10)",
		"circle (10,10)", "circle (11,11)", "circle (12,12)", "circle (13,13)", "circle (14,14)",
		"rect (70,5)-(90,30)",
		"text 0.93 (70,5)",
		"circle (70,5)", "circle (71,6)", "circle (72,7)", "circle (73,8)", "circle (74,9)",
	}
	assert.Equal(t, expected, c.ops)
}

func TestRenderer_EmptyResult(t *testing.T) {
	c := &recordingCanvas{}
	NewRenderer(DefaultStyle()).Draw(c, &iface.DetectionResult{})
	assert.Empty(t, c.ops)
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "0.93", Label(0.93))
	assert.Equal(t, "1.00", Label(0.999))
	assert.Equal(t, "0.05", Label(0.05))
}

func newBuffer(w, h, stride int) iface.ImageBuffer {
	return iface.ImageBuffer{
		Width: w, Height: h, WidthStride: stride, HeightStride: h,
		Format: iface.FormatRGB888, Data: make([]byte, h*stride), Size: h * stride,
	}
}

func TestBufferCanvas_Rectangle(t *testing.T) {
	buf := newBuffer(100, 80, 100*3+8)
	NewBufferCanvas(buf).Rectangle(image.Rect(10, 10, 50, 60), ColorGreen, 3)

	for _, p := range []image.Point{{10, 30}, {50, 30}, {30, 10}, {30, 60}, {9, 30}, {51, 30}} {
		assert.Equal(t, ColorGreen, Pixel(buf, p.X, p.Y), "edge pixel %v", p)
	}
	for _, p := range []image.Point{{30, 35}, {12, 30}, {7, 30}, {53, 30}} {
		assert.NotEqual(t, ColorGreen, Pixel(buf, p.X, p.Y), "pixel %v", p)
	}
	// row padding stays untouched
	for y := 0; y < buf.Height; y++ {
		assert.Equal(t, make([]byte, 8), buf.Data[y*buf.WidthStride+300:(y+1)*buf.WidthStride])
	}
}

func TestBufferCanvas_Clipping(t *testing.T) {
	buf := newBuffer(20, 20, 60)
	c := NewBufferCanvas(buf)
	require.NotPanics(t, func() {
		c.Rectangle(image.Rect(-10, -10, 40, 40), ColorGreen, 3)
		c.Circle(image.Pt(-1, 19), 2, ColorOrange, -1)
		c.Text("0.93", image.Pt(15, 15), ColorRed, 1)
	})
	assert.Equal(t, ColorOrange, Pixel(buf, 0, 19))
}

func TestBufferCanvas_FilledCircle(t *testing.T) {
	buf := newBuffer(20, 20, 60)
	NewBufferCanvas(buf).Circle(image.Pt(10, 10), 2, ColorOrange, -1)
	assert.Equal(t, ColorOrange, Pixel(buf, 10, 10))
	assert.Equal(t, ColorOrange, Pixel(buf, 12, 10))
	assert.Equal(t, ColorOrange, Pixel(buf, 11, 11))
	assert.NotEqual(t, ColorOrange, Pixel(buf, 12, 12))
	assert.NotEqual(t, ColorOrange, Pixel(buf, 13, 10))
}

func TestBufferCanvas_Ring(t *testing.T) {
	buf := newBuffer(24, 24, 72)
	NewBufferCanvas(buf).Circle(image.Pt(10, 10), 5, ColorOrange, 2)
	for _, p := range []image.Point{{15, 10}, {13, 10}, {5, 10}, {10, 15}, {10, 5}} {
		assert.Equal(t, ColorOrange, Pixel(buf, p.X, p.Y), "ring pixel %v", p)
	}
	for _, p := range []image.Point{{10, 10}, {12, 10}, {10, 12}, {17, 10}} {
		assert.NotEqual(t, ColorOrange, Pixel(buf, p.X, p.Y), "pixel %v", p)
	}
}

func TestBufferCanvas_FilledRectangle(t *testing.T) {
	buf := newBuffer(10, 10, 30)
	NewBufferCanvas(buf).Rectangle(image.Rect(2, 2, 5, 5), ColorGreen, -1)
	assert.Equal(t, ColorGreen, Pixel(buf, 2, 2))
	assert.Equal(t, ColorGreen, Pixel(buf, 3, 3))
	assert.Equal(t, ColorGreen, Pixel(buf, 5, 5))
	assert.NotEqual(t, ColorGreen, Pixel(buf, 6, 6))
	assert.NotEqual(t, ColorGreen, Pixel(buf, 1, 3))
}

func TestBufferCanvas_Text(t *testing.T) {
	buf := newBuffer(60, 30, 180)
	NewBufferCanvas(buf).Text("0.93", image.Pt(5, 5), ColorRed, 1)

	red := 0
	for y := 0; y < buf.Height; y++ {
		for x := 0; x < buf.Width; x++ {
			if Pixel(buf, x, y) == ColorRed {
				red++
				assert.True(t, x >= 5 && x < 5+4*7 && y >= 5 && y < 5+13, "glyph pixel %d,%d outside label", x, y)
			}
		}
	}
	assert.Greater(t, red, 0)
}

func TestBufferCanvas_BGROrder(t *testing.T) {
	buf := newBuffer(4, 4, 12)
	buf.Format = iface.FormatBGR888
	NewBufferCanvas(buf).Circle(image.Pt(1, 1), 0, ColorRed, -1)
	off := buf.Offset(1, 1)
	assert.Equal(t, []byte{0, 0, 255}, buf.Data[off:off+3])
}
