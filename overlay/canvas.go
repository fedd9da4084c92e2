package overlay

import (
	iface "FaceOverlay/interface"
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"
)

// BufferCanvas draws straight into an ImageBuffer's memory, honouring its row
// stride. Pixels outside the image are skipped. Text uses a fixed 7x13 face and
// ignores the scale argument.
type BufferCanvas struct {
	img bufferImage
}

func NewBufferCanvas(buf iface.ImageBuffer) *BufferCanvas {
	return &BufferCanvas{img: bufferImage{buf: buf}}
}

// Rectangle strokes r with the stroke centered on its edges. A negative
// thickness fills it.
func (c *BufferCanvas) Rectangle(r image.Rectangle, col color.RGBA, thickness int) {
	r = r.Canon()
	if thickness < 0 {
		outer := image.Rect(r.Min.X, r.Min.Y, r.Max.X+1, r.Max.Y+1)
		c.fill(outer, col, func(z *vector.Rasterizer, o image.Point) {
			rectPath(z, outer.Sub(o), false)
		})
		return
	}
	if thickness == 0 {
		thickness = 1
	}
	lo := -(thickness / 2)
	hi := lo + thickness - 1
	outer := image.Rect(r.Min.X+lo, r.Min.Y+lo, r.Max.X+hi+1, r.Max.Y+hi+1)
	inner := image.Rect(r.Min.X+hi+1, r.Min.Y+hi+1, r.Max.X+lo, r.Max.Y+lo)
	c.fill(outer, col, func(z *vector.Rasterizer, o image.Point) {
		rectPath(z, outer.Sub(o), false)
		if inner.Min.X < inner.Max.X && inner.Min.Y < inner.Max.Y {
			rectPath(z, inner.Sub(o), true)
		}
	})
}

// Text places the top-left corner of the string at at.
func (c *BufferCanvas) Text(s string, at image.Point, col color.RGBA, _ float64) {
	face := basicfont.Face7x13
	d := font.Drawer{
		Dst:  c.img,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.P(at.X, at.Y+face.Ascent),
	}
	d.DrawString(s)
}

// Circle fills a disc for a negative thickness, otherwise it strokes a ring
// inward from radius.
func (c *BufferCanvas) Circle(center image.Point, radius int, col color.RGBA, thickness int) {
	cx, cy := float32(center.X)+0.5, float32(center.Y)+0.5
	outer := float32(radius) + 0.5
	inner := float32(-1)
	if thickness >= 0 && radius-thickness > 0 {
		inner = float32(radius-thickness) - 0.5
	}
	bounds := image.Rect(center.X-radius-1, center.Y-radius-1, center.X+radius+2, center.Y+radius+2)
	c.fill(bounds, col, func(z *vector.Rasterizer, o image.Point) {
		ox, oy := cx-float32(o.X), cy-float32(o.Y)
		circlePath(z, ox, oy, outer, false)
		if inner > 0 {
			circlePath(z, ox, oy, inner, true)
		}
	})
}

// fill rasterizes the path built by path over bounds, clipped to the image,
// and paints every pixel at least half covered with col. path receives the
// origin of the rasterizer in image coordinates.
func (c *BufferCanvas) fill(bounds image.Rectangle, col color.RGBA, path func(z *vector.Rasterizer, origin image.Point)) {
	r := bounds.Intersect(c.img.Bounds())
	if r.Empty() {
		return
	}
	z := vector.NewRasterizer(r.Dx(), r.Dy())
	path(z, r.Min)
	mask := image.NewAlpha(image.Rect(0, 0, r.Dx(), r.Dy()))
	z.Draw(mask, mask.Bounds(), image.Opaque, image.Point{})
	// hard edges, as the OpenCV primitives draw them
	for i, a := range mask.Pix {
		if a >= 0x80 {
			mask.Pix[i] = 0xff
		} else {
			mask.Pix[i] = 0
		}
	}
	draw.DrawMask(c.img, r, image.NewUniform(col), image.Point{}, mask, image.Point{}, draw.Over)
}

// rectPath adds r as a closed subpath. A reversed subpath cuts a hole.
func rectPath(z *vector.Rasterizer, r image.Rectangle, reverse bool) {
	x0, y0, x1, y1 := float32(r.Min.X), float32(r.Min.Y), float32(r.Max.X), float32(r.Max.Y)
	z.MoveTo(x0, y0)
	if reverse {
		z.LineTo(x0, y1)
		z.LineTo(x1, y1)
		z.LineTo(x1, y0)
	} else {
		z.LineTo(x1, y0)
		z.LineTo(x1, y1)
		z.LineTo(x0, y1)
	}
	z.ClosePath()
}

// circlePath adds a circle made of four cubic arcs.
func circlePath(z *vector.Rasterizer, cx, cy, rad float32, reverse bool) {
	k := 0.5522847 * rad
	z.MoveTo(cx+rad, cy)
	if reverse {
		z.CubeTo(cx+rad, cy-k, cx+k, cy-rad, cx, cy-rad)
		z.CubeTo(cx-k, cy-rad, cx-rad, cy-k, cx-rad, cy)
		z.CubeTo(cx-rad, cy+k, cx-k, cy+rad, cx, cy+rad)
		z.CubeTo(cx+k, cy+rad, cx+rad, cy+k, cx+rad, cy)
	} else {
		z.CubeTo(cx+rad, cy+k, cx+k, cy+rad, cx, cy+rad)
		z.CubeTo(cx-k, cy+rad, cx-rad, cy+k, cx-rad, cy)
		z.CubeTo(cx-rad, cy-k, cx-k, cy-rad, cx, cy-rad)
		z.CubeTo(cx+k, cy-rad, cx+rad, cy-k, cx+rad, cy)
	}
	z.ClosePath()
}

// bufferImage exposes an ImageBuffer as a draw.Image for the shape and glyph
// compositing.
type bufferImage struct {
	buf iface.ImageBuffer
}

func (b bufferImage) ColorModel() color.Model { return color.RGBAModel }

func (b bufferImage) Bounds() image.Rectangle { return b.buf.Bounds() }

func (b bufferImage) At(x, y int) color.Color {
	off := b.buf.Offset(x, y)
	if off < 0 {
		return color.RGBA{}
	}
	p := b.buf.Data[off:]
	switch b.buf.Format {
	case iface.FormatRGB888:
		return color.RGBA{R: p[0], G: p[1], B: p[2], A: 255}
	case iface.FormatBGR888:
		return color.RGBA{R: p[2], G: p[1], B: p[0], A: 255}
	case iface.FormatRGBA8888:
		return color.RGBA{R: p[0], G: p[1], B: p[2], A: p[3]}
	case iface.FormatGray8:
		return color.Gray{Y: p[0]}
	}
	return color.RGBA{}
}

func (b bufferImage) Set(x, y int, c color.Color) {
	b.setRGBA(x, y, color.RGBAModel.Convert(c).(color.RGBA))
}

func (b bufferImage) setRGBA(x, y int, c color.RGBA) {
	off := b.buf.Offset(x, y)
	if off < 0 {
		return
	}
	p := b.buf.Data[off:]
	switch b.buf.Format {
	case iface.FormatRGB888:
		p[0], p[1], p[2] = c.R, c.G, c.B
	case iface.FormatBGR888:
		p[0], p[1], p[2] = c.B, c.G, c.R
	case iface.FormatRGBA8888:
		p[0], p[1], p[2], p[3] = c.R, c.G, c.B, c.A
	case iface.FormatGray8:
		p[0] = color.GrayModel.Convert(c).(color.Gray).Y
	}
}

// Pixel reads back one pixel of buf, for inspection and tests.
func Pixel(buf iface.ImageBuffer, x, y int) color.RGBA {
	return color.RGBAModel.Convert(bufferImage{buf: buf}.At(x, y)).(color.RGBA)
}
