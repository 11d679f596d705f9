package render

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/example/captionkit/internal/editor"
)

// HandleStyle describes the transform handle drawn in previews.
type HandleStyle struct {
	Color     color.RGBA
	Fill      color.RGBA
	Thickness int
	// Knob is the side length, in pixels, of the square drawn at each corner.
	Knob int
}

// DefaultHandleStyle matches the look of a canvas transformer.
func DefaultHandleStyle() HandleStyle {
	return HandleStyle{
		Color:     color.RGBA{0x00, 0xa1, 0xff, 0xff},
		Fill:      color.RGBA{0xff, 0xff, 0xff, 0xff},
		Thickness: 1,
		Knob:      8,
	}
}

func drawHandle(dst *image.RGBA, el editor.Element, r float64, style HandleStyle) {
	w, h := el.BaseSize(editor.MeasureText)
	tr := transformOf(el, r)
	var corners [4]point
	if el.Centered() {
		corners = [4]point{tr.apply(-w/2, -h/2), tr.apply(w/2, -h/2), tr.apply(w/2, h/2), tr.apply(-w/2, h/2)}
	} else {
		corners = [4]point{tr.apply(0, 0), tr.apply(w, 0), tr.apply(w, h), tr.apply(0, h)}
	}
	thick := style.Thickness
	if thick < 1 {
		thick = 1
	}
	for i := range corners {
		a, b := corners[i], corners[(i+1)%len(corners)]
		drawLine(dst, round(a.x), round(a.y), round(b.x), round(b.y), style.Color, thick)
	}
	if style.Knob <= 0 {
		return
	}
	half := style.Knob / 2
	for _, c := range corners {
		knob := image.Rect(round(c.x)-half, round(c.y)-half, round(c.x)+half, round(c.y)+half)
		draw.Draw(dst, knob.Intersect(dst.Bounds()), image.NewUniform(style.Fill), image.Point{}, draw.Src)
		drawLine(dst, knob.Min.X, knob.Min.Y, knob.Max.X, knob.Min.Y, style.Color, 1)
		drawLine(dst, knob.Max.X, knob.Min.Y, knob.Max.X, knob.Max.Y, style.Color, 1)
		drawLine(dst, knob.Max.X, knob.Max.Y, knob.Min.X, knob.Max.Y, style.Color, 1)
		drawLine(dst, knob.Min.X, knob.Max.Y, knob.Min.X, knob.Min.Y, style.Color, 1)
	}
}

func round(v float64) int { return int(math.Round(v)) }

func setThickPixel(img *image.RGBA, x, y, thick int, col color.Color) {
	r := thick / 2
	for dx := -r; dx <= r; dx++ {
		for dy := -r; dy <= r; dy++ {
			if p := image.Pt(x+dx, y+dy); p.In(img.Bounds()) {
				img.Set(p.X, p.Y, col)
			}
		}
	}
}

// drawLine is Bresenham with a square brush.
func drawLine(img *image.RGBA, x0, y0, x1, y1 int, col color.Color, thick int) {
	dx := math.Abs(float64(x1 - x0))
	dy := math.Abs(float64(y1 - y0))
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx - dy
	for {
		setThickPixel(img, x0, y0, thick, col)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x0 += sx
		}
		if e2 < dx {
			err += dx
			y0 += sy
		}
	}
}
