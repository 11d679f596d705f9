package preview

import (
	"image"
	"image/draw"

	xdraw "golang.org/x/image/draw"

	"github.com/example/captionkit/internal/theme"
)

const checkerSize = 8

// Frame paints img letterboxed into dst over the theme backdrop, with a
// checkerboard behind the canvas so transparent areas stay visible.
func Frame(dst *image.RGBA, img image.Image, t *theme.Theme) image.Rectangle {
	if t == nil {
		t = theme.Default()
	}
	draw.Draw(dst, dst.Bounds(), image.NewUniform(t.Window), image.Point{}, draw.Src)
	if img == nil || img.Bounds().Empty() {
		return image.Rectangle{}
	}
	r := Fit(img.Bounds().Size(), dst.Bounds())
	drawChecker(dst, r, t)
	xdraw.ApproxBiLinear.Scale(dst, r, img, img.Bounds(), draw.Over, nil)
	return r
}

// Fit returns the largest rectangle with the aspect ratio of src that fits
// centred in area, never scaling above 1.
func Fit(src image.Point, area image.Rectangle) image.Rectangle {
	if src.X <= 0 || src.Y <= 0 || area.Empty() {
		return image.Rectangle{}
	}
	scale := 1.0
	if sx := float64(area.Dx()) / float64(src.X); sx < scale {
		scale = sx
	}
	if sy := float64(area.Dy()) / float64(src.Y); sy < scale {
		scale = sy
	}
	w := int(float64(src.X) * scale)
	h := int(float64(src.Y) * scale)
	x := area.Min.X + (area.Dx()-w)/2
	y := area.Min.Y + (area.Dy()-h)/2
	return image.Rect(x, y, x+w, y+h)
}

func drawChecker(dst *image.RGBA, r image.Rectangle, t *theme.Theme) {
	light, dark := image.NewUniform(t.CheckerLight), image.NewUniform(t.CheckerDark)
	for y := r.Min.Y; y < r.Max.Y; y += checkerSize {
		for x := r.Min.X; x < r.Max.X; x += checkerSize {
			src := light
			if ((x-r.Min.X)/checkerSize+(y-r.Min.Y)/checkerSize)%2 == 1 {
				src = dark
			}
			cell := image.Rect(x, y, x+checkerSize, y+checkerSize).Intersect(r)
			draw.Draw(dst, cell, src, image.Point{}, draw.Src)
		}
	}
}
