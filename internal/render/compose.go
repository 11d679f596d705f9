// Package render flattens an editor snapshot into a raster image.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/example/captionkit/internal/editor"
	"github.com/example/captionkit/internal/typeface"
)

// Filename is the name exported composites are saved under.
const Filename = "image_with_elements.png"

// Options controls the canvas geometry and the banner styling.
type Options struct {
	Width        int
	Height       int
	PixelRatio   float64
	BannerHeight int
	Banner       color.RGBA
	CaptionColor color.RGBA
	CaptionSize  float64
	CaptionTop   int
	// Handle, when set, draws the transform handle around the selected
	// element. Exports leave it nil.
	Handle *HandleStyle
}

// DefaultOptions returns the 800x600 canvas exported at three times its size.
func DefaultOptions() Options {
	return Options{
		Width:        800,
		Height:       600,
		PixelRatio:   3,
		BannerHeight: 50,
		Banner:       color.RGBA{0x1a, 0x1a, 0x1a, 0xff},
		CaptionColor: color.RGBA{0xff, 0xff, 0xff, 0xff},
		CaptionSize:  30,
		CaptionTop:   10,
	}
}

func (o Options) ratio() float64 {
	if o.PixelRatio <= 0 {
		return 1
	}
	return o.PixelRatio
}

// Size returns the pixel dimensions of a composite rendered with o.
func (o Options) Size() image.Point {
	r := o.ratio()
	return image.Pt(int(math.Round(float64(o.Width)*r)), int(math.Round(float64(o.Height)*r)))
}

// Compose paints background, banner, caption, shapes and then text into a
// new image. Without a background the canvas is left transparent.
func Compose(snap editor.Snapshot, opts Options) (*image.RGBA, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("invalid canvas size %dx%d", opts.Width, opts.Height)
	}
	r := opts.ratio()
	size := opts.Size()
	dst := image.NewRGBA(image.Rect(0, 0, size.X, size.Y))

	if bg := snap.Background; bg != nil && !bg.Bounds().Empty() {
		xdraw.CatmullRom.Scale(dst, dst.Bounds(), bg, bg.Bounds(), draw.Over, nil)
	}

	banner := image.Rect(0, 0, size.X, int(math.Round(float64(opts.BannerHeight)*r)))
	draw.Draw(dst, banner, image.NewUniform(opts.Banner), image.Point{}, draw.Over)
	if snap.Caption != "" && opts.CaptionSize > 0 {
		top := int(math.Round(float64(opts.CaptionTop) * r))
		if err := typeface.DrawCentered(dst, 0, top, size.X, snap.Caption, opts.CaptionColor, opts.CaptionSize*r); err != nil {
			return nil, fmt.Errorf("draw caption: %w", err)
		}
	}

	for _, el := range snap.DrawOrder() {
		if err := drawElement(dst, el, r); err != nil {
			return nil, fmt.Errorf("draw %s %s: %w", el.Kind, el.ID, err)
		}
	}

	if opts.Handle != nil {
		if el, ok := snap.SelectedElement(); ok {
			drawHandle(dst, el, r, *opts.Handle)
		}
	}
	return dst, nil
}

// EncodePNG writes img as PNG.
func EncodePNG(w io.Writer, img image.Image) error {
	return png.Encode(w, img)
}

func drawElement(dst *image.RGBA, el editor.Element, r float64) error {
	fill := image.NewUniform(editor.MustColor(el.Fill))
	tr := transformOf(el, r)
	switch el.Kind {
	case editor.KindRectangle:
		fillPath(dst, fill, rectPath(tr, el.Width, el.Height))
	case editor.KindCircle:
		fillPath(dst, fill, ellipsePath(tr, el.Radius))
	case editor.KindTriangle, editor.KindPolygon:
		fillPath(dst, fill, regularPolygonPath(tr, el.Sides, el.Radius))
	case editor.KindText:
		return drawText(dst, el, fill, tr)
	default:
		return fmt.Errorf("unsupported kind %q", el.Kind)
	}
	return nil
}

func drawText(dst *image.RGBA, el editor.Element, fill *image.Uniform, tr transform) error {
	size := el.FontSize * tr.ratio
	if tr.identity() {
		return typeface.Draw(dst, int(math.Round(tr.ox)), int(math.Round(tr.oy)), el.Text, fill.C, size)
	}
	w, h, _, err := typeface.Measure(el.Text, size)
	if err != nil {
		return err
	}
	if w <= 0 || h <= 0 {
		return nil
	}
	tmp := image.NewRGBA(image.Rect(0, 0, w, h))
	if err := typeface.Draw(tmp, 0, 0, el.Text, fill.C, size); err != nil {
		return err
	}
	// The glyphs were rasterised at the pixel ratio already, so only
	// rotation and scale remain.
	cos, sin := tr.cos, tr.sin
	m := f64.Aff3{
		cos * tr.sx, -sin * tr.sy, tr.ox,
		sin * tr.sx, cos * tr.sy, tr.oy,
	}
	xdraw.BiLinear.Transform(dst, m, tmp, tmp.Bounds(), xdraw.Over, nil)
	return nil
}
