// Package theme holds the colours used for the caption banner, the
// selection handle and the preview backdrop.
package theme

import (
	"image/color"

	"github.com/example/captionkit/internal/render"
)

// Theme is a named colour palette.
type Theme struct {
	Name string

	// Banner strip and caption text.
	Banner  color.RGBA
	Caption color.RGBA

	// Selection handle outline and knob fill.
	Handle     color.RGBA
	HandleKnob color.RGBA

	// Preview window backdrop; the checkerboard shows through a canvas
	// without a background.
	Window       color.RGBA
	CheckerLight color.RGBA
	CheckerDark  color.RGBA
}

// Default returns the built in palette.
func Default() *Theme {
	return &Theme{
		Name:         "default",
		Banner:       color.RGBA{0x1a, 0x1a, 0x1a, 0xff},
		Caption:      color.RGBA{0xff, 0xff, 0xff, 0xff},
		Handle:       color.RGBA{0x00, 0xa1, 0xff, 0xff},
		HandleKnob:   color.RGBA{0xff, 0xff, 0xff, 0xff},
		Window:       color.RGBA{48, 48, 48, 255},
		CheckerLight: color.RGBA{220, 220, 220, 255},
		CheckerDark:  color.RGBA{192, 192, 192, 255},
	}
}

// RenderOptions applies the banner and handle colours to base.
func (t *Theme) RenderOptions(base render.Options) render.Options {
	if t == nil {
		return base
	}
	base.Banner = t.Banner
	base.CaptionColor = t.Caption
	style := render.DefaultHandleStyle()
	if base.Handle != nil {
		style = *base.Handle
	}
	style.Color = t.Handle
	style.Fill = t.HandleKnob
	base.Handle = &style
	return base
}
