// Package typeface owns the font faces used for captions and text elements.
package typeface

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

var (
	parseOnce sync.Once
	parsed    *opentype.Font
	parseErr  error

	faces sync.Map // map[float64]*sharedFace
)

// sharedFace guards a cached face. opentype faces reuse glyph buffers, so
// every use must hold mu.
type sharedFace struct {
	mu   sync.Mutex
	face font.Face
}

func regular() (*opentype.Font, error) {
	parseOnce.Do(func() {
		parsed, parseErr = opentype.Parse(goregular.TTF)
	})
	return parsed, parseErr
}

// cachedFace returns the Go Regular face at size points (72 DPI, so points
// equal pixels). Faces are cached per size.
func cachedFace(size float64) (*sharedFace, error) {
	if size <= 0 || math.IsNaN(size) || math.IsInf(size, 0) {
		return nil, fmt.Errorf("invalid font size %v", size)
	}
	// Quantise so a stream of fractional sizes does not grow the cache unbounded.
	size = math.Round(size*4) / 4
	if sf, ok := faces.Load(size); ok {
		return sf.(*sharedFace), nil
	}
	f, err := regular()
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return nil, err
	}
	actual, _ := faces.LoadOrStore(size, &sharedFace{face: face})
	return actual.(*sharedFace), nil
}

// with runs fn with exclusive use of the face at size.
func with(size float64, fn func(face font.Face)) error {
	sf, err := cachedFace(size)
	if err != nil {
		return err
	}
	sf.mu.Lock()
	defer sf.mu.Unlock()
	fn(sf.face)
	return nil
}

// Measure returns the bounding box of text rendered at size. baseline is the
// offset from the top of the box to the text baseline.
func Measure(text string, size float64) (width, height, baseline int, err error) {
	err = with(size, func(face font.Face) {
		width = (&font.Drawer{Face: face}).MeasureString(text).Ceil()
		metrics := face.Metrics()
		baseline = metrics.Ascent.Ceil()
		height = baseline + metrics.Descent.Ceil()
	})
	return width, height, baseline, err
}

// Draw renders text with the top-left corner of its box at (x, y).
func Draw(dst draw.Image, x, y int, text string, col color.Color, size float64) error {
	return with(size, func(face font.Face) {
		drawer := &font.Drawer{
			Dst:  dst,
			Src:  image.NewUniform(col),
			Face: face,
			Dot:  fixed.P(x, y+face.Metrics().Ascent.Ceil()),
		}
		drawer.DrawString(text)
	})
}

// DrawCentered renders text horizontally centred inside a span of width
// pixels starting at x, with the top of the text box at y.
func DrawCentered(dst draw.Image, x, y, width int, text string, col color.Color, size float64) error {
	w, _, _, err := Measure(text, size)
	if err != nil {
		return err
	}
	return Draw(dst, x+(width-w)/2, y, text, col, size)
}
