package editor

import (
	"fmt"
	"strings"
)

// Kind discriminates the element variants.
type Kind string

const (
	KindText      Kind = "text"
	KindRectangle Kind = "rectangle"
	KindCircle    Kind = "circle"
	KindTriangle  Kind = "triangle"
	KindPolygon   Kind = "polygon"
)

// Kinds lists every kind in toolbar order.
func Kinds() []Kind {
	return []Kind{KindText, KindRectangle, KindCircle, KindTriangle, KindPolygon}
}

// ParseKind maps a user supplied name onto a Kind. "rect" is accepted as an
// alias for rectangle.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindText, KindRectangle, KindCircle, KindTriangle, KindPolygon:
		return k, nil
	case "rect":
		return KindRectangle, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Label returns the capitalised kind name used in confirmations.
func (k Kind) Label() string {
	if k == "" {
		return ""
	}
	return strings.ToUpper(string(k[:1])) + string(k[1:])
}

// Element is a single overlay on the canvas. Which of the variant fields are
// meaningful depends on Kind: Text and FontSize for text, Width and Height
// for rectangles, Radius for circles, Radius and Sides for triangles and
// polygons.
//
// Rectangles and text are anchored at their top-left corner; circles and
// polygons at their centre. Elements are values: State never mutates an
// element that has been handed out.
type Element struct {
	ID        string  `json:"id"`
	Kind      Kind    `json:"type"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Fill      string  `json:"fill"`
	Draggable bool    `json:"draggable"`

	Text     string  `json:"text,omitempty"`
	FontSize float64 `json:"fontSize,omitempty"`
	Width    float64 `json:"width,omitempty"`
	Height   float64 `json:"height,omitempty"`
	Radius   float64 `json:"radius,omitempty"`
	Sides    int     `json:"sides,omitempty"`

	ScaleX   float64 `json:"scaleX"`
	ScaleY   float64 `json:"scaleY"`
	Rotation float64 `json:"rotation"`
}

// Box is an axis-aligned bounding box in canvas coordinates plus the
// rotation, in degrees, applied around the element's anchor.
type Box struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Rotation float64 `json:"rotation"`
}

// Measurer reports the unscaled size of a text run.
type Measurer func(text string, size float64) (width, height float64)

const (
	defaultText     = "New Text"
	defaultFontSize = 30
	defaultRadius   = 50
	defaultSide     = 100
)

func newElement(kind Kind, id, fill string) Element {
	el := Element{ID: id, Kind: kind, Fill: fill, Draggable: true, ScaleX: 1, ScaleY: 1}
	switch kind {
	case KindText:
		el.X, el.Y = 100, 100
		el.Text = defaultText
		el.FontSize = defaultFontSize
	case KindRectangle:
		el.X, el.Y = 150, 150
		el.Width, el.Height = defaultSide, defaultSide
	case KindCircle:
		el.X, el.Y = 150, 150
		el.Radius = defaultRadius
	case KindTriangle:
		el.X, el.Y = 150, 150
		el.Radius = defaultRadius
		el.Sides = 3
	case KindPolygon:
		el.X, el.Y = 150, 150
		el.Radius = defaultRadius
		el.Sides = 5
	}
	return el
}

// Centered reports whether the element is anchored at its centre.
func (e Element) Centered() bool {
	switch e.Kind {
	case KindCircle, KindTriangle, KindPolygon:
		return true
	}
	return false
}

// BaseSize is the element's size before scaling.
func (e Element) BaseSize(measure Measurer) (w, h float64) {
	switch e.Kind {
	case KindText:
		if measure == nil {
			return 0, 0
		}
		return measure(e.Text, e.FontSize)
	case KindRectangle:
		return e.Width, e.Height
	default:
		return 2 * e.Radius, 2 * e.Radius
	}
}

// Bounds returns the scaled bounding box of the element.
func (e Element) Bounds(measure Measurer) Box {
	w, h := e.BaseSize(measure)
	w *= e.ScaleX
	h *= e.ScaleY
	b := Box{X: e.X, Y: e.Y, Width: w, Height: h, Rotation: e.Rotation}
	if e.Centered() {
		b.X -= w / 2
		b.Y -= h / 2
	}
	return b
}
