// Package editor holds the annotation state for one image: the ordered
// overlay elements, the selection, the active colour and the caption.
package editor

import (
	"errors"
	"fmt"
	"image"
	"slices"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/example/captionkit/internal/typeface"
)

var (
	ErrUnknownElement = errors.New("unknown element")
	ErrUnknownKind    = errors.New("unknown element kind")
	ErrInvalidColor   = errors.New("invalid colour")
	ErrNotText        = errors.New("element is not text")
	ErrNotSelected    = errors.New("element is not selected")
	ErrBelowMinimum   = errors.New("bounding box below minimum size")
	ErrNotDraggable   = errors.New("element is not draggable")
)

const (
	DefaultColor       = "#ffffff"
	DefaultPlaceholder = "Add your caption here!"
	DefaultMinSize     = 20
	historyLimit       = 100
)

// State is the editor state for one annotation session. It is safe for
// concurrent use; every mutation replaces the element slice wholesale so a
// Snapshot stays valid after later edits.
type State struct {
	mu sync.Mutex

	elements    []Element
	selected    string
	color       string
	caption     string
	placeholder string
	background  image.Image
	minSize     float64
	history     [][]Element

	newID   func() string
	measure Measurer
}

// Option modifies a State during creation.
type Option func(*State)

// WithColor sets the initial active colour. Invalid colours are ignored.
func WithColor(c string) Option {
	return func(s *State) {
		if _, err := ParseColor(c); err == nil {
			s.color = normalizeColor(c)
		}
	}
}

// WithPlaceholder sets the caption placeholder, which is also the initial caption.
func WithPlaceholder(p string) Option {
	return func(s *State) {
		if strings.TrimSpace(p) != "" {
			s.placeholder = p
		}
	}
}

// WithMinSize sets the smallest width and height the transform handle accepts.
func WithMinSize(px float64) Option {
	return func(s *State) {
		if px > 0 {
			s.minSize = px
		}
	}
}

// WithBackground sets the background bitmap.
func WithBackground(img image.Image) Option { return func(s *State) { s.background = img } }

// WithIDSource replaces the element id generator.
func WithIDSource(fn func() string) Option { return func(s *State) { s.newID = fn } }

// WithMeasurer replaces the text measurer used for text bounding boxes.
func WithMeasurer(m Measurer) Option { return func(s *State) { s.measure = m } }

// New creates an empty editor.
func New(opts ...Option) *State {
	s := &State{
		color:       DefaultColor,
		placeholder: DefaultPlaceholder,
		minSize:     DefaultMinSize,
		newID:       func() string { return ulid.Make().String() },
		measure:     MeasureText,
	}
	for _, o := range opts {
		o(s)
	}
	s.caption = s.placeholder
	return s
}

// MeasureText measures text with the bundled font.
func MeasureText(text string, size float64) (float64, float64) {
	w, h, _, err := typeface.Measure(text, size)
	if err != nil {
		return 0, 0
	}
	return float64(w), float64(h)
}

// Snapshot is an immutable view of the editor.
type Snapshot struct {
	Elements    []Element
	Selected    string
	Color       string
	Caption     string
	Placeholder string
	Background  image.Image
	CanUndo     bool
}

// DrawOrder returns shapes in insertion order followed by text in insertion
// order, which is the bottom-to-top paint order.
func (s Snapshot) DrawOrder() []Element {
	out := make([]Element, 0, len(s.Elements))
	for _, el := range s.Elements {
		if el.Kind != KindText {
			out = append(out, el)
		}
	}
	for _, el := range s.Elements {
		if el.Kind == KindText {
			out = append(out, el)
		}
	}
	return out
}

// SelectedElement returns the selected element, if any.
func (s Snapshot) SelectedElement() (Element, bool) {
	if s.Selected == "" {
		return Element{}, false
	}
	for _, el := range s.Elements {
		if el.ID == s.Selected {
			return el, true
		}
	}
	return Element{}, false
}

// Snapshot returns the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Elements:    slices.Clone(s.elements),
		Selected:    s.selected,
		Color:       s.color,
		Caption:     s.caption,
		Placeholder: s.placeholder,
		Background:  s.background,
		CanUndo:     len(s.history) > 0,
	}
}

// Measurer returns the text measurer in use.
func (s *State) Measurer() Measurer { return s.measure }

// Elements returns the elements in insertion order.
func (s *State) Elements() []Element {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.elements)
}

// Element looks up an element by id.
func (s *State) Element(id string) (Element, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(id)
	if i < 0 {
		return Element{}, false
	}
	return s.elements[i], true
}

// Color returns the active colour.
func (s *State) Color() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.color
}

// Selected returns the selected element id.
func (s *State) Selected() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected, s.selected != ""
}

// Add appends a new element of kind with its defaults and the active colour.
func (s *State) Add(kind Kind) (Element, error) {
	kind, err := ParseKind(string(kind))
	if err != nil {
		return Element{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	el := newElement(kind, s.newID(), s.color)
	next := make([]Element, len(s.elements), len(s.elements)+1)
	copy(next, s.elements)
	s.commitLocked(append(next, el))
	return el, nil
}

// Select selects id and adopts its fill as the active colour.
func (s *State) Select(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownElement, id)
	}
	s.selected = id
	s.color = s.elements[i].Fill
	return nil
}

// Deselect clears the selection. The active colour is left as is.
func (s *State) Deselect() {
	s.mu.Lock()
	s.selected = ""
	s.mu.Unlock()
}

// SetColor changes the active colour and, when an element is selected, its fill.
func (s *State) SetColor(c string) error {
	if _, err := ParseColor(c); err != nil {
		return err
	}
	c = normalizeColor(c)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.color = c
	if s.selected == "" {
		return nil
	}
	return s.updateLocked(s.selected, func(el *Element) error {
		el.Fill = c
		return nil
	})
}

// Move commits a drag-end position.
func (s *State) Move(id string, x, y float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateLocked(id, func(el *Element) error {
		if !el.Draggable {
			return fmt.Errorf("%w: %s", ErrNotDraggable, id)
		}
		el.X, el.Y = x, y
		return nil
	})
}

// EditText replaces the content of a text element. Blank input leaves the
// text unchanged and reports false.
func (s *State) EditText(id, text string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(id)
	if i < 0 {
		return false, fmt.Errorf("%w: %s", ErrUnknownElement, id)
	}
	if s.elements[i].Kind != KindText {
		return false, fmt.Errorf("%w: %s", ErrNotText, id)
	}
	if strings.TrimSpace(text) == "" || text == s.elements[i].Text {
		return false, nil
	}
	err := s.updateLocked(id, func(el *Element) error {
		el.Text = text
		return nil
	})
	return err == nil, err
}

// Transform applies a box from the transform handle to the selected
// element. Boxes narrower or shorter than the minimum size are rejected
// and the element keeps its previous bounds.
func (s *State) Transform(id string, box Box) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected != id {
		return fmt.Errorf("%w: %s", ErrNotSelected, id)
	}
	if box.Width < s.minSize || box.Height < s.minSize {
		return fmt.Errorf("%w: %.0fx%.0f < %.0fx%.0f", ErrBelowMinimum, box.Width, box.Height, s.minSize, s.minSize)
	}
	measure := s.measure
	return s.updateLocked(id, func(el *Element) error {
		w, h := el.BaseSize(measure)
		if w <= 0 || h <= 0 {
			return fmt.Errorf("element %s has no measurable size", id)
		}
		el.ScaleX = box.Width / w
		el.ScaleY = box.Height / h
		el.Rotation = box.Rotation
		el.X, el.Y = box.X, box.Y
		if el.Centered() {
			el.X += box.Width / 2
			el.Y += box.Height / 2
		}
		return nil
	})
}

// Remove deletes an element, clearing the selection if it pointed at it.
func (s *State) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexLocked(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownElement, id)
	}
	s.commitLocked(slices.Delete(slices.Clone(s.elements), i, i+1))
	return nil
}

// Undo restores the element list as it was before the last mutation.
func (s *State) Undo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.history)
	if n == 0 {
		return false
	}
	s.elements = s.history[n-1]
	s.history = s.history[:n-1]
	s.fixSelectionLocked()
	return true
}

// Caption returns the caption text.
func (s *State) Caption() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.caption
}

// SetCaption replaces the caption text verbatim.
func (s *State) SetCaption(c string) {
	s.mu.Lock()
	s.caption = c
	s.mu.Unlock()
}

// FocusCaption clears the caption when it still holds the placeholder.
func (s *State) FocusCaption() {
	s.mu.Lock()
	if s.caption == s.placeholder {
		s.caption = ""
	}
	s.mu.Unlock()
}

// BlurCaption restores the placeholder when the caption is blank.
func (s *State) BlurCaption() {
	s.mu.Lock()
	if strings.TrimSpace(s.caption) == "" {
		s.caption = s.placeholder
	}
	s.mu.Unlock()
}

// SetBackground replaces the background bitmap; nil clears it.
func (s *State) SetBackground(img image.Image) {
	s.mu.Lock()
	s.background = img
	s.mu.Unlock()
}

// Background returns the background bitmap, or nil.
func (s *State) Background() image.Image {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.background
}

func (s *State) indexLocked(id string) int {
	return slices.IndexFunc(s.elements, func(el Element) bool { return el.ID == id })
}

func (s *State) updateLocked(id string, fn func(*Element) error) error {
	i := s.indexLocked(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownElement, id)
	}
	el := s.elements[i]
	if err := fn(&el); err != nil {
		return err
	}
	next := slices.Clone(s.elements)
	next[i] = el
	s.commitLocked(next)
	return nil
}

func (s *State) commitLocked(next []Element) {
	s.history = append(s.history, s.elements)
	if len(s.history) > historyLimit {
		s.history = slices.Delete(s.history, 0, len(s.history)-historyLimit)
	}
	s.elements = next
	s.fixSelectionLocked()
}

func (s *State) fixSelectionLocked() {
	if s.selected != "" && s.indexLocked(s.selected) < 0 {
		s.selected = ""
	}
}
