// Package preview shows the current composite in a desktop window.
package preview

import (
	"image"

	"github.com/sirupsen/logrus"
	"golang.org/x/exp/shiny/driver"
	"golang.org/x/exp/shiny/screen"
	"golang.org/x/mobile/event/key"
	"golang.org/x/mobile/event/lifecycle"
	"golang.org/x/mobile/event/paint"
	"golang.org/x/mobile/event/size"

	"github.com/example/captionkit/internal/theme"
)

// Source produces the image to display.
type Source func() (*image.RGBA, error)

// Window is a read-only viewer over a Source.
type Window struct {
	source  Source
	title   string
	theme   *theme.Theme
	updates <-chan struct{}
}

// Option configures a Window.
type Option func(*Window)

// WithTheme sets the backdrop colours.
func WithTheme(t *theme.Theme) Option {
	return func(w *Window) {
		if t != nil {
			w.theme = t
		}
	}
}

// WithTitle sets the window title.
func WithTitle(title string) Option { return func(w *Window) { w.title = title } }

// WithUpdates repaints whenever a value arrives on ch.
func WithUpdates(ch <-chan struct{}) Option { return func(w *Window) { w.updates = ch } }

// New creates a Window.
func New(src Source, opts ...Option) *Window {
	w := &Window{source: src, title: "captionkit preview", theme: theme.Default()}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Run opens the window and blocks until it is closed or Escape is pressed.
func (w *Window) Run() { driver.Main(w.Main) }

// Main is the shiny entry point.
func (w *Window) Main(s screen.Screen) {
	img, err := w.source()
	if err != nil {
		logrus.WithError(err).Error("preview source")
		return
	}
	width, height := img.Bounds().Dx(), img.Bounds().Dy()
	win, err := s.NewWindow(&screen.NewWindowOptions{Width: width, Height: height, Title: w.title})
	if err != nil {
		logrus.WithError(err).Error("preview window")
		return
	}
	defer win.Release()

	if w.updates != nil {
		done := make(chan struct{})
		defer close(done)
		go func() {
			for {
				select {
				case _, ok := <-w.updates:
					if !ok {
						return
					}
					win.Send(paint.Event{})
				case <-done:
					return
				}
			}
		}()
	}

	for {
		switch e := win.NextEvent().(type) {
		case lifecycle.Event:
			if e.To == lifecycle.StageDead {
				return
			}
		case key.Event:
			if e.Direction == key.DirPress && (e.Code == key.CodeEscape || e.Rune == 'q') {
				return
			}
		case size.Event:
			width, height = e.WidthPx, e.HeightPx
			win.Send(paint.Event{})
		case paint.Event:
			if next, err := w.source(); err == nil {
				img = next
			} else {
				logrus.WithError(err).Debug("preview refresh")
			}
			w.paint(s, win, img, image.Pt(width, height))
		}
	}
}

func (w *Window) paint(s screen.Screen, win screen.Window, img *image.RGBA, sz image.Point) {
	if sz.X <= 0 || sz.Y <= 0 {
		return
	}
	b, err := s.NewBuffer(sz)
	if err != nil {
		logrus.WithError(err).Error("preview buffer")
		return
	}
	defer b.Release()
	Frame(b.RGBA(), img, w.theme)
	win.Upload(image.Point{}, b, b.Bounds())
	win.Publish()
}
