// Package app ties the search screen and the annotation editor together
// and moves between the two pages.
package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net/url"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/example/captionkit/internal/editor"
	"github.com/example/captionkit/internal/notify"
	"github.com/example/captionkit/internal/render"
	"github.com/example/captionkit/internal/search"
)

var (
	ErrWrongPage = errors.New("not available on this page")
	ErrNoResult  = errors.New("no such search result")
	ErrEmptyURL  = errors.New("empty image url")
	// ErrLocalSource rejects a path or non-http URL when only remote
	// images may be opened.
	ErrLocalSource = errors.New("only http and https image urls are allowed")
)

// Page is one of the two screens.
type Page int

const (
	PageSearch Page = iota
	PageAnnotate
)

func (p Page) String() string {
	if p == PageAnnotate {
		return "annotate"
	}
	return "search"
}

// AssetLoadError reports a background image that could not be loaded.
type AssetLoadError struct {
	URL string
	Err error
}

func (e *AssetLoadError) Error() string { return fmt.Sprintf("load background %s: %v", e.URL, e.Err) }

func (e *AssetLoadError) Unwrap() error { return e.Err }

// Options configures an App.
type Options struct {
	Searcher search.Searcher
	Loader   Loader
	Notifier *notify.Notifier
	Editor   []editor.Option
	Render   render.Options
	// Filename is the name exports are offered under.
	Filename string
	// RemoteOnly limits SelectURL to http and https URLs.
	RemoteOnly bool
}

type backgroundLoad struct {
	gen    uint64
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// App is one user's session: either the search page or the annotation
// page for a single image.
type App struct {
	searcher   search.Searcher
	loader     Loader
	notifier   *notify.Notifier
	editorOpts []editor.Option
	renderOpts render.Options
	filename   string
	remoteOnly bool

	mu     sync.Mutex
	page   Page
	screen *search.Screen
	editor *editor.State
	image  *ImageView
	load   *backgroundLoad
	gen    uint64
	closed bool
}

// New creates an App on the search page.
func New(opts Options) *App {
	a := &App{
		searcher:   opts.Searcher,
		loader:     opts.Loader,
		notifier:   opts.Notifier,
		editorOpts: opts.Editor,
		renderOpts: opts.Render,
		filename:   opts.Filename,
		remoteOnly: opts.RemoteOnly,
	}
	if a.loader == nil {
		a.loader = NewHTTPLoader(0)
	}
	if a.renderOpts.Width == 0 {
		a.renderOpts = render.DefaultOptions()
	}
	if a.filename == "" {
		a.filename = render.Filename
	}
	a.screen = search.NewScreen(a.searcher)
	return a
}

// Page returns the current page.
func (a *App) Page() Page {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.page
}

// Filename is the export filename.
func (a *App) Filename() string { return a.filename }

// Search submits query on the search page.
func (a *App) Search(ctx context.Context, query string) ([]search.Result, error) {
	a.mu.Lock()
	if a.page != PageSearch {
		a.mu.Unlock()
		return nil, fmt.Errorf("search: %w", ErrWrongPage)
	}
	screen := a.screen
	a.mu.Unlock()
	return screen.Submit(ctx, query)
}

// SearchView returns the search page state.
func (a *App) SearchView() (search.View, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.page != PageSearch {
		return search.View{}, fmt.Errorf("results: %w", ErrWrongPage)
	}
	return a.screen.View(), nil
}

// SelectResult opens the large rendition of result i for annotation.
func (a *App) SelectResult(i int) error {
	a.mu.Lock()
	if a.page != PageSearch {
		a.mu.Unlock()
		return fmt.Errorf("select: %w", ErrWrongPage)
	}
	r, ok := a.screen.Result(i)
	if !ok {
		a.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrNoResult, i)
	}
	a.openLocked(r.Large, &r)
	a.mu.Unlock()
	a.notifier.Selected()
	return nil
}

// SelectURL opens an arbitrary image URL or path for annotation.
func (a *App) SelectURL(src string) error {
	src = strings.TrimSpace(src)
	if src == "" {
		return ErrEmptyURL
	}
	if a.remoteOnly && !IsRemote(src) {
		return fmt.Errorf("%w: %s", ErrLocalSource, src)
	}
	a.mu.Lock()
	if a.page != PageSearch {
		a.mu.Unlock()
		return fmt.Errorf("open: %w", ErrWrongPage)
	}
	a.openLocked(src, nil)
	a.mu.Unlock()
	a.notifier.Selected()
	return nil
}

func (a *App) openLocked(src string, r *search.Result) {
	a.screen.Close()
	a.page = PageAnnotate
	a.editor = editor.New(a.editorOpts...)
	a.image = &ImageView{URL: src, Loading: true}
	if r != nil {
		a.image.Alt = r.Alt
		a.image.Photographer = r.Photographer
		a.image.PageURL = r.PageURL
	}
	a.gen++
	ctx, cancel := context.WithCancel(context.Background())
	ld := &backgroundLoad{gen: a.gen, cancel: cancel, done: make(chan struct{})}
	a.load = ld
	go a.runLoad(ctx, ld, a.editor, src)
}

// IsRemote reports whether src is an http or https URL.
func IsRemote(src string) bool {
	u, err := url.Parse(src)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func (a *App) runLoad(ctx context.Context, ld *backgroundLoad, ed *editor.State, src string) {
	defer close(ld.done)
	defer ld.cancel()
	img, err := a.loader.Load(ctx, src)

	a.mu.Lock()
	if a.closed || a.gen != ld.gen {
		a.mu.Unlock()
		logrus.WithField("url", src).Debug("dropping background load for a closed page")
		return
	}
	a.image.Loading = false
	if err != nil {
		ld.err = &AssetLoadError{URL: src, Err: err}
		a.image.Error = notify.LoadAlert
		a.mu.Unlock()
		logrus.WithError(err).WithField("url", src).Warn("background load failed")
		a.notifier.LoadFailed()
		return
	}
	ed.SetBackground(img)
	a.image.Loaded = true
	a.mu.Unlock()
}

// WaitBackground blocks until the current background load finishes and
// returns its *AssetLoadError, if any.
func (a *App) WaitBackground(ctx context.Context) error {
	a.mu.Lock()
	ld := a.load
	a.mu.Unlock()
	if ld == nil {
		return fmt.Errorf("wait: %w", ErrWrongPage)
	}
	select {
	case <-ld.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return ld.err
}

// Back discards the editor and returns to a fresh search page.
func (a *App) Back() error {
	a.mu.Lock()
	if a.page != PageAnnotate {
		a.mu.Unlock()
		return fmt.Errorf("back: %w", ErrWrongPage)
	}
	a.dropAnnotateLocked()
	a.page = PageSearch
	a.screen = search.NewScreen(a.searcher)
	a.mu.Unlock()
	a.notifier.Returned()
	return nil
}

func (a *App) dropAnnotateLocked() {
	if a.load != nil {
		a.load.cancel()
		a.load = nil
	}
	a.gen++
	a.editor = nil
	a.image = nil
}

// Close cancels any outstanding request. The App is unusable afterwards.
func (a *App) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	a.dropAnnotateLocked()
	a.screen.Close()
}

// Editor returns the annotation editor.
func (a *App) Editor() (*editor.State, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.page != PageAnnotate || a.editor == nil {
		return nil, fmt.Errorf("edit: %w", ErrWrongPage)
	}
	return a.editor, nil
}

// AddElement adds an element of kind and announces it.
func (a *App) AddElement(kind editor.Kind) (editor.Element, error) {
	ed, err := a.Editor()
	if err != nil {
		return editor.Element{}, err
	}
	el, err := ed.Add(kind)
	if err != nil {
		return editor.Element{}, err
	}
	a.notifier.Added(el.Kind.Label())
	return el, nil
}

// Composite flattens the editor at the export pixel ratio. When handle is
// set the transform handle of the selected element is drawn too.
func (a *App) Composite(handle bool) (*image.RGBA, error) {
	return a.composite(handle, a.renderOpts.PixelRatio)
}

// Preview flattens the editor at canvas size with the transform handle.
func (a *App) Preview() (*image.RGBA, error) {
	return a.composite(true, 1)
}

func (a *App) composite(handle bool, ratio float64) (*image.RGBA, error) {
	ed, err := a.Editor()
	if err != nil {
		return nil, err
	}
	opts := a.renderOpts
	opts.PixelRatio = ratio
	if !handle {
		opts.Handle = nil
	} else if opts.Handle == nil {
		style := render.DefaultHandleStyle()
		opts.Handle = &style
	}
	return render.Compose(ed.Snapshot(), opts)
}

// Export writes the flattened PNG to w and returns the filename it should
// be saved under.
func (a *App) Export(w io.Writer) (string, error) {
	img, err := a.Composite(false)
	if err != nil {
		if !errors.Is(err, ErrWrongPage) {
			a.notifier.Failed("Failed to export image.")
		}
		return "", err
	}
	if err := render.EncodePNG(w, img); err != nil {
		a.notifier.Failed("Failed to export image.")
		return "", fmt.Errorf("encode png: %w", err)
	}
	a.notifier.Exported(a.filename)
	return a.filename, nil
}

// ImageView describes the background being annotated.
type ImageView struct {
	URL          string `json:"url"`
	Alt          string `json:"alt,omitempty"`
	Photographer string `json:"photographer,omitempty"`
	PageURL      string `json:"pageUrl,omitempty"`
	Loading      bool   `json:"loading"`
	Loaded       bool   `json:"loaded"`
	Error        string `json:"error,omitempty"`
}

// EditorView is the serialisable editor state.
type EditorView struct {
	Elements    []editor.Element `json:"elements"`
	Selected    string           `json:"selected,omitempty"`
	Color       string           `json:"color"`
	Caption     string           `json:"caption"`
	Placeholder string           `json:"placeholder"`
	CanUndo     bool             `json:"canUndo"`
	Width       int              `json:"width"`
	Height      int              `json:"height"`
}

// View is a snapshot of the whole session.
type View struct {
	Page   string       `json:"page"`
	Search *search.View `json:"search,omitempty"`
	Image  *ImageView   `json:"image,omitempty"`
	Editor *EditorView  `json:"editor,omitempty"`
}

// View returns the current session state.
func (a *App) View() View {
	a.mu.Lock()
	defer a.mu.Unlock()
	v := View{Page: a.page.String()}
	if a.page == PageSearch {
		sv := a.screen.View()
		v.Search = &sv
		return v
	}
	if a.image != nil {
		img := *a.image
		v.Image = &img
	}
	if a.editor != nil {
		snap := a.editor.Snapshot()
		elements := snap.Elements
		if elements == nil {
			elements = []editor.Element{}
		}
		v.Editor = &EditorView{
			Elements:    elements,
			Selected:    snap.Selected,
			Color:       snap.Color,
			Caption:     snap.Caption,
			Placeholder: snap.Placeholder,
			CanUndo:     snap.CanUndo,
			Width:       a.renderOpts.Width,
			Height:      a.renderOpts.Height,
		}
	}
	return v
}
