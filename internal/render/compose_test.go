package render

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"sync"
	"testing"

	"github.com/example/captionkit/internal/editor"
)

func newState(t *testing.T, opts ...editor.Option) *editor.State {
	t.Helper()
	n := 0
	opts = append([]editor.Option{editor.WithIDSource(func() string {
		n++
		return "el-" + string(rune('0'+n))
	})}, opts...)
	return editor.New(opts...)
}

func TestComposeExportSize(t *testing.T) {
	img, err := Compose(newState(t).Snapshot(), DefaultOptions())
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if got, want := img.Bounds().Size(), image.Pt(2400, 1800); got != want {
		t.Fatalf("size %v, want %v", got, want)
	}
}

func TestComposeRejectsEmptyCanvas(t *testing.T) {
	opts := DefaultOptions()
	opts.Width = 0
	if _, err := Compose(newState(t).Snapshot(), opts); err == nil {
		t.Fatal("expected error for zero width")
	}
}

func TestComposeBannerAndTransparency(t *testing.T) {
	img, err := Compose(newState(t).Snapshot(), DefaultOptions())
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if got := img.RGBAAt(5, 140); got != (color.RGBA{0x1a, 0x1a, 0x1a, 0xff}) {
		t.Fatalf("banner pixel %v", got)
	}
	if got := img.RGBAAt(1200, 1500); got.A != 0 {
		t.Fatalf("expected transparent canvas without background, got %v", got)
	}
}

func TestComposeCaptionDrawn(t *testing.T) {
	img, err := Compose(newState(t).Snapshot(), DefaultOptions())
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	white := 0
	for y := 0; y < 150; y++ {
		for x := 0; x < img.Bounds().Dx(); x++ {
			if c := img.RGBAAt(x, y); c.R > 0xc0 && c.G > 0xc0 && c.B > 0xc0 {
				white++
			}
		}
	}
	if white == 0 {
		t.Fatal("expected caption pixels inside the banner")
	}
}

func TestComposeBackgroundScaled(t *testing.T) {
	bg := image.NewRGBA(image.Rect(0, 0, 4, 3))
	blue := color.RGBA{0, 0, 0xff, 0xff}
	draw.Draw(bg, bg.Bounds(), image.NewUniform(blue), image.Point{}, draw.Src)
	s := newState(t, editor.WithBackground(bg))
	img, err := Compose(s.Snapshot(), DefaultOptions())
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if got := img.RGBAAt(1200, 1500); got != blue {
		t.Fatalf("background pixel %v, want %v", got, blue)
	}
}

func TestComposeRectangleAtPixelRatio(t *testing.T) {
	s := newState(t, editor.WithColor("#ff0000"))
	if _, err := s.Add(editor.KindRectangle); err != nil {
		t.Fatalf("add: %v", err)
	}
	img, err := Compose(s.Snapshot(), DefaultOptions())
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	red := color.RGBA{0xff, 0, 0, 0xff}
	if got := img.RGBAAt(600, 600); got != red {
		t.Fatalf("inside rect %v, want %v", got, red)
	}
	if got := img.RGBAAt(440, 600); got.A != 0 {
		t.Fatalf("left of rect %v, want transparent", got)
	}
	if got := img.RGBAAt(760, 600); got.A != 0 {
		t.Fatalf("right of rect %v, want transparent", got)
	}
}

func TestComposeCircleCentred(t *testing.T) {
	s := newState(t, editor.WithColor("#00ff00"))
	if _, err := s.Add(editor.KindCircle); err != nil {
		t.Fatalf("add: %v", err)
	}
	img, err := Compose(s.Snapshot(), DefaultOptions())
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if got := img.RGBAAt(450, 450); got.G != 0xff {
		t.Fatalf("circle centre %v", got)
	}
	// The bounding box corner lies outside the circle.
	if got := img.RGBAAt(305, 305); got.A != 0 {
		t.Fatalf("circle box corner %v, want transparent", got)
	}
}

func TestComposeTextAboveShapes(t *testing.T) {
	s := newState(t)
	txt, err := s.Add(editor.KindText)
	if err != nil {
		t.Fatalf("add text: %v", err)
	}
	if err := s.Select(txt.ID); err != nil {
		t.Fatalf("select: %v", err)
	}
	if err := s.SetColor("#00ff00"); err != nil {
		t.Fatalf("colour: %v", err)
	}
	if err := s.Move(txt.ID, 160, 160); err != nil {
		t.Fatalf("move: %v", err)
	}
	s.Deselect()
	if err := s.SetColor("#ff0000"); err != nil {
		t.Fatalf("colour: %v", err)
	}
	if _, err := s.Add(editor.KindRectangle); err != nil {
		t.Fatalf("add rect: %v", err)
	}
	img, err := Compose(s.Snapshot(), DefaultOptions())
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	green := 0
	for y := 450; y < 750; y++ {
		for x := 450; x < 750; x++ {
			if c := img.RGBAAt(x, y); c.G > 0xc0 && c.R < 0x40 {
				green++
			}
		}
	}
	if green == 0 {
		t.Fatal("text added before the rectangle should still paint above it")
	}
}

func TestComposeConcurrentSessions(t *testing.T) {
	const workers = 4
	states := make([]*editor.State, workers)
	for i := range states {
		states[i] = newState(t, editor.WithPlaceholder("when the mango is ripe"))
		if _, err := states[i].Add(editor.KindText); err != nil {
			t.Fatalf("add text: %v", err)
		}
	}
	ref, err := Compose(states[0].Snapshot(), DefaultOptions())
	if err != nil {
		t.Fatalf("compose: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for _, s := range states {
		wg.Add(1)
		go func(s *editor.State) {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				img, err := Compose(s.Snapshot(), DefaultOptions())
				if err != nil {
					errs <- err
					return
				}
				if !bytes.Equal(img.Pix, ref.Pix) {
					errs <- errors.New("concurrent compose produced different pixels")
					return
				}
			}
		}(s)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestComposeRotatedRectangle(t *testing.T) {
	s := newState(t, editor.WithColor("#ff0000"))
	el, err := s.Add(editor.KindRectangle)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.Select(el.ID); err != nil {
		t.Fatalf("select: %v", err)
	}
	if err := s.Transform(el.ID, editor.Box{X: 150, Y: 150, Width: 100, Height: 100, Rotation: 90}); err != nil {
		t.Fatalf("transform: %v", err)
	}
	img, err := Compose(s.Snapshot(), DefaultOptions())
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	// Rotating 90 degrees about the top-left corner swings the square to the left.
	if got := img.RGBAAt(300, 600); got.R != 0xff {
		t.Fatalf("rotated pixel %v", got)
	}
	if got := img.RGBAAt(600, 600); got.A != 0 {
		t.Fatalf("original position %v, want transparent", got)
	}
}

func TestComposeHandleOnlyWhenRequested(t *testing.T) {
	s := newState(t)
	el, err := s.Add(editor.KindRectangle)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.Select(el.ID); err != nil {
		t.Fatalf("select: %v", err)
	}
	opts := DefaultOptions()
	plain, err := Compose(s.Snapshot(), opts)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if got := plain.RGBAAt(446, 446); got.A != 0 {
		t.Fatalf("export should not carry a handle, got %v", got)
	}
	style := DefaultHandleStyle()
	opts.Handle = &style
	withHandle, err := Compose(s.Snapshot(), opts)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if got := withHandle.RGBAAt(446, 446); got.A == 0 {
		t.Fatal("expected handle knob at the rectangle corner")
	}
}

func TestEncodePNGRoundTrip(t *testing.T) {
	opts := DefaultOptions()
	opts.PixelRatio = 1
	img, err := Compose(newState(t).Snapshot(), opts)
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	var buf bytes.Buffer
	if err := EncodePNG(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Bounds().Size() != image.Pt(800, 600) {
		t.Fatalf("decoded size %v", got.Bounds().Size())
	}
}
