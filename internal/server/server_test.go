package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/captionkit/internal/app"
	"github.com/example/captionkit/internal/notify"
	"github.com/example/captionkit/internal/search"
)

type fakeSearcher struct {
	err error
}

func (f fakeSearcher) Search(ctx context.Context, q string) ([]search.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []search.Result{
		{ID: 1, Medium: "m1", Large: "l1"},
		{ID: 2, Medium: "m2", Large: "l2"},
	}, nil
}

type fakePublisher struct {
	names []string
	err   error
}

func (f *fakePublisher) Publish(ctx context.Context, name string, data []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.names = append(f.names, name)
	return "mem://" + name, nil
}

const (
	bgURL     = "https://images.example.com/bg.png"
	brokenURL = "https://images.example.com/broken.png"
)

func loader(ctx context.Context, src string) (image.Image, error) {
	if src == brokenURL {
		return nil, errors.New("gone")
	}
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	img.Set(1, 1, color.Black)
	return img, nil
}

func newTestServer(t *testing.T, searcher search.Searcher, pub *fakePublisher) (*httptest.Server, *Sessions) {
	t.Helper()
	sessions := NewSessions(func(rec *notify.Recorder) *app.App {
		return app.New(app.Options{
			Searcher:   searcher,
			Loader:     app.LoaderFunc(loader),
			Notifier:   notify.New(notify.DefaultPreferences(), rec),
			RemoteOnly: true,
		})
	}, time.Minute)
	opts := Options{Sessions: sessions}
	if pub != nil {
		opts.Publisher = pub
	}
	srv := httptest.NewServer(NewRouter(opts))
	t.Cleanup(srv.Close)
	t.Cleanup(sessions.closeAll)
	return srv, sessions
}

func call(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var rdr *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(raw)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, rdr)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeSession(t *testing.T, resp *http.Response) SessionResponse {
	t.Helper()
	var out SessionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func decodeError(t *testing.T, resp *http.Response) APIError {
	t.Helper()
	var out APIError
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func createSession(t *testing.T, base string) string {
	t.Helper()
	resp := call(t, http.MethodPost, base+"/api/sessions", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	out := decodeSession(t, resp)
	require.NotEmpty(t, out.Session)
	assert.Equal(t, "search", out.View.Page)
	return base + "/api/sessions/" + out.Session
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, fakeSearcher{}, nil)
	resp := call(t, http.MethodGet, srv.URL+"/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCORSWithoutCredentials(t *testing.T) {
	srv, _ := newTestServer(t, fakeSearcher{}, nil)
	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/sessions", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://memes.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "https://memes.example.com", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Credentials"))
}

func TestAnnotateFlow(t *testing.T) {
	srv, _ := newTestServer(t, fakeSearcher{}, nil)
	sess := createSession(t, srv.URL)

	resp := call(t, http.MethodPost, sess+"/search", map[string]string{"query": "mango"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decodeSession(t, resp)
	require.NotNil(t, out.View.Search)
	assert.Len(t, out.View.Search.Results, 2)

	resp = call(t, http.MethodPost, sess+"/select", map[string]int{"index": 1})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out = decodeSession(t, resp)
	assert.Equal(t, "annotate", out.View.Page)
	require.NotNil(t, out.View.Image)
	assert.Equal(t, "l2", out.View.Image.URL)
	require.NotEmpty(t, out.Toasts)
	assert.Equal(t, "Image selected!", out.Toasts[0].Message)

	resp = call(t, http.MethodPost, sess+"/elements", map[string]string{"kind": "rectangle"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	out = decodeSession(t, resp)
	require.Len(t, out.View.Editor.Elements, 1)
	id := out.View.Editor.Elements[0].ID
	require.NotEmpty(t, out.Toasts)
	assert.Equal(t, "Rectangle added!", out.Toasts[len(out.Toasts)-1].Message)

	resp = call(t, http.MethodPost, sess+"/elements/"+id+"/select", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = call(t, http.MethodPut, sess+"/color", map[string]string{"color": "#ff0000"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out = decodeSession(t, resp)
	assert.Equal(t, "#ff0000", out.View.Editor.Elements[0].Fill)

	resp = call(t, http.MethodPut, sess+"/elements/"+id+"/position", map[string]float64{"x": 10, "y": 20})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out = decodeSession(t, resp)
	assert.Equal(t, 10.0, out.View.Editor.Elements[0].X)

	resp = call(t, http.MethodPut, sess+"/caption", map[string]string{"caption": "when the mango"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out = decodeSession(t, resp)
	assert.Equal(t, "when the mango", out.View.Editor.Caption)

	resp = call(t, http.MethodGet, sess+"/export", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `attachment; filename="image_with_elements.png"`, resp.Header.Get("Content-Disposition"))
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	img, err := png.Decode(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, image.Pt(2400, 1800), img.Bounds().Size())

	resp = call(t, http.MethodGet, sess, nil)
	out = decodeSession(t, resp)
	require.Len(t, out.Toasts, 1)
	assert.Equal(t, "Image downloaded!", out.Toasts[0].Message)
}

func TestRejectedResizeIs422(t *testing.T) {
	srv, _ := newTestServer(t, fakeSearcher{}, nil)
	sess := createSession(t, srv.URL)
	call(t, http.MethodPost, sess+"/select", map[string]string{"url": bgURL})
	out := decodeSession(t, call(t, http.MethodPost, sess+"/elements", map[string]string{"kind": "circle"}))
	id := out.View.Editor.Elements[0].ID
	call(t, http.MethodPost, sess+"/elements/"+id+"/select", nil)

	resp := call(t, http.MethodPut, sess+"/elements/"+id+"/bounds", map[string]float64{"x": 0, "y": 0, "width": 5, "height": 5})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "REJECTED", decodeError(t, resp).Code)

	resp = call(t, http.MethodPut, sess+"/elements/"+id+"/bounds", map[string]float64{"x": 0, "y": 0, "width": 200, "height": 100})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out = decodeSession(t, resp)
	assert.Equal(t, 2.0, out.View.Editor.Elements[0].ScaleX)
}

func TestUndoRestoresRemoved(t *testing.T) {
	srv, _ := newTestServer(t, fakeSearcher{}, nil)
	sess := createSession(t, srv.URL)
	call(t, http.MethodPost, sess+"/select", map[string]string{"url": bgURL})
	out := decodeSession(t, call(t, http.MethodPost, sess+"/elements", map[string]string{"kind": "text"}))
	id := out.View.Editor.Elements[0].ID

	out = decodeSession(t, call(t, http.MethodDelete, sess+"/elements/"+id, nil))
	assert.Empty(t, out.View.Editor.Elements)
	out = decodeSession(t, call(t, http.MethodPost, sess+"/undo", nil))
	require.Len(t, out.View.Editor.Elements, 1)
	assert.Equal(t, id, out.View.Editor.Elements[0].ID)
}

func TestErrorMapping(t *testing.T) {
	srv, _ := newTestServer(t, fakeSearcher{}, nil)
	sess := createSession(t, srv.URL)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{"empty query", http.MethodPost, "/search", map[string]string{"query": " "}, http.StatusBadRequest},
		{"bad body", http.MethodPost, "/search", "not an object", http.StatusBadRequest},
		{"wrong page", http.MethodPost, "/elements", map[string]string{"kind": "text"}, http.StatusConflict},
		{"no such result", http.MethodPost, "/select", map[string]int{"index": 7}, http.StatusNotFound},
		{"missing selection", http.MethodPost, "/select", map[string]string{}, http.StatusBadRequest},
		{"back on search page", http.MethodPost, "/back", nil, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := call(t, tt.method, sess+tt.path, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			apiErr := decodeError(t, resp)
			assert.NotEmpty(t, apiErr.Code)
			assert.NotEmpty(t, apiErr.Message)
		})
	}

	resp := call(t, http.MethodGet, srv.URL+"/api/sessions/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	call(t, http.MethodPost, sess+"/select", map[string]string{"url": bgURL})
	resp = call(t, http.MethodDelete, sess+"/elements/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp = call(t, http.MethodPost, sess+"/elements", map[string]string{"kind": "hexagon"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUpstreamErrors(t *testing.T) {
	tests := []struct {
		kind   search.Kind
		status int
		msg    string
	}{
		{search.KindAuth, http.StatusUnauthorized, search.MsgAuth},
		{search.KindRateLimit, http.StatusTooManyRequests, search.MsgRateLimit},
		{search.KindNetwork, http.StatusBadGateway, search.MsgNetwork},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			srv, _ := newTestServer(t, fakeSearcher{err: &search.Error{Kind: tt.kind, Err: errors.New("upstream")}}, nil)
			sess := createSession(t, srv.URL)
			resp := call(t, http.MethodPost, sess+"/search", map[string]string{"query": "mango"})
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.msg, decodeError(t, resp).Message)

			out := decodeSession(t, call(t, http.MethodGet, sess, nil))
			assert.Equal(t, tt.msg, out.View.Search.Error)
		})
	}
}

func TestPublish(t *testing.T) {
	pub := &fakePublisher{}
	srv, _ := newTestServer(t, fakeSearcher{}, pub)
	sess := createSession(t, srv.URL)
	call(t, http.MethodPost, sess+"/select", map[string]string{"url": bgURL})

	resp := call(t, http.MethodPost, sess+"/publish", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out PublishResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "mem://image_with_elements.png", out.Location)
	assert.Equal(t, []string{"image_with_elements.png"}, pub.names)

	pub.err = errors.New("bucket missing")
	resp = call(t, http.MethodPost, sess+"/publish", nil)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestPublishNotConfigured(t *testing.T) {
	srv, _ := newTestServer(t, fakeSearcher{}, nil)
	sess := createSession(t, srv.URL)
	call(t, http.MethodPost, sess+"/select", map[string]string{"url": bgURL})
	resp := call(t, http.MethodPost, sess+"/publish", nil)
	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)
}

func TestBackgroundFailureReturnsAlert(t *testing.T) {
	srv, sessions := newTestServer(t, fakeSearcher{}, nil)
	sess := createSession(t, srv.URL)
	first := decodeSession(t, call(t, http.MethodPost, sess+"/select", map[string]string{"url": brokenURL}))

	sid := sess[strings.LastIndex(sess, "/")+1:]
	s, err := sessions.Get(sid)
	require.NoError(t, err)
	require.Error(t, s.App().WaitBackground(context.Background()))

	out := decodeSession(t, call(t, http.MethodGet, sess, nil))
	var toasts []notify.Toast
	for _, toast := range append(first.Toasts, out.Toasts...) {
		if toast.Event == notify.EventLoad {
			toasts = append(toasts, toast)
		}
	}
	require.Len(t, toasts, 2)
	assert.Equal(t, notify.LevelAlert, toasts[0].Level)
	assert.Equal(t, notify.LoadAlert, out.View.Image.Error)
}

func TestSelectRejectsLocalSources(t *testing.T) {
	srv, _ := newTestServer(t, fakeSearcher{}, nil)
	sess := createSession(t, srv.URL)
	for _, src := range []string{"/etc/captionkit/private.png", "file:///tmp/private.png", "bg.png"} {
		resp := call(t, http.MethodPost, sess+"/select", map[string]string{"url": src})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, src)
		assert.Equal(t, "VALIDATION_ERROR", decodeError(t, resp).Code)
	}
	out := decodeSession(t, call(t, http.MethodGet, sess, nil))
	assert.Equal(t, "search", out.View.Page)
	assert.Nil(t, out.View.Image)
}

func TestBackAnnounces(t *testing.T) {
	srv, _ := newTestServer(t, fakeSearcher{}, nil)
	sess := createSession(t, srv.URL)
	call(t, http.MethodPost, sess+"/select", map[string]string{"url": bgURL})
	resp := call(t, http.MethodPost, sess+"/back", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decodeSession(t, resp)
	assert.Equal(t, "search", out.View.Page)
	require.NotEmpty(t, out.Toasts)
	assert.Equal(t, "Back to search page!", out.Toasts[len(out.Toasts)-1].Message)
}

func TestDeleteSession(t *testing.T) {
	srv, sessions := newTestServer(t, fakeSearcher{}, nil)
	sess := createSession(t, srv.URL)
	assert.Equal(t, 1, sessions.Len())
	resp := call(t, http.MethodDelete, sess, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, 0, sessions.Len())
	resp = call(t, http.MethodDelete, sess, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestExpireIdleSessions(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	sessions := NewSessions(func(rec *notify.Recorder) *app.App {
		return app.New(app.Options{Searcher: fakeSearcher{}, Loader: app.LoaderFunc(loader)})
	}, 10*time.Minute)
	sessions.now = func() time.Time { return now }

	idle := sessions.Create()
	busy := sessions.Create()
	now = now.Add(8 * time.Minute)
	_, err := sessions.Get(busy.ID())
	require.NoError(t, err)
	now = now.Add(5 * time.Minute)

	assert.Equal(t, 1, sessions.Expire())
	_, err = sessions.Get(idle.ID())
	assert.ErrorIs(t, err, ErrUnknownSession)
	_, err = sessions.Get(busy.ID())
	assert.NoError(t, err)
}

func TestSweepStopsWithContext(t *testing.T) {
	sessions := NewSessions(func(rec *notify.Recorder) *app.App {
		return app.New(app.Options{Searcher: fakeSearcher{}})
	}, time.Minute)
	sessions.Create()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sessions.Sweep(ctx, time.Millisecond)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop")
	}
	assert.Equal(t, 0, sessions.Len())
}
