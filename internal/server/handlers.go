package server

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"

	"github.com/example/captionkit/internal/app"
	"github.com/example/captionkit/internal/editor"
	"github.com/example/captionkit/internal/notify"
	"github.com/example/captionkit/internal/publish"
)

// SessionResponse is returned by every session endpoint.
type SessionResponse struct {
	Session string         `json:"session"`
	View    app.View       `json:"view"`
	Toasts  []notify.Toast `json:"toasts"`
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, sess *Session) error

func withSession(sessions *Sessions, h sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sid := chi.URLParam(r, "sid")
		sess, err := sessions.Get(sid)
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: %s", err, sid))
			return
		}
		if err := h(w, r, sess); err != nil {
			writeError(w, r, err)
		}
	}
}

func respond(w http.ResponseWriter, r *http.Request, sess *Session) {
	toasts := sess.toasts.Drain()
	if toasts == nil {
		toasts = []notify.Toast{}
	}
	render.JSON(w, r, SessionResponse{Session: sess.id, View: sess.app.View(), Toasts: toasts})
}

// mutate runs fn for requests that change state and answers with the view.
func mutate(sessions *Sessions, fn func(r *http.Request, sess *Session) error) http.HandlerFunc {
	return withSession(sessions, func(w http.ResponseWriter, r *http.Request, sess *Session) error {
		if err := fn(r, sess); err != nil {
			return err
		}
		respond(w, r, sess)
		return nil
	})
}

func decode(r *http.Request, v any) error {
	if err := render.DecodeJSON(r.Body, v); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	return nil
}

func editorOf(sess *Session) (*editor.State, error) {
	return sess.app.Editor()
}

func HandleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]string{"status": "ok"})
	}
}

func HandleCreateSession(sessions *Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := sessions.Create()
		render.Status(r, http.StatusCreated)
		respond(w, r, sess)
	}
}

func HandleGetSession(sessions *Sessions) http.HandlerFunc {
	return withSession(sessions, func(w http.ResponseWriter, r *http.Request, sess *Session) error {
		respond(w, r, sess)
		return nil
	})
}

func HandleDeleteSession(sessions *Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sid := chi.URLParam(r, "sid")
		if err := sessions.Delete(sid); err != nil {
			writeError(w, r, fmt.Errorf("%w: %s", err, sid))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type searchRequest struct {
	Query string `json:"query"`
}

func HandleSearch(sessions *Sessions) http.HandlerFunc {
	return mutate(sessions, func(r *http.Request, sess *Session) error {
		var req searchRequest
		if err := decode(r, &req); err != nil {
			return err
		}
		_, err := sess.app.Search(r.Context(), req.Query)
		return err
	})
}

type selectRequest struct {
	Index *int   `json:"index"`
	URL   string `json:"url"`
}

func HandleSelect(sessions *Sessions) http.HandlerFunc {
	return mutate(sessions, func(r *http.Request, sess *Session) error {
		var req selectRequest
		if err := decode(r, &req); err != nil {
			return err
		}
		switch {
		case req.Index != nil:
			return sess.app.SelectResult(*req.Index)
		case req.URL != "":
			return sess.app.SelectURL(req.URL)
		}
		return NewValidationError("index or url is required", nil)
	})
}

func HandleBack(sessions *Sessions) http.HandlerFunc {
	return mutate(sessions, func(r *http.Request, sess *Session) error {
		return sess.app.Back()
	})
}

type addRequest struct {
	Kind string `json:"kind"`
}

func HandleAddElement(sessions *Sessions) http.HandlerFunc {
	return withSession(sessions, func(w http.ResponseWriter, r *http.Request, sess *Session) error {
		var req addRequest
		if err := decode(r, &req); err != nil {
			return err
		}
		kind, err := editor.ParseKind(req.Kind)
		if err != nil {
			return err
		}
		if _, err := sess.app.AddElement(kind); err != nil {
			return err
		}
		render.Status(r, http.StatusCreated)
		respond(w, r, sess)
		return nil
	})
}

func HandleRemoveElement(sessions *Sessions) http.HandlerFunc {
	return mutate(sessions, func(r *http.Request, sess *Session) error {
		ed, err := editorOf(sess)
		if err != nil {
			return err
		}
		return ed.Remove(chi.URLParam(r, "eid"))
	})
}

func HandleSelectElement(sessions *Sessions) http.HandlerFunc {
	return mutate(sessions, func(r *http.Request, sess *Session) error {
		ed, err := editorOf(sess)
		if err != nil {
			return err
		}
		return ed.Select(chi.URLParam(r, "eid"))
	})
}

func HandleDeselect(sessions *Sessions) http.HandlerFunc {
	return mutate(sessions, func(r *http.Request, sess *Session) error {
		ed, err := editorOf(sess)
		if err != nil {
			return err
		}
		ed.Deselect()
		return nil
	})
}

type positionRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func HandleMove(sessions *Sessions) http.HandlerFunc {
	return mutate(sessions, func(r *http.Request, sess *Session) error {
		var req positionRequest
		if err := decode(r, &req); err != nil {
			return err
		}
		ed, err := editorOf(sess)
		if err != nil {
			return err
		}
		return ed.Move(chi.URLParam(r, "eid"), req.X, req.Y)
	})
}

type textRequest struct {
	Text string `json:"text"`
}

func HandleEditText(sessions *Sessions) http.HandlerFunc {
	return mutate(sessions, func(r *http.Request, sess *Session) error {
		var req textRequest
		if err := decode(r, &req); err != nil {
			return err
		}
		ed, err := editorOf(sess)
		if err != nil {
			return err
		}
		_, err = ed.EditText(chi.URLParam(r, "eid"), req.Text)
		return err
	})
}

func HandleTransform(sessions *Sessions) http.HandlerFunc {
	return mutate(sessions, func(r *http.Request, sess *Session) error {
		var box editor.Box
		if err := decode(r, &box); err != nil {
			return err
		}
		ed, err := editorOf(sess)
		if err != nil {
			return err
		}
		return ed.Transform(chi.URLParam(r, "eid"), box)
	})
}

type colorRequest struct {
	Color string `json:"color"`
}

func HandleSetColor(sessions *Sessions) http.HandlerFunc {
	return mutate(sessions, func(r *http.Request, sess *Session) error {
		var req colorRequest
		if err := decode(r, &req); err != nil {
			return err
		}
		ed, err := editorOf(sess)
		if err != nil {
			return err
		}
		return ed.SetColor(req.Color)
	})
}

type captionRequest struct {
	Caption string `json:"caption"`
}

func HandleSetCaption(sessions *Sessions) http.HandlerFunc {
	return mutate(sessions, func(r *http.Request, sess *Session) error {
		var req captionRequest
		if err := decode(r, &req); err != nil {
			return err
		}
		ed, err := editorOf(sess)
		if err != nil {
			return err
		}
		ed.SetCaption(req.Caption)
		return nil
	})
}

func HandleCaptionFocus(sessions *Sessions, focus bool) http.HandlerFunc {
	return mutate(sessions, func(r *http.Request, sess *Session) error {
		ed, err := editorOf(sess)
		if err != nil {
			return err
		}
		if focus {
			ed.FocusCaption()
		} else {
			ed.BlurCaption()
		}
		return nil
	})
}

func HandleUndo(sessions *Sessions) http.HandlerFunc {
	return mutate(sessions, func(r *http.Request, sess *Session) error {
		ed, err := editorOf(sess)
		if err != nil {
			return err
		}
		ed.Undo()
		return nil
	})
}

func HandleExport(sessions *Sessions) http.HandlerFunc {
	return withSession(sessions, func(w http.ResponseWriter, r *http.Request, sess *Session) error {
		var buf bytes.Buffer
		name, err := sess.app.Export(&buf)
		if err != nil {
			return err
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
		w.Header().Set("Content-Length", fmt.Sprint(buf.Len()))
		if _, err := w.Write(buf.Bytes()); err != nil {
			logrus.WithFields(logrus.Fields{
				"error":   err,
				"session": sess.id,
			}).Warn("Failed to write export")
		}
		return nil
	})
}

// PublishResponse reports where a published export was stored.
type PublishResponse struct {
	SessionResponse
	Location string `json:"location"`
}

func HandlePublish(sessions *Sessions, pub publish.Publisher) http.HandlerFunc {
	return withSession(sessions, func(w http.ResponseWriter, r *http.Request, sess *Session) error {
		if pub == nil {
			return newError(http.StatusNotImplemented, "NOT_CONFIGURED", "publishing is not configured", nil)
		}
		var buf bytes.Buffer
		name, err := sess.app.Export(&buf)
		if err != nil {
			return err
		}
		loc, err := pub.Publish(r.Context(), name, buf.Bytes())
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"error":   err,
				"session": sess.id,
			}).Error("Failed to publish export")
			return newError(http.StatusBadGateway, "PUBLISH_FAILED", "failed to publish image", err)
		}
		toasts := sess.toasts.Drain()
		if toasts == nil {
			toasts = []notify.Toast{}
		}
		render.JSON(w, r, PublishResponse{
			SessionResponse: SessionResponse{Session: sess.id, View: sess.app.View(), Toasts: toasts},
			Location:        loc,
		})
		return nil
	})
}
