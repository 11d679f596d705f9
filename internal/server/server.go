// Package server exposes captionkit sessions over a JSON HTTP API.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"github.com/example/captionkit/internal/publish"
)

// DefaultOrigins allows any browser origin.
var DefaultOrigins = []string{"https://*", "http://*"}

// Options configures the router.
type Options struct {
	Sessions  *Sessions
	Publisher publish.Publisher
	Origins   []string
}

// NewRouter builds the API routes.
func NewRouter(opts Options) *chi.Mux {
	origins := opts.Origins
	if len(origins) == 0 {
		origins = DefaultOrigins
	}
	sessions := opts.Sessions

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "Content-Length", "Origin", "X-Requested-With"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))

	r.Get("/healthz", HandleHealth())

	r.Route("/api/sessions", func(r chi.Router) {
		r.Post("/", HandleCreateSession(sessions))
		r.Route("/{sid}", func(r chi.Router) {
			r.Get("/", HandleGetSession(sessions))
			r.Delete("/", HandleDeleteSession(sessions))

			r.Post("/search", HandleSearch(sessions))
			r.Post("/select", HandleSelect(sessions))
			r.Post("/back", HandleBack(sessions))

			r.Post("/elements", HandleAddElement(sessions))
			r.Route("/elements/{eid}", func(r chi.Router) {
				r.Delete("/", HandleRemoveElement(sessions))
				r.Post("/select", HandleSelectElement(sessions))
				r.Put("/position", HandleMove(sessions))
				r.Put("/text", HandleEditText(sessions))
				r.Put("/bounds", HandleTransform(sessions))
			})
			r.Post("/deselect", HandleDeselect(sessions))
			r.Put("/color", HandleSetColor(sessions))

			r.Put("/caption", HandleSetCaption(sessions))
			r.Post("/caption/focus", HandleCaptionFocus(sessions, true))
			r.Post("/caption/blur", HandleCaptionFocus(sessions, false))

			r.Post("/undo", HandleUndo(sessions))
			r.Get("/export", HandleExport(sessions))
			r.Post("/publish", HandlePublish(sessions, opts.Publisher))
		})
	})
	return r
}

// Serve runs the API on addr until ctx is cancelled. Idle sessions are
// expired in the background for as long as the server runs.
func Serve(ctx context.Context, addr string, opts Options) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go opts.Sessions.Sweep(ctx, 0)

	srv := &http.Server{
		Addr:              addr,
		Handler:           NewRouter(opts),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		logrus.WithField("addr", addr).Info("starting server")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	logrus.Info("shutting down server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
