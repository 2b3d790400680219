// Package api serves the read-only status surface of the daemon: health,
// Prometheus metrics, the current device snapshot and a snapshot stream.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/micro-nova/lpg-go/internal/lpg"
)

// Events is the snapshot source the handlers read from.
type Events interface {
	Latest() (lpg.Snapshot, bool)
	Subscribe(id string) <-chan lpg.Snapshot
	Unsubscribe(id string)
}

// NewRouter creates the HTTP router.
func NewRouter(events Events) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.CleanPath)

	h := &handlers{events: events}

	r.Get("/healthz", h.health)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/api/state", h.state)
	r.Get("/api/subscribe", h.sseEvents)

	return r
}
