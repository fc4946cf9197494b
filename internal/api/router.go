package api

import (
	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
func NewRouter(idx Index, authEnabled bool, token string) chi.Router {
	h := NewHandler(idx)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/search", h.Search)

	r.Get("/entries", h.ListEntries)
	r.Get("/entries/*", h.GetEntry)
	r.Get("/backlinks/*", h.Backlinks)

	r.Get("/stats", h.Stats)

	return r
}
