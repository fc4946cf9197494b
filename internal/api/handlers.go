package api

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/memex/internal/kb"
	"github.com/starford/memex/internal/models"
)

// Index is the read side of the knowledge index served over HTTP.
type Index interface {
	Search(ctx context.Context, query string, limit int) ([]models.SearchResult, error)
	ListEntries(ctx context.Context, f kb.ListFilter) []*models.Entry
	ReadEntry(ctx context.Context, path string) (*models.Entry, bool)
	Backlinks(path string) []models.Backlink
	BacklinkCount(path string) int
	Stats() models.Stats
}

// Handler holds API route handlers.
type Handler struct {
	idx Index
}

// NewHandler creates a new Handler.
func NewHandler(idx Index) *Handler {
	return &Handler{idx: idx}
}

// entryPath extracts the entry path from the URL wildcard.
// Supports encoded slashes from OpenAPI clients (e.g. knowledge%2Frlhf.md).
func entryPath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return "/" + raw
	}
	return "/" + strings.TrimPrefix(decoded, "/")
}

// Search handles GET /api/search.
//
//	@Summary		Ranked search across knowledge entries
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results (default 20)"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if strings.TrimSpace(q) == "" {
		writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.idx.Search(r.Context(), q, limit)
	if err != nil {
		slog.Error("search failed", slog.String("query", q), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// ListEntries handles GET /api/entries.
//
//	@Summary		List entries, newest first
//	@Tags			entries
//	@Produce		json
//	@Param			type	query		string	false	"Filter by entry type"
//	@Param			tag		query		string	false	"Filter by tag"
//	@Success		200		{object}	EntryListResponse
//	@Security		BearerAuth
//	@Router			/entries [get]
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	entries := h.idx.ListEntries(r.Context(), kb.ListFilter{Type: q.Get("type"), Tag: q.Get("tag")})

	items := make([]EntryListItem, len(entries))
	for i, e := range entries {
		items[i] = newEntryListItem(e, h.idx.BacklinkCount(e.Path))
	}
	writeJSON(w, http.StatusOK, EntryListResponse{Entries: items, Total: len(items)})
}

// GetEntry handles GET /api/entries/*.
//
//	@Summary		Get a single entry by path, with its backlinks
//	@Tags			entries
//	@Produce		json
//	@Param			path	path		string	true	"Entry path"
//	@Success		200		{object}	EntryDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/entries/{path} [get]
func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	path := entryPath(r)
	if path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}
	e, ok := h.idx.ReadEntry(r.Context(), path)
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, http.StatusOK, EntryDetail{Entry: e, Backlinks: h.idx.Backlinks(path)})
}

// Backlinks handles GET /api/backlinks/*.
//
//	@Summary		List entries linking to a path
//	@Tags			graph
//	@Produce		json
//	@Param			path	path		string	true	"Target path (need not exist)"
//	@Success		200		{object}	BacklinksResponse
//	@Security		BearerAuth
//	@Router			/backlinks/{path} [get]
func (h *Handler) Backlinks(w http.ResponseWriter, r *http.Request) {
	path := entryPath(r)
	if path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}
	writeJSON(w, http.StatusOK, BacklinksResponse{Path: path, Backlinks: h.idx.Backlinks(path)})
}

// Stats handles GET /api/stats.
//
//	@Summary		Entry and edge totals with per-type and per-tag counts
//	@Tags			stats
//	@Produce		json
//	@Success		200	{object}	models.Stats
//	@Security		BearerAuth
//	@Router			/stats [get]
func (h *Handler) Stats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.idx.Stats())
}
