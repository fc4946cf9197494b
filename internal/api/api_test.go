package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/starford/memex/internal/kb"
	"github.com/starford/memex/internal/models"
	"github.com/starford/memex/internal/search"
	"github.com/starford/memex/internal/testutil"
)

// testEnv sets up a temp repository with three linked entries and a router
// over it. An empty authToken means disabled mode.
func testEnv(t *testing.T, authToken string) http.Handler {
	t.Helper()
	root, store := testutil.TestRepo(t)
	testutil.WriteEntry(t, root, "knowledge/rlhf.md",
		"title: RLHF\ntype: concept\ntags: [ml, alignment]\ncreated: 2024-03-01\nedges:\n  - path: /knowledge/ppo.md\n    label: optimizes-with",
		"Reinforcement learning from human feedback.")
	testutil.WriteEntry(t, root, "knowledge/ppo.md",
		"title: PPO\ntype: reference\ntags: [ml]\ncreated: 2024-01-01",
		"Proximal policy optimization.")
	testutil.WriteEntry(t, root, "knowledge/raft.md",
		"title: Raft\ntype: concept\ntags: [systems]\ncreated: 2024-02-01\nedges:\n  - path: /knowledge/ppo.md\n    label: unrelated\n    description: test edge",
		"Consensus.")

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	idx := kb.New(context.Background(), store, search.NewBM25(), kb.WithLogger(logger))
	return NewRouter(idx, authToken != "", authToken)
}

func get(t *testing.T, router http.Handler, target string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return v
}

func TestSearchEndpoint(t *testing.T) {
	router := testEnv(t, "")

	w := get(t, router, "/search?q=policy&limit=5")
	if w.Code != http.StatusOK {
		t.Fatalf("search status = %d, body = %s", w.Code, w.Body.String())
	}
	resp := decode[SearchResponse](t, w)
	if len(resp.Results) == 0 {
		t.Fatal("expected at least one result")
	}
	if resp.Results[0].Path != "/knowledge/ppo.md" {
		t.Errorf("top result = %q, want /knowledge/ppo.md", resp.Results[0].Path)
	}
	if resp.Results[0].BacklinkCount != 2 {
		t.Errorf("backlink_count = %d, want 2", resp.Results[0].BacklinkCount)
	}
}

func TestSearchMissingQuery(t *testing.T) {
	router := testEnv(t, "")

	w := get(t, router, "/search")
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing q = %d, want 400", w.Code)
	}
}

func TestListEntries(t *testing.T) {
	router := testEnv(t, "")

	w := get(t, router, "/entries")
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d", w.Code)
	}
	resp := decode[EntryListResponse](t, w)
	if resp.Total != 3 {
		t.Fatalf("total = %d, want 3", resp.Total)
	}
	want := []string{"/knowledge/rlhf.md", "/knowledge/raft.md", "/knowledge/ppo.md"}
	for i, p := range want {
		if resp.Entries[i].Path != p {
			t.Errorf("entries[%d] = %q, want %q", i, resp.Entries[i].Path, p)
		}
	}
	if resp.Entries[2].Backlinks != 2 {
		t.Errorf("ppo backlinks = %d, want 2", resp.Entries[2].Backlinks)
	}
	if resp.Entries[0].Edges != 1 {
		t.Errorf("rlhf edges = %d, want 1", resp.Entries[0].Edges)
	}
}

func TestListEntries_Filters(t *testing.T) {
	router := testEnv(t, "")

	resp := decode[EntryListResponse](t, get(t, router, "/entries?type=concept&tag=ml"))
	if resp.Total != 1 || resp.Entries[0].Title != "RLHF" {
		t.Errorf("filtered = %+v, want only RLHF", resp.Entries)
	}

	resp = decode[EntryListResponse](t, get(t, router, "/entries?tag=nothing"))
	if resp.Total != 0 || resp.Entries == nil {
		t.Errorf("empty filter should return an empty list, got %+v", resp)
	}
}

// entryDetailJSON picks the fields of EntryDetail the tests look at.
type entryDetailJSON struct {
	Path      string            `json:"path"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Backlinks []models.Backlink `json:"backlinks"`
}

func TestGetEntry(t *testing.T) {
	router := testEnv(t, "")

	for _, target := range []string{"/entries/knowledge/ppo.md", "/entries/knowledge%2Fppo.md"} {
		w := get(t, router, target)
		if w.Code != http.StatusOK {
			t.Fatalf("%s: status = %d", target, w.Code)
		}
		detail := decode[entryDetailJSON](t, w)
		if detail.Path != "/knowledge/ppo.md" || detail.Title != "PPO" {
			t.Errorf("%s: detail = %+v", target, detail)
		}
		if len(detail.Backlinks) != 2 || detail.Backlinks[0].Path != "/knowledge/raft.md" || detail.Backlinks[1].Path != "/knowledge/rlhf.md" {
			t.Errorf("%s: backlinks = %+v", target, detail.Backlinks)
		}
	}
}

func TestGetEntry_NotFound(t *testing.T) {
	router := testEnv(t, "")

	w := get(t, router, "/entries/knowledge/nope.md")
	if w.Code != http.StatusNotFound {
		t.Errorf("missing entry = %d, want 404", w.Code)
	}
}

func TestBacklinksEndpoint(t *testing.T) {
	router := testEnv(t, "")

	resp := decode[BacklinksResponse](t, get(t, router, "/backlinks/knowledge/ppo.md"))
	if resp.Path != "/knowledge/ppo.md" || len(resp.Backlinks) != 2 {
		t.Fatalf("backlinks = %+v", resp)
	}
	if resp.Backlinks[0].Label != "unrelated" || resp.Backlinks[0].Description != "test edge" {
		t.Errorf("first backlink = %+v", resp.Backlinks[0])
	}

	resp = decode[BacklinksResponse](t, get(t, router, "/backlinks/knowledge/rlhf.md"))
	if resp.Backlinks == nil || len(resp.Backlinks) != 0 {
		t.Errorf("untargeted path should have an empty list, got %+v", resp.Backlinks)
	}
}

func TestStatsEndpoint(t *testing.T) {
	router := testEnv(t, "")

	st := decode[models.Stats](t, get(t, router, "/stats"))
	if st.Entries != 3 || st.Edges != 2 {
		t.Errorf("stats = %+v", st)
	}
	if len(st.Types) != 2 || st.Types[0].Name != "concept" || st.Types[0].Count != 2 {
		t.Errorf("types = %+v", st.Types)
	}
	if st.Tags[0].Name != "ml" || st.Tags[0].Count != 2 {
		t.Errorf("tags = %+v", st.Tags)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	router := testEnv(t, "secret123")

	w := get(t, router, "/stats", "Authorization", "Bearer secret123")
	if w.Code != http.StatusOK {
		t.Errorf("authed = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	router := testEnv(t, "secret123")

	w := get(t, router, "/entries")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	router := testEnv(t, "secret123")

	w := get(t, router, "/entries", "Authorization", "Bearer wrong")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	router := testEnv(t, "")

	w := get(t, router, "/entries")
	if w.Code != http.StatusOK {
		t.Errorf("no auth = %d, want 200", w.Code)
	}
}
