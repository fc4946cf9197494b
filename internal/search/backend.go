// Package search implements the interchangeable ranking backends of the
// knowledge index: BM25, substring and embedding similarity.
package search

import (
	"context"
	"math"
	"strings"

	"github.com/starford/memex/internal/models"
)

// DefaultLimit applies when a caller passes a non-positive limit.
const DefaultLimit = 20

// Backend ranks entries for a free-text query. Index replaces the backend's
// state atomically, so Search may run concurrently with it.
type Backend interface {
	Name() string
	Index(ctx context.Context, entries []*models.Entry, counts map[string]int) error
	Search(ctx context.Context, query string, limit int) ([]models.SearchResult, error)
}

// Backend kinds accepted in configuration.
const (
	KindBM25      = "bm25"
	KindSubstring = "substring"
	KindSemantic  = "semantic"
)

// NewPrimary returns the lexical backend for kind. Anything other than
// "substring" gets BM25, which is also the fallback behind semantic search.
func NewPrimary(kind string) Backend {
	if kind == KindSubstring {
		return NewSubstring()
	}
	return NewBM25()
}

// Tokenize lowercases s and splits it on whitespace.
func Tokenize(s string) []string {
	return strings.Fields(strings.ToLower(s))
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return limit
}

// round4 rounds to 4 decimal digits.
func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

func containsAny(text string, tokens []string) bool {
	for _, t := range tokens {
		if strings.Contains(text, t) {
			return true
		}
	}
	return false
}

// corpus is the shared read-only view a lexical backend searches.
type corpus struct {
	entries []*models.Entry
	texts   []string // lowercased composite text, parallel to entries
	counts  map[string]int
}

func newCorpus(entries []*models.Entry, counts map[string]int) *corpus {
	c := &corpus{
		entries: append([]*models.Entry(nil), entries...),
		texts:   make([]string, len(entries)),
		counts:  counts,
	}
	for i, e := range entries {
		c.texts[i] = strings.ToLower(e.CompositeText())
	}
	return c
}
