package search

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/starford/memex/internal/models"
)

// Substring scores an entry by how many query tokens occur anywhere in its
// lowercased composite text. It has no ranking model.
type Substring struct {
	mu     sync.RWMutex
	corpus *corpus
}

var _ Backend = (*Substring)(nil)

// NewSubstring returns an empty substring backend.
func NewSubstring() *Substring {
	return &Substring{corpus: newCorpus(nil, nil)}
}

// Name implements Backend.
func (s *Substring) Name() string { return KindSubstring }

// Index implements Backend.
func (s *Substring) Index(_ context.Context, entries []*models.Entry, counts map[string]int) error {
	c := newCorpus(entries, counts)
	s.mu.Lock()
	s.corpus = c
	s.mu.Unlock()
	return nil
}

// Search implements Backend.
func (s *Substring) Search(_ context.Context, query string, limit int) ([]models.SearchResult, error) {
	s.mu.RLock()
	c := s.corpus
	s.mu.RUnlock()

	limit = normalizeLimit(limit)
	terms := Tokenize(query)

	results := []models.SearchResult{}
	for i, text := range c.texts {
		score := 0
		for _, t := range terms {
			if strings.Contains(text, t) {
				score++
			}
		}
		if score == 0 {
			continue
		}
		e := c.entries[i]
		results = append(results, models.NewSearchResult(e, float64(score), c.counts[e.Path]))
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}
