package search

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/starford/memex/internal/cache"
	"github.com/starford/memex/internal/checksum"
	"github.com/starford/memex/internal/models"
)

const (
	// RelevanceFloor is the similarity below which semantic results stop.
	RelevanceFloor = 0.1

	// DefaultBatchSize bounds the number of texts per embedding request.
	DefaultBatchSize = 100

	// DefaultEmbedTimeout bounds a single embedding call.
	DefaultEmbedTimeout = 30 * time.Second
)

// Embedder turns text into vectors. Implementations live in package embed.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Semantic ranks entries by cosine similarity between the query embedding
// and cached entry embeddings. Vectors are recomputed only for entries whose
// content hash changed.
type Semantic struct {
	embedder  Embedder
	store     cache.Store
	batchSize int
	timeout   time.Duration
	logger    *slog.Logger

	// indexMu serialises Index calls; mu guards the published state.
	indexMu sync.Mutex
	mu      sync.RWMutex
	entries []*models.Entry
	counts  map[string]int
	data    *cache.Data
}

var _ Backend = (*Semantic)(nil)

// SemanticOption configures a Semantic backend.
type SemanticOption func(*Semantic)

// WithBatchSize sets how many texts go into one embedding request.
func WithBatchSize(n int) SemanticOption {
	return func(s *Semantic) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithEmbedTimeout sets the timeout applied to each embedding call.
func WithEmbedTimeout(d time.Duration) SemanticOption {
	return func(s *Semantic) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithSemanticLogger sets the logger.
func WithSemanticLogger(l *slog.Logger) SemanticOption {
	return func(s *Semantic) { s.logger = l }
}

// NewSemantic creates the backend and eagerly loads the cache from store.
// An unreadable cache is logged and replaced by an empty one.
func NewSemantic(embedder Embedder, store cache.Store, opts ...SemanticOption) *Semantic {
	s := &Semantic{
		embedder:  embedder,
		store:     store,
		batchSize: DefaultBatchSize,
		timeout:   DefaultEmbedTimeout,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	data, err := store.Load()
	if err != nil {
		s.logger.Warn("semantic: failed to load embeddings cache, starting fresh",
			slog.String("error", err.Error()))
		data = cache.NewData()
	}
	s.data = data
	return s
}

// Name implements Backend.
func (s *Semantic) Name() string { return KindSemantic }

// Index implements Backend. Batch failures are logged and skipped; the
// affected entries stay without a vector until a later Index succeeds.
// The returned error reports only a failure to persist the cache.
func (s *Semantic) Index(ctx context.Context, entries []*models.Entry, counts map[string]int) error {
	s.indexMu.Lock()
	defer s.indexMu.Unlock()

	s.mu.RLock()
	data := s.data.Clone()
	s.mu.RUnlock()

	type pending struct {
		path string
		text string
	}
	var toEmbed []pending
	present := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		present[e.Path] = struct{}{}
		text := e.CompositeText()
		h := checksum.Content(text)
		_, hasVec := data.Embeddings[e.Path]
		if data.Hashes[e.Path] == h && hasVec {
			continue
		}
		toEmbed = append(toEmbed, pending{path: e.Path, text: text})
		data.Hashes[e.Path] = h
	}

	pruned := 0
	for p := range data.Embeddings {
		if _, ok := present[p]; !ok {
			delete(data.Embeddings, p)
			pruned++
		}
	}
	for p := range data.Hashes {
		if _, ok := present[p]; !ok {
			delete(data.Hashes, p)
			pruned++
		}
	}

	if len(toEmbed) > 0 {
		s.logger.Info("semantic: embedding new/changed entries", slog.Int("count", len(toEmbed)))
	}
	for start := 0; start < len(toEmbed); start += s.batchSize {
		batch := toEmbed[start:min(start+s.batchSize, len(toEmbed))]
		texts := make([]string, len(batch))
		for i, p := range batch {
			texts[i] = p.text
		}
		vectors, err := s.embedBatch(ctx, texts)
		if err != nil {
			s.logger.Warn("semantic: failed to embed batch",
				slog.Int("offset", start),
				slog.Int("size", len(batch)),
				slog.String("error", err.Error()))
			continue
		}
		for i, p := range batch {
			data.Embeddings[p.path] = vectors[i]
		}
	}

	s.mu.Lock()
	s.entries = append([]*models.Entry(nil), entries...)
	s.counts = counts
	s.data = data
	s.mu.Unlock()

	if len(toEmbed) == 0 && pruned == 0 {
		return nil
	}
	if err := s.store.Save(data); err != nil {
		return fmt.Errorf("semantic: save cache: %w", err)
	}
	return nil
}

func (s *Semantic) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(texts))
	}
	return vectors, nil
}

// Search implements Backend. A query embedding failure is returned so the
// caller can fall back to another backend.
func (s *Semantic) Search(ctx context.Context, query string, limit int) ([]models.SearchResult, error) {
	s.mu.RLock()
	entries, counts, embeddings := s.entries, s.counts, s.data.Embeddings
	s.mu.RUnlock()

	if len(entries) == 0 || len(embeddings) == 0 {
		return []models.SearchResult{}, nil
	}

	qctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	queryVec, err := s.embedder.Embed(qctx, query)
	if err != nil {
		return nil, fmt.Errorf("semantic: embed query: %w", err)
	}

	type scored struct {
		entry *models.Entry
		score float64
	}
	var hits []scored
	for _, e := range entries {
		vec, ok := embeddings[e.Path]
		if !ok {
			continue
		}
		hits = append(hits, scored{entry: e, score: Cosine(queryVec, vec)})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].score > hits[j].score
	})

	limit = normalizeLimit(limit)
	results := []models.SearchResult{}
	for _, h := range hits {
		if len(results) >= limit || h.score < RelevanceFloor {
			break
		}
		results = append(results, models.NewSearchResult(h.entry, round4(h.score), counts[h.entry.Path]))
	}
	return results, nil
}

// Cached reports the number of entries that currently have a vector.
func (s *Semantic) Cached() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data.Embeddings)
}

// Close releases the cache store.
func (s *Semantic) Close() error {
	return s.store.Close()
}
