package search

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/starford/memex/internal/cache"
	"github.com/starford/memex/internal/models"
)

func mkEntry(path, title string, tags ...string) *models.Entry {
	return &models.Entry{Path: path, Title: title, Type: "note", Tags: tags}
}

// fakeEmbedder maps the first word of a text to a fixed vector and records
// every text it embeds.
type fakeEmbedder struct {
	mu        sync.Mutex
	vectors   map[string][]float32
	batches   [][]string
	queries   []string
	failBatch func(texts []string) bool
	queryErr  error
}

func newFakeEmbedder(vectors map[string][]float32) *fakeEmbedder {
	return &fakeEmbedder{vectors: vectors}
}

func (f *fakeEmbedder) vectorFor(text string) []float32 {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return []float32{0, 0}
	}
	if v, ok := f.vectors[fields[0]]; ok {
		return v
	}
	return []float32{0, 0}
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, text)
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.vectorFor(text), nil
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, append([]string(nil), texts...))
	if f.failBatch != nil && f.failBatch(texts) {
		return nil, errors.New("embedding service unavailable")
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = f.vectorFor(t)
	}
	return out, nil
}

func (f *fakeEmbedder) embeddedTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, b := range f.batches {
		out = append(out, b...)
	}
	return out
}

func (f *fakeEmbedder) batchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

// memStore is an in-memory cache.Store that counts saves.
type memStore struct {
	mu      sync.Mutex
	data    *cache.Data
	saves   int
	loadErr error
}

func (m *memStore) Load() (*cache.Data, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	if m.data == nil {
		return cache.NewData(), nil
	}
	return m.data.Clone(), nil
}

func (m *memStore) Save(d *cache.Data) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	m.data = d.Clone()
	return nil
}

func (m *memStore) Close() error { return nil }

func (m *memStore) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

func paths(results []models.SearchResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Path
	}
	return out
}
