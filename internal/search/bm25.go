package search

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/starford/memex/internal/models"
)

// Okapi BM25 parameters.
const (
	bm25K1      = 1.5
	bm25B       = 0.75
	bm25Epsilon = 0.25
)

// BM25 ranks entries with Okapi BM25 over their composite text, then keeps
// only entries that literally contain at least one query token.
type BM25 struct {
	mu    sync.RWMutex
	state *bm25State
}

type bm25State struct {
	*corpus
	model *bm25Model // nil when the corpus is empty
}

var _ Backend = (*BM25)(nil)

// NewBM25 returns an empty BM25 backend.
func NewBM25() *BM25 {
	return &BM25{state: &bm25State{corpus: newCorpus(nil, nil)}}
}

// Name implements Backend.
func (b *BM25) Name() string { return KindBM25 }

// Index implements Backend.
func (b *BM25) Index(_ context.Context, entries []*models.Entry, counts map[string]int) error {
	st := &bm25State{corpus: newCorpus(entries, counts)}
	if len(entries) > 0 {
		docs := make([][]string, len(entries))
		for i, text := range st.texts {
			docs[i] = Tokenize(text)
		}
		st.model = newBM25Model(docs)
	}

	b.mu.Lock()
	b.state = st
	b.mu.Unlock()
	return nil
}

// Search implements Backend.
func (b *BM25) Search(_ context.Context, query string, limit int) ([]models.SearchResult, error) {
	b.mu.RLock()
	st := b.state
	b.mu.RUnlock()

	if st.model == nil {
		return []models.SearchResult{}, nil
	}
	limit = normalizeLimit(limit)
	tokens := Tokenize(query)
	scores := st.model.scores(tokens)

	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return scores[order[i]] > scores[order[j]]
	})

	results := []models.SearchResult{}
	for _, i := range order {
		if len(results) >= limit {
			break
		}
		if !containsAny(st.texts[i], tokens) {
			continue
		}
		e := st.entries[i]
		results = append(results, models.NewSearchResult(e, round4(scores[i]), st.counts[e.Path]))
	}
	return results, nil
}

// bm25Model holds per-document term frequencies and corpus-wide IDF.
type bm25Model struct {
	docFreqs []map[string]int
	docLens  []int
	avgdl    float64
	idf      map[string]float64
}

func newBM25Model(docs [][]string) *bm25Model {
	m := &bm25Model{
		docFreqs: make([]map[string]int, len(docs)),
		docLens:  make([]int, len(docs)),
		idf:      make(map[string]float64),
	}

	nd := make(map[string]int) // term -> number of documents containing it
	total := 0
	for i, doc := range docs {
		freqs := make(map[string]int)
		for _, tok := range doc {
			freqs[tok]++
		}
		m.docFreqs[i] = freqs
		m.docLens[i] = len(doc)
		total += len(doc)
		for tok := range freqs {
			nd[tok]++
		}
	}
	m.avgdl = float64(total) / float64(len(docs))

	n := float64(len(docs))
	var idfSum float64
	var negative []string
	for tok, freq := range nd {
		idf := math.Log(n-float64(freq)+0.5) - math.Log(float64(freq)+0.5)
		m.idf[tok] = idf
		idfSum += idf
		if idf < 0 {
			negative = append(negative, tok)
		}
	}
	if len(m.idf) > 0 {
		eps := bm25Epsilon * idfSum / float64(len(m.idf))
		for _, tok := range negative {
			m.idf[tok] = eps
		}
	}
	return m
}

// scores returns one BM25 score per document, in corpus order. Repeated
// query tokens contribute repeatedly.
func (m *bm25Model) scores(query []string) []float64 {
	out := make([]float64, len(m.docFreqs))
	for _, q := range query {
		idf, ok := m.idf[q]
		if !ok {
			continue
		}
		for i, freqs := range m.docFreqs {
			tf := float64(freqs[q])
			if tf == 0 {
				continue
			}
			lenRatio := 0.0
			if m.avgdl > 0 {
				lenRatio = float64(m.docLens[i]) / m.avgdl
			}
			out[i] += idf * (tf * (bm25K1 + 1) / (tf + bm25K1*(1-bm25B+bm25B*lenRatio)))
		}
	}
	return out
}
