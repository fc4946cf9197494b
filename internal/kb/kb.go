// Package kb is the in-memory knowledge index: it loads entries from
// storage, maintains the backlink graph and routes queries to the search
// backends.
package kb

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/starford/memex/internal/checksum"
	"github.com/starford/memex/internal/graph"
	"github.com/starford/memex/internal/models"
	"github.com/starford/memex/internal/parser"
	"github.com/starford/memex/internal/search"
	"github.com/starford/memex/internal/storage"
)

// DefaultKnowledgeDir is the knowledge directory used when none is configured.
const DefaultKnowledgeDir = "knowledge"

// Puller fetches upstream changes into the repository. changed reports
// whether the working tree moved.
type Puller interface {
	Pull(ctx context.Context) (changed bool, err error)
}

// ListFilter narrows ListEntries. Empty fields match everything.
type ListFilter struct {
	Type string
	Tag  string
}

// snapshot is one immutable generation of the index. It is replaced as a
// whole, never mutated.
type snapshot struct {
	entries map[string]*models.Entry
	order   []*models.Entry // sorted by path
	graph   *graph.Graph
}

func (s *snapshot) edges() int {
	n := 0
	for _, e := range s.order {
		n += len(e.Edges)
	}
	return n
}

// Change lists the entry paths a refresh created, updated or deleted,
// with the totals of the published snapshot.
type Change struct {
	Created []string
	Updated []string
	Deleted []string
	Entries int
	Edges   int
}

// diff compares two snapshots. Unchanged documents keep their parsed Entry,
// so pointer identity tells updated entries apart.
func diff(prev, next *snapshot) Change {
	c := Change{Entries: len(next.order), Edges: next.edges()}
	for _, e := range next.order {
		old, ok := prev.entries[e.Path]
		switch {
		case !ok:
			c.Created = append(c.Created, e.Path)
		case old != e:
			c.Updated = append(c.Updated, e.Path)
		}
	}
	for _, e := range prev.order {
		if _, ok := next.entries[e.Path]; !ok {
			c.Deleted = append(c.Deleted, e.Path)
		}
	}
	return c
}

var emptySnapshot = &snapshot{
	entries: map[string]*models.Entry{},
	graph:   graph.Build(nil),
}

type parsedDoc struct {
	checksum string
	entry    *models.Entry // nil when the document was rejected
}

// KB is safe for concurrent use.
type KB struct {
	store    storage.Provider
	dir      string
	primary  search.Backend
	semantic search.Backend
	logger   *slog.Logger
	onChange func(Change)

	puller       Puller
	pullInterval time.Duration
	limiter      *rate.Limiter
	now          func() time.Time

	// refreshMu serialises refreshes and guards parsed.
	refreshMu sync.Mutex
	parsed    map[string]parsedDoc

	mu   sync.RWMutex
	snap *snapshot
}

// New builds the index and performs the first refresh. A failed first
// refresh is logged; the index then starts empty.
func New(ctx context.Context, store storage.Provider, primary search.Backend, opts ...Option) *KB {
	k := &KB{
		store:   store,
		dir:     DefaultKnowledgeDir,
		primary: primary,
		logger:  slog.Default(),
		now:     time.Now,
		parsed:  map[string]parsedDoc{},
		snap:    emptySnapshot,
	}
	for _, opt := range opts {
		opt(k)
	}

	limit := rate.Inf
	if k.pullInterval > 0 {
		limit = rate.Every(k.pullInterval)
	}
	k.limiter = rate.NewLimiter(limit, 1)

	if err := k.Refresh(ctx); err != nil {
		k.logger.Error("kb: initial refresh failed", slog.String("error", err.Error()))
	}
	return k
}

// Refresh reloads every document under the knowledge directory, rebuilds
// the backlink graph, reindexes the backends and publishes the result.
// Readers keep seeing the previous snapshot until the new one is complete.
func (k *KB) Refresh(ctx context.Context) error {
	k.refreshMu.Lock()
	defer k.refreshMu.Unlock()

	start := time.Now()
	docs, err := k.store.List(k.dir)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("kb: list %s: %w", k.dir, err)
		}
		k.logger.Debug("refresh: knowledge dir missing", slog.String("dir", k.dir))
		docs = nil
	}

	parsed := make(map[string]parsedDoc, len(docs))
	entries := make([]*models.Entry, 0, len(docs))
	for _, d := range docs {
		if prev, ok := k.parsed[d.Path]; ok && prev.checksum == d.Checksum {
			parsed[d.Path] = prev
			if prev.entry != nil {
				entries = append(entries, prev.entry)
			}
			continue
		}

		raw, err := k.store.Read(d.Path)
		if err != nil {
			k.logger.Warn("refresh: read failed", slog.String("path", d.Path), slog.String("error", err.Error()))
			continue
		}
		doc := parsedDoc{checksum: checksum.Sum(raw)}
		e, err := parser.ParseEntry(d.Path, raw)
		if err != nil {
			k.logger.Debug("refresh: parse rejected", slog.String("path", d.Path), slog.String("reason", err.Error()))
		} else {
			doc.entry = e
			entries = append(entries, e)
		}
		parsed[d.Path] = doc
	}

	slices.SortFunc(entries, func(a, b *models.Entry) int { return cmp.Compare(a.Path, b.Path) })
	g := graph.Build(entries)
	counts := g.Counts()

	if err := k.primary.Index(ctx, entries, counts); err != nil {
		return fmt.Errorf("kb: index %s: %w", k.primary.Name(), err)
	}
	if k.semantic != nil {
		if err := k.semantic.Index(ctx, entries, counts); err != nil {
			k.logger.Warn("refresh: semantic index failed", slog.String("error", err.Error()))
		}
	}

	byPath := make(map[string]*models.Entry, len(entries))
	for _, e := range entries {
		byPath[e.Path] = e
	}
	next := &snapshot{entries: byPath, order: entries, graph: g}

	k.mu.Lock()
	prev := k.snap
	k.snap = next
	k.mu.Unlock()
	k.parsed = parsed

	if k.onChange != nil {
		if c := diff(prev, next); len(c.Created)+len(c.Updated)+len(c.Deleted) > 0 {
			k.onChange(c)
		}
	}

	k.logger.Info("refresh: done",
		slog.Int("entries", len(entries)),
		slog.Int("rejected", len(docs)-len(entries)),
		slog.Int("linked_targets", g.Targets()),
		slog.Duration("took", time.Since(start)))
	return nil
}

func (k *KB) current() *snapshot {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.snap
}

// TryPull pulls upstream changes when auto-pull is enabled and the rate
// limit allows, refreshing on change. Every attempt consumes the token,
// successful or not. Failures are logged; the current snapshot keeps
// serving.
func (k *KB) TryPull(ctx context.Context) {
	if k.puller == nil {
		return
	}
	if !k.limiter.AllowN(k.now(), 1) {
		return
	}

	changed, err := k.puller.Pull(ctx)
	if err != nil {
		k.logger.Warn("sync: pull failed", slog.String("error", err.Error()))
		return
	}
	if !changed {
		return
	}
	k.logger.Info("sync: upstream changed, refreshing")
	if err := k.Refresh(ctx); err != nil {
		k.logger.Warn("sync: refresh failed", slog.String("error", err.Error()))
	}
}

// Search ranks entries for query. Semantic search answers when configured
// and it finds anything; otherwise the primary backend does.
func (k *KB) Search(ctx context.Context, query string, limit int) ([]models.SearchResult, error) {
	k.TryPull(ctx)

	if k.semantic != nil {
		results, err := k.semantic.Search(ctx, query, limit)
		switch {
		case err != nil:
			k.logger.Warn("search: semantic failed, falling back",
				slog.String("backend", k.primary.Name()),
				slog.String("error", err.Error()))
		case len(results) > 0:
			return results, nil
		}
	}
	return k.primary.Search(ctx, query, limit)
}

// ListEntries returns the entries matching f, newest Created first. Entries
// with equal Created keep path order.
func (k *KB) ListEntries(ctx context.Context, f ListFilter) []*models.Entry {
	k.TryPull(ctx)

	out := []*models.Entry{}
	for _, e := range k.current().order {
		if f.Type != "" && e.Type != f.Type {
			continue
		}
		if f.Tag != "" && !e.HasTag(f.Tag) {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Created > out[j].Created })
	return out
}

// ReadEntry looks an entry up by path. A miss returns false.
func (k *KB) ReadEntry(ctx context.Context, path string) (*models.Entry, bool) {
	k.TryPull(ctx)
	e, ok := k.current().entries[parser.NormalizePath(path)]
	return e, ok
}

// Backlinks returns the entries linking to path.
func (k *KB) Backlinks(path string) []models.Backlink {
	bls := k.current().graph.Backlinks(parser.NormalizePath(path))
	if bls == nil {
		return []models.Backlink{}
	}
	return slices.Clone(bls)
}

// BacklinkCount returns the number of entries linking to path.
func (k *KB) BacklinkCount(path string) int {
	return k.current().graph.Count(parser.NormalizePath(path))
}

// AllEntries returns every entry in path order.
func (k *KB) AllEntries() []*models.Entry {
	return slices.Clone(k.current().order)
}

// EntryCount returns the number of indexed entries.
func (k *KB) EntryCount() int {
	return len(k.current().order)
}

// EdgeCount returns the number of outgoing edges across all entries.
func (k *KB) EdgeCount() int {
	return k.current().edges()
}

// TagCounts returns how many entries carry each tag.
func (k *KB) TagCounts() map[string]int {
	counts := map[string]int{}
	for _, e := range k.current().order {
		for _, t := range e.Tags {
			counts[t]++
		}
	}
	return counts
}

// TypeCounts returns how many entries have each type.
func (k *KB) TypeCounts() map[string]int {
	counts := map[string]int{}
	for _, e := range k.current().order {
		counts[e.Type]++
	}
	return counts
}

// Stats aggregates one snapshot. Buckets are ordered by count, largest
// first, then by name.
func (k *KB) Stats() models.Stats {
	snap := k.current()
	types := map[string]int{}
	tags := map[string]int{}
	for _, e := range snap.order {
		types[e.Type]++
		for _, t := range e.Tags {
			tags[t]++
		}
	}
	return models.Stats{
		Entries: len(snap.order),
		Edges:   snap.edges(),
		Types:   sortedCounts(types),
		Tags:    sortedCounts(tags),
	}
}

func sortedCounts(m map[string]int) []models.Count {
	out := make([]models.Count, 0, len(m))
	for name, n := range m {
		out = append(out, models.Count{Name: name, Count: n})
	}
	slices.SortFunc(out, func(a, b models.Count) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return out
}
