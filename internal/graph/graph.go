// Package graph derives the backlink (reverse edge) index from parsed entries.
package graph

import "github.com/starford/memex/internal/models"

// Graph is an immutable backlink index built from one set of entries.
type Graph struct {
	backlinks map[string][]models.Backlink
	counts    map[string]int
}

// Build walks every outgoing edge of every entry, in order, and records a
// Backlink on the edge target. Targets need not exist among entries.
func Build(entries []*models.Entry) *Graph {
	backlinks := make(map[string][]models.Backlink)
	for _, e := range entries {
		for _, edge := range e.Edges {
			backlinks[edge.Path] = append(backlinks[edge.Path], models.Backlink{
				Path:        e.Path,
				Title:       e.Title,
				Label:       edge.Label,
				Description: edge.Description,
			})
		}
	}
	counts := make(map[string]int, len(backlinks))
	for p, bls := range backlinks {
		counts[p] = len(bls)
	}
	return &Graph{backlinks: backlinks, counts: counts}
}

// Backlinks returns the entries linking to path. The slice must not be modified.
func (g *Graph) Backlinks(path string) []models.Backlink {
	return g.backlinks[path]
}

// Count returns the number of backlinks to path; 0 for untargeted paths.
func (g *Graph) Count(path string) int {
	return g.counts[path]
}

// Counts returns the path to backlink count map. Paths with no backlinks
// are absent. The map must not be modified.
func (g *Graph) Counts() map[string]int {
	return g.counts
}

// Targets returns the number of distinct paths that have at least one backlink.
func (g *Graph) Targets() int {
	return len(g.backlinks)
}
