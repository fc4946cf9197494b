// Package render formats index results as plain text for the CLI and the
// MCP tools.
package render

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/starford/memex/internal/models"
)

// Messages for empty results.
const (
	NoResults = "No results found."
	NoEntries = "No entries found."
)

// NotFound is the message for a missing entry.
func NotFound(path string) string {
	return "Entry not found: " + path
}

// SearchResults renders one block per result. withScore adds the ranking
// score next to the backlink count.
func SearchResults(results []models.SearchResult, withScore bool) string {
	if len(results) == 0 {
		return NoResults
	}
	blocks := make([]string, len(results))
	for i, r := range results {
		var b strings.Builder
		header(&b, r.Type, r.Title, r.Path, r.Tags, r.Summary)
		if withScore {
			fmt.Fprintf(&b, "  score: %s  backlinks: %d", Score(r.Score), r.BacklinkCount)
		} else {
			fmt.Fprintf(&b, "  backlinks: %d", r.BacklinkCount)
		}
		blocks[i] = b.String()
	}
	return strings.Join(blocks, "\n\n")
}

// Entries renders a listing; backlinks supplies each entry's backlink count.
func Entries(entries []*models.Entry, backlinks func(path string) int) string {
	if len(entries) == 0 {
		return NoEntries
	}
	blocks := make([]string, len(entries))
	for i, e := range entries {
		var b strings.Builder
		header(&b, e.Type, e.Title, e.Path, e.Tags, e.Summary)
		fmt.Fprintf(&b, "  edges: %d  backlinks: %d", len(e.Edges), backlinks(e.Path))
		blocks[i] = b.String()
	}
	return strings.Join(blocks, "\n\n")
}

func header(b *strings.Builder, typ, title, path string, tags []string, summary string) {
	fmt.Fprintf(b, "[%s] %s\n", typ, title)
	fmt.Fprintf(b, "  path: %s\n", path)
	fmt.Fprintf(b, "  tags: %s\n", strings.Join(tags, ", "))
	fmt.Fprintf(b, "  summary: %s\n", summary)
}

// Entry renders the full entry: frontmatter fields, edges, sources,
// backlinks, then the body after a separator.
func Entry(e *models.Entry, backlinks []models.Backlink) string {
	lines := []string{
		"# " + e.Title,
		"type: " + e.Type,
		"summary: " + e.Summary,
		"tags: " + strings.Join(e.Tags, ", "),
		"created: " + e.Created,
	}
	if e.Updated != "" {
		lines = append(lines, "updated: "+e.Updated)
	}
	if len(e.Edges) > 0 {
		lines = append(lines, "\nedges:")
		for _, edge := range e.Edges {
			lines = append(lines, fmt.Sprintf("  [%s] %s%s", edge.Label, edge.Path, describe(edge.Description)))
		}
	}
	if len(e.Sources) > 0 {
		lines = append(lines, "\nsources:")
		for _, s := range e.Sources {
			line := "  " + s.URL
			if s.Title != "" {
				line += " (" + s.Title + ")"
			}
			lines = append(lines, line)
		}
	}
	if len(backlinks) > 0 {
		lines = append(lines, "\nbacklinks:")
		for _, bl := range backlinks {
			lines = append(lines, fmt.Sprintf("  [%s] %s (%s)%s", bl.Label, bl.Path, bl.Title, describe(bl.Description)))
		}
	}
	lines = append(lines, "\n---\n"+e.Body)
	return strings.Join(lines, "\n")
}

func describe(d string) string {
	if d == "" {
		return ""
	}
	return " - " + d
}

// Stats renders entry and edge totals and the per-type and per-tag counts.
func Stats(st models.Stats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Entries: %d\n", st.Entries)
	fmt.Fprintf(&b, "Edges: %d\n", st.Edges)
	b.WriteString("\nBy type:\n")
	for _, c := range st.Types {
		fmt.Fprintf(&b, "  %s: %d\n", c.Name, c.Count)
	}
	b.WriteString("\nBy tag:\n")
	for _, c := range st.Tags {
		fmt.Fprintf(&b, "  %s: %d\n", c.Name, c.Count)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Score formats a score with the shortest exact representation, keeping a
// trailing ".0" on whole numbers.
func Score(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
