// Package models defines the domain types for Memex.
package models

import "strings"

// DefaultType is assigned to entries whose frontmatter has no type.
const DefaultType = "note"

// Entry represents one parsed knowledge document.
type Entry struct {
	Path    string   `json:"path"`
	Slug    string   `json:"slug"`
	Title   string   `json:"title"`
	Type    string   `json:"type"`
	Summary string   `json:"summary"`
	Tags    []string `json:"tags"`
	Created string   `json:"created,omitempty"`
	Updated string   `json:"updated,omitempty"`
	Edges   []Edge   `json:"edges,omitempty"`
	Sources []Source `json:"sources,omitempty"`
	Body    string   `json:"body"`
	Raw     string   `json:"-"`
}

// CompositeText joins title, summary, tags and body with single spaces.
// Lexical scoring, substring scoring and content hashing all use it.
func (e *Entry) CompositeText() string {
	return e.Title + " " + e.Summary + " " + strings.Join(e.Tags, " ") + " " + e.Body
}

// HasTag reports whether tag is one of the entry's tags.
func (e *Entry) HasTag(tag string) bool {
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Edge is a typed outgoing link to another entry path. The target may not exist.
type Edge struct {
	Path        string `json:"path"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
}

// Source is an external citation.
type Source struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

// Backlink is the reverse view of an Edge, seen from its target.
type Backlink struct {
	Path        string `json:"path"`
	Title       string `json:"title"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
}

// SearchResult is one ranked hit produced by a search backend.
type SearchResult struct {
	Path          string   `json:"path"`
	Title         string   `json:"title"`
	Type          string   `json:"type"`
	Tags          []string `json:"tags"`
	Summary       string   `json:"summary"`
	Score         float64  `json:"score"`
	BacklinkCount int      `json:"backlink_count"`
}

// NewSearchResult builds a SearchResult for e.
func NewSearchResult(e *Entry, score float64, backlinks int) SearchResult {
	return SearchResult{
		Path:          e.Path,
		Title:         e.Title,
		Type:          e.Type,
		Tags:          e.Tags,
		Summary:       e.Summary,
		Score:         score,
		BacklinkCount: backlinks,
	}
}
