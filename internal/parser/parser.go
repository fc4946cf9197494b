// Package parser turns raw knowledge documents into validated entries.
package parser

import (
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/memex/internal/models"
)

// Rejection reasons. A rejected document is excluded from the index; none of
// these are meant to reach query callers.
var (
	ErrNoFrontmatter      = errors.New("no frontmatter block")
	ErrInvalidFrontmatter = errors.New("frontmatter is not a YAML mapping")
	ErrMissingTitle       = errors.New("frontmatter has no title")
)

// frontmatterRe matches a leading "---" block followed by a closing "---" line.
var frontmatterRe = regexp.MustCompile(`(?s)\A---\s*\n(.*?)\n---\s*\n`)

// ParseEntry parses raw document bytes stored at relPath (relative to the
// repository root). It returns one of the Err* rejections when the document
// is not a valid entry.
func ParseEntry(relPath string, raw []byte) (*models.Entry, error) {
	text := string(raw)

	loc := frontmatterRe.FindStringSubmatchIndex(text)
	if loc == nil {
		return nil, ErrNoFrontmatter
	}
	block := text[loc[2]:loc[3]]

	var fm map[string]any
	if err := yaml.Unmarshal([]byte(block), &fm); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFrontmatter, err)
	}
	if fm == nil {
		// An empty block decodes to nil; it cannot carry a title either way.
		return nil, ErrMissingTitle
	}

	title := scalarString(fm["title"])
	if title == "" {
		return nil, ErrMissingTitle
	}

	p := NormalizePath(relPath)
	typ := scalarString(fm["type"])
	if typ == "" {
		typ = models.DefaultType
	}

	return &models.Entry{
		Path:    p,
		Slug:    slug(p),
		Title:   title,
		Type:    typ,
		Summary: scalarString(fm["summary"]),
		Tags:    stringList(fm["tags"]),
		Created: scalarString(fm["created"]),
		Updated: scalarString(fm["updated"]),
		Edges:   parseEdges(fm["edges"]),
		Sources: parseSources(fm["sources"]),
		Body:    text[loc[1]:],
		Raw:     text,
	}, nil
}

// NormalizePath converts a root-relative file path into an entry path:
// forward slashes and exactly one leading "/".
func NormalizePath(rel string) string {
	p := strings.ReplaceAll(rel, "\\", "/")
	return "/" + strings.TrimLeft(p, "/")
}

func slug(p string) string {
	base := path.Base(p)
	return strings.TrimSuffix(base, path.Ext(base))
}

// parseEdges keeps only mapping items that carry both path and label.
func parseEdges(v any) []models.Edge {
	items, _ := v.([]any)
	var out []models.Edge
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		target, hasPath := m["path"]
		label, hasLabel := m["label"]
		if !hasPath || !hasLabel || target == nil || label == nil {
			continue
		}
		out = append(out, models.Edge{
			Path:        scalarString(target),
			Label:       scalarString(label),
			Description: scalarString(m["description"]),
		})
	}
	return out
}

// parseSources keeps only mapping items that carry a url.
func parseSources(v any) []models.Source {
	items, _ := v.([]any)
	var out []models.Source
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		url, ok := m["url"]
		if !ok || url == nil {
			continue
		}
		out = append(out, models.Source{
			URL:   scalarString(url),
			Title: scalarString(m["title"]),
		})
	}
	return out
}

// stringList accepts a YAML list of scalars or a single scalar.
func stringList(v any) []string {
	switch t := v.(type) {
	case nil:
		return []string{}
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s := scalarString(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		if s := scalarString(t); s != "" {
			return []string{s}
		}
		return []string{}
	}
}

// scalarString renders a decoded YAML scalar as a string. Dates stay in
// their source form since yaml.v3 decodes timestamps into interface values
// as strings.
func scalarString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case map[string]any, []any:
		return ""
	default:
		return fmt.Sprint(t)
	}
}
