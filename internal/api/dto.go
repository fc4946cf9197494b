package api

import "github.com/starford/memex/internal/models"

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []models.SearchResult `json:"results" validate:"required"`
}

// EntryListItem is a lightweight item in a list response.
type EntryListItem struct {
	Path      string   `json:"path" example:"/knowledge/rlhf.md" validate:"required"`
	Title     string   `json:"title" example:"RLHF" validate:"required"`
	Type      string   `json:"type" example:"concept" validate:"required"`
	Tags      []string `json:"tags" example:"ml,alignment"`
	Summary   string   `json:"summary"`
	Created   string   `json:"created,omitempty" example:"2024-03-01"`
	Edges     int      `json:"edges" example:"2"`
	Backlinks int      `json:"backlinks" example:"3"`
}

func newEntryListItem(e *models.Entry, backlinks int) EntryListItem {
	return EntryListItem{
		Path:      e.Path,
		Title:     e.Title,
		Type:      e.Type,
		Tags:      e.Tags,
		Summary:   e.Summary,
		Created:   e.Created,
		Edges:     len(e.Edges),
		Backlinks: backlinks,
	}
}

// EntryListResponse wraps entry listings.
type EntryListResponse struct {
	Entries []EntryListItem `json:"entries" validate:"required"`
	Total   int             `json:"total" example:"42" validate:"required"`
}

// EntryDetail is a full entry plus the backlinks pointing at it.
type EntryDetail struct {
	*models.Entry
	Backlinks []models.Backlink `json:"backlinks" validate:"required"`
}

// BacklinksResponse lists the backlinks of one target path.
type BacklinksResponse struct {
	Path      string            `json:"path" example:"/knowledge/rlhf.md" validate:"required"`
	Backlinks []models.Backlink `json:"backlinks" validate:"required"`
}
