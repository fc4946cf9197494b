package models

// Count is one bucket of an aggregate, such as a tag and how many entries
// carry it.
type Count struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Stats summarises the current knowledge base.
type Stats struct {
	Entries int     `json:"entries"`
	Edges   int     `json:"edges"`
	Types   []Count `json:"types"`
	Tags    []Count `json:"tags"`
}
