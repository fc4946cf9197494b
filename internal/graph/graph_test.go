package graph

import (
	"testing"

	"github.com/starford/memex/internal/models"
)

func entry(path, title string, edges ...models.Edge) *models.Entry {
	return &models.Entry{Path: path, Title: title, Edges: edges}
}

func TestBuild_Scenario(t *testing.T) {
	a := entry("/a.md", "Foo", models.Edge{Path: "/b.md", Label: "relates"})
	b := entry("/b.md", "Bar")
	g := Build([]*models.Entry{a, b})

	bl := g.Backlinks("/b.md")
	if len(bl) != 1 {
		t.Fatalf("len(backlinks) = %d, want 1", len(bl))
	}
	if bl[0].Path != "/a.md" || bl[0].Title != "Foo" || bl[0].Label != "relates" {
		t.Errorf("backlink = %+v", bl[0])
	}
	if g.Count("/b.md") != 1 {
		t.Errorf("count(/b.md) = %d, want 1", g.Count("/b.md"))
	}
	if g.Count("/a.md") != 0 {
		t.Errorf("count(/a.md) = %d, want 0", g.Count("/a.md"))
	}
	if len(g.Backlinks("/a.md")) != 0 {
		t.Error("untargeted path should have no backlinks")
	}
	if _, ok := g.Counts()["/a.md"]; ok {
		t.Error("untargeted path should be absent from counts")
	}
}

func TestBuild_Symmetry(t *testing.T) {
	entries := []*models.Entry{
		entry("/a.md", "A", models.Edge{Path: "/b.md", Label: "x"}, models.Edge{Path: "/c.md", Label: "y"}),
		entry("/b.md", "B", models.Edge{Path: "/c.md", Label: "z", Description: "why"}),
		entry("/c.md", "C", models.Edge{Path: "/a.md", Label: "back"}),
	}
	g := Build(entries)

	for _, src := range entries {
		for _, edge := range src.Edges {
			found := false
			for _, bl := range g.Backlinks(edge.Path) {
				if bl.Path == src.Path && bl.Label == edge.Label && bl.Description == edge.Description {
					found = true
				}
			}
			if !found {
				t.Errorf("edge %s -> %s (%s) has no matching backlink", src.Path, edge.Path, edge.Label)
			}
		}
	}
	if g.Count("/c.md") != 2 {
		t.Errorf("count(/c.md) = %d, want 2", g.Count("/c.md"))
	}
	if g.Targets() != 3 {
		t.Errorf("targets = %d, want 3", g.Targets())
	}
}

func TestBuild_DanglingEdge(t *testing.T) {
	g := Build([]*models.Entry{entry("/a.md", "A", models.Edge{Path: "/missing.md", Label: "todo"})})
	if g.Count("/missing.md") != 1 {
		t.Errorf("dangling target should still collect a backlink")
	}
}

func TestBuild_Empty(t *testing.T) {
	g := Build(nil)
	if g.Count("/x.md") != 0 || len(g.Counts()) != 0 {
		t.Error("empty graph should have no backlinks")
	}
}
