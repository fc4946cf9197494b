package parser

import (
	"errors"
	"testing"
)

const fullDoc = `---
title: Reinforcement learning from human feedback
type: concept
summary: Fine-tuning with a learned reward model.
tags: [ml, alignment]
created: 2024-03-01
updated: 2024-04-02
edges:
  - path: /knowledge/reward-model.md
    label: uses
    description: the reward signal
  - path: /knowledge/ppo.md
    label: optimizes-with
sources:
  - url: https://arxiv.org/abs/2203.02155
    title: InstructGPT
---
# RLHF

Body text.
`

func TestParseEntry_Full(t *testing.T) {
	e, err := ParseEntry("knowledge/rlhf.md", []byte(fullDoc))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Path != "/knowledge/rlhf.md" {
		t.Errorf("path = %q", e.Path)
	}
	if e.Slug != "rlhf" {
		t.Errorf("slug = %q, want rlhf", e.Slug)
	}
	if e.Title != "Reinforcement learning from human feedback" {
		t.Errorf("title = %q", e.Title)
	}
	if e.Type != "concept" {
		t.Errorf("type = %q", e.Type)
	}
	if len(e.Tags) != 2 || e.Tags[0] != "ml" || e.Tags[1] != "alignment" {
		t.Errorf("tags = %v", e.Tags)
	}
	if e.Created != "2024-03-01" || e.Updated != "2024-04-02" {
		t.Errorf("dates = %q / %q", e.Created, e.Updated)
	}
	if len(e.Edges) != 2 {
		t.Fatalf("len(edges) = %d, want 2", len(e.Edges))
	}
	if e.Edges[0].Path != "/knowledge/reward-model.md" || e.Edges[0].Label != "uses" || e.Edges[0].Description != "the reward signal" {
		t.Errorf("edge[0] = %+v", e.Edges[0])
	}
	if e.Edges[1].Description != "" {
		t.Errorf("edge[1] description = %q", e.Edges[1].Description)
	}
	if len(e.Sources) != 1 || e.Sources[0].Title != "InstructGPT" {
		t.Errorf("sources = %+v", e.Sources)
	}
	if e.Body != "# RLHF\n\nBody text.\n" {
		t.Errorf("body = %q", e.Body)
	}
	if e.Raw != fullDoc {
		t.Error("raw should hold the original document")
	}
}

func TestParseEntry_Defaults(t *testing.T) {
	e, err := ParseEntry("/a.md", []byte("---\ntitle: Foo\n---\nbody"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Type != "note" {
		t.Errorf("type = %q, want note", e.Type)
	}
	if e.Tags == nil || len(e.Tags) != 0 {
		t.Errorf("tags = %v, want empty", e.Tags)
	}
	if e.Created != "" || e.Updated != "" || e.Summary != "" {
		t.Errorf("expected empty optional fields, got %+v", e)
	}
	if e.Path != "/a.md" {
		t.Errorf("path = %q", e.Path)
	}
}

func TestParseEntry_NoFrontmatter(t *testing.T) {
	_, err := ParseEntry("a.md", []byte("# Just a heading\nSome text.\n"))
	if !errors.Is(err, ErrNoFrontmatter) {
		t.Errorf("err = %v, want ErrNoFrontmatter", err)
	}
}

func TestParseEntry_UnclosedFrontmatter(t *testing.T) {
	_, err := ParseEntry("a.md", []byte("---\ntitle: Foo\nno closing marker\n"))
	if !errors.Is(err, ErrNoFrontmatter) {
		t.Errorf("err = %v, want ErrNoFrontmatter", err)
	}
}

func TestParseEntry_InvalidYAML(t *testing.T) {
	_, err := ParseEntry("a.md", []byte("---\n: invalid: yaml: {{{\n---\nBody\n"))
	if !errors.Is(err, ErrInvalidFrontmatter) {
		t.Errorf("err = %v, want ErrInvalidFrontmatter", err)
	}
}

func TestParseEntry_NotAMapping(t *testing.T) {
	_, err := ParseEntry("a.md", []byte("---\n- one\n- two\n---\nBody\n"))
	if !errors.Is(err, ErrInvalidFrontmatter) {
		t.Errorf("err = %v, want ErrInvalidFrontmatter", err)
	}
}

func TestParseEntry_MissingTitle(t *testing.T) {
	for name, doc := range map[string]string{
		"absent": "---\ntype: note\n---\nBody\n",
		"empty":  "---\ntitle: \"\"\n---\nBody\n",
		"null":   "---\ntitle:\n---\nBody\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseEntry("a.md", []byte(doc))
			if !errors.Is(err, ErrMissingTitle) {
				t.Errorf("err = %v, want ErrMissingTitle", err)
			}
		})
	}
}

func TestParseEntry_MalformedEdgesDropped(t *testing.T) {
	doc := "---\ntitle: Foo\nedges:\n  - path: /b.md\n    label: relates\n  - path: /c.md\n  - just-a-string\n  - label: orphan\n---\n"
	e, err := ParseEntry("a.md", []byte(doc))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(e.Edges) != 1 {
		t.Fatalf("edges = %+v, want only the well-formed one", e.Edges)
	}
	if e.Edges[0].Path != "/b.md" || e.Edges[0].Label != "relates" {
		t.Errorf("edge = %+v", e.Edges[0])
	}
}

func TestParseEntry_SourcesWithoutURLDropped(t *testing.T) {
	doc := "---\ntitle: Foo\nsources:\n  - title: no url\n  - url: https://example.com\n---\n"
	e, err := ParseEntry("a.md", []byte(doc))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(e.Sources) != 1 || e.Sources[0].URL != "https://example.com" {
		t.Errorf("sources = %+v", e.Sources)
	}
}

func TestParseEntry_ScalarTag(t *testing.T) {
	e, err := ParseEntry("a.md", []byte("---\ntitle: Foo\ntags: solo\n---\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(e.Tags) != 1 || e.Tags[0] != "solo" {
		t.Errorf("tags = %v, want [solo]", e.Tags)
	}
}

func TestNormalizePath(t *testing.T) {
	cases := map[string]string{
		"knowledge/a.md":   "/knowledge/a.md",
		"/knowledge/a.md":  "/knowledge/a.md",
		"//knowledge/a.md": "/knowledge/a.md",
		`knowledge\a.md`:   "/knowledge/a.md",
	}
	for in, want := range cases {
		if got := NormalizePath(in); got != want {
			t.Errorf("NormalizePath(%q) = %q, want %q", in, got, want)
		}
	}
}
