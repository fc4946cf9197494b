package mcpserver

import (
	"fmt"
	"strings"
)

const fence = "```"

// FormatContract describes the knowledge entry format for LLM consumers.
// types and recommendedTags come from configuration.
func FormatContract(types, recommendedTags []string) string {
	var b strings.Builder
	b.WriteString("# Memex Entry Format Contract\n\n")
	b.WriteString("Every knowledge entry is one Markdown file under the knowledge directory, " +
		"holding exactly one concept, reference, insight or question.\n\n")

	b.WriteString("## Structure\n\n")
	b.WriteString(fence + "markdown\n")
	b.WriteString(`---
title: Reinforcement learning from human feedback   # REQUIRED
type: concept                                       # OPTIONAL, defaults to note
summary: One-sentence description.                  # OPTIONAL
tags: [ml, alignment]                               # OPTIONAL, YAML list
created: 2024-03-01                                 # OPTIONAL, ISO-8601 date
updated: 2024-04-02                                 # OPTIONAL
edges:                                              # OPTIONAL, typed links
  - path: /knowledge/reward-model.md
    label: uses
    description: the learned reward signal          # OPTIONAL
sources:                                            # OPTIONAL
  - url: https://arxiv.org/abs/2203.02155
    title: InstructGPT                              # OPTIONAL
---

Body text in standard Markdown.
`)
	b.WriteString(fence + "\n\n")

	b.WriteString("## Rules\n\n")
	b.WriteString("1. The file starts with a `---` line; the frontmatter closes with another `---` line.\n")
	b.WriteString("2. `title` is required. Documents without one are ignored by the index.\n")
	fmt.Fprintf(&b, "3. `type` is one of: %s.\n", codeList(types))
	if len(recommendedTags) > 0 {
		fmt.Fprintf(&b, "4. Prefer these tags where they fit: %s. Tags are lowercase.\n", codeList(recommendedTags))
	} else {
		b.WriteString("4. Tags are lowercase.\n")
	}
	b.WriteString("5. Edge `path` values are repository-relative with a leading `/` and end in `.md`. " +
		"Every edge needs both `path` and `label`; the target may not exist yet.\n")
	b.WriteString("6. Backlinks are computed from edges. Never write them by hand.\n")
	b.WriteString("7. `created` and `updated` sort lexically, so keep them in `YYYY-MM-DD` form.\n")
	b.WriteString("8. Encoding is UTF-8; file names are lowercase kebab-case.\n")
	return b.String()
}

func codeList(items []string) string {
	if len(items) == 0 {
		return "any"
	}
	quoted := make([]string, len(items))
	for i, it := range items {
		quoted[i] = "`" + it + "`"
	}
	return strings.Join(quoted, ", ")
}
