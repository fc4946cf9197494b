// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the knowledge index as tools for LLM clients, over stdio or
// streamable HTTP.
package mcpserver

import (
	"context"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/memex/internal/kb"
	"github.com/starford/memex/internal/models"
	"github.com/starford/memex/internal/render"
	"github.com/starford/memex/internal/search"
)

// FormatResourceURI identifies the entry format contract resource.
const FormatResourceURI = "memex://entry-format"

// Index is the part of the knowledge index the tools read.
type Index interface {
	Search(ctx context.Context, query string, limit int) ([]models.SearchResult, error)
	ListEntries(ctx context.Context, f kb.ListFilter) []*models.Entry
	ReadEntry(ctx context.Context, path string) (*models.Entry, bool)
	Backlinks(path string) []models.Backlink
	BacklinkCount(path string) int
	Stats() models.Stats
}

// Server wraps the MCP server with the knowledge tools.
type Server struct {
	mcp      *server.MCPServer
	idx      Index
	contract string
}

// New creates a new MCP server with all tools registered. types and
// recommendedTags feed the format contract.
func New(idx Index, version string, types, recommendedTags []string) *Server {
	s := &Server{idx: idx, contract: FormatContract(types, recommendedTags)}

	s.mcp = server.NewMCPServer(
		"memex",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("kb_search",
		mcp.WithDescription("Search the knowledge base. Returns matching entries with "+
			"title, path, type, tags, summary, and backlink count. "+
			"Entries are atomic knowledge units linked via typed edges."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Free-text search query")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 20)")),
	), s.search)

	s.mcp.AddTool(mcp.NewTool("kb_list",
		mcp.WithDescription("List knowledge base entries, newest first. Filter by type "+
			"and/or tag. Returns title, type, summary, tags, and connection density "+
			"for each entry."),
		mcp.WithString("type", mcp.Description("Only entries of this type")),
		mcp.WithString("tag", mcp.Description("Only entries carrying this tag")),
	), s.list)

	s.mcp.AddTool(mcp.NewTool("kb_read",
		mcp.WithDescription("Read a knowledge base entry by path "+
			"(e.g. /knowledge/rlhf.md). Returns frontmatter "+
			"(title, summary, tags, edges, sources), the markdown body, "+
			"and the computed backlinks."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Entry path relative to the repository root")),
	), s.read)

	s.mcp.AddTool(mcp.NewTool("kb_stats",
		mcp.WithDescription("Summarise the knowledge base: entry and edge totals, "+
			"counts by type and by tag."),
	), s.stats)

	s.mcp.AddTool(mcp.NewTool("kb_format",
		mcp.WithDescription("Returns the knowledge entry format contract. "+
			"Read it before proposing new entries."),
	), s.format)

	s.mcp.AddResource(
		mcp.NewResource(FormatResourceURI, "Entry Format Contract",
			mcp.WithResourceDescription("Markdown + YAML frontmatter format every knowledge entry follows."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// Handler returns a stateless streamable HTTP handler for mounting on a router.
func (s *Server) Handler() http.Handler {
	return server.NewStreamableHTTPServer(s.mcp, server.WithStateLess(true))
}

func (s *Server) search(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	limit := req.GetInt("limit", search.DefaultLimit)
	results, err := s.idx.Search(ctx, query, limit)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(render.SearchResults(results, false)), nil
}

func (s *Server) list(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	f := kb.ListFilter{
		Type: req.GetString("type", ""),
		Tag:  req.GetString("tag", ""),
	}
	entries := s.idx.ListEntries(ctx, f)
	return mcp.NewToolResultText(render.Entries(entries, s.idx.BacklinkCount)), nil
}

func (s *Server) read(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	e, ok := s.idx.ReadEntry(ctx, path)
	if !ok {
		return mcp.NewToolResultText(render.NotFound(path)), nil
	}
	return mcp.NewToolResultText(render.Entry(e, s.idx.Backlinks(path))), nil
}

func (s *Server) stats(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(render.Stats(s.idx.Stats())), nil
}

func (s *Server) format(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(s.contract), nil
}

func (s *Server) readFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      FormatResourceURI,
			MIMEType: "text/markdown",
			Text:     s.contract,
		},
	}, nil
}
