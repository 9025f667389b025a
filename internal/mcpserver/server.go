// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the book library to LLM clients via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/quill/internal/bookservice"
	"github.com/starford/quill/internal/htmltext"
	"github.com/starford/quill/internal/models"
)

// BookFormatURI names the on-disk layout resource.
const BookFormatURI = "quill://book-format"

const defaultSearchLimit = 20

// Server wraps the MCP server with the library tools.
type Server struct {
	mcp *server.MCPServer
	svc *bookservice.Service
}

// New creates a new MCP server with all tools registered.
func New(svc *bookservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Quill",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_library",
		mcp.WithDescription("List every known book with status, chapter and word counts, most recently opened first."),
	), s.listLibrary)

	s.mcp.AddTool(mcp.NewTool("open_book",
		mcp.WithDescription("Resolve a folder, book.json path or file:// URI to a book, open it and return its outline."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Folder or file path pointing at or above a book")),
	), s.openBook)

	s.mcp.AddTool(mcp.NewTool("list_chapters",
		mcp.WithDescription("List a book's chapters in reading order with titles and word counts."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Book root folder")),
	), s.listChapters)

	s.mcp.AddTool(mcp.NewTool("read_chapter",
		mcp.WithDescription("Read one chapter. Returns plain text by default, or the stored HTML with format=html."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Book root folder")),
		mcp.WithString("id", mcp.Required(), mcp.Description("Chapter id, e.g. 01")),
		mcp.WithString("format", mcp.Description("text (default) or html"), mcp.Enum("text", "html")),
	), s.readChapter)

	s.mcp.AddTool(mcp.NewTool("search_chapters",
		mcp.WithDescription("Full-text search through the chapters of every library book."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 20)")),
	), s.searchChapters)

	s.mcp.AddTool(mcp.NewTool("save_snapshot",
		mcp.WithDescription("Save a numbered snapshot of a chapter's current state before making large edits."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Book root folder")),
		mcp.WithString("id", mcp.Required(), mcp.Description("Chapter id")),
		mcp.WithString("reason", mcp.Description("Short note stored with the snapshot")),
	), s.saveSnapshot)

	s.mcp.AddTool(mcp.NewTool("set_cover_image",
		mcp.WithDescription("Set a book's front or back cover from a base64 data URI or an http(s) URL. "+
			"Supported formats: png, jpg, gif, webp."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Book root folder")),
		mcp.WithString("url", mcp.Required(), mcp.Description("data:image/png;base64,... or https://...")),
		mcp.WithString("kind", mcp.Description("cover (default) or back-cover"), mcp.Enum("cover", "back-cover")),
	), s.setCoverImage)

	s.mcp.AddTool(mcp.NewTool("get_book_format",
		mcp.WithDescription("Returns the on-disk book format. Read it before reasoning about files inside a book folder."),
	), s.getBookFormat)

	s.mcp.AddResource(
		mcp.NewResource(BookFormatURI, "Book Format",
			mcp.WithResourceDescription("Directory layout and document shapes of a book folder."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readBookFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// chapterSummary is one line of a book outline.
type chapterSummary struct {
	ID           string              `json:"id"`
	Title        string              `json:"title"`
	Words        int                 `json:"words"`
	LengthPreset models.LengthPreset `json:"lengthPreset,omitempty"`
	Missing      bool                `json:"missing,omitempty"`
}

type bookOutline struct {
	Path     string           `json:"path"`
	Title    string           `json:"title"`
	Subtitle string           `json:"subtitle,omitempty"`
	Author   string           `json:"author,omitempty"`
	Chapters []chapterSummary `json:"chapters"`
}

func outline(p *models.BookProject) bookOutline {
	out := bookOutline{
		Path:     p.Path,
		Title:    p.Metadata.Title,
		Subtitle: p.Metadata.Subtitle,
		Author:   p.Metadata.Author,
		Chapters: make([]chapterSummary, 0, len(p.Metadata.ChapterOrder)),
	}
	for _, id := range p.Metadata.ChapterOrder {
		c, ok := p.Chapters[id]
		if !ok {
			out.Chapters = append(out.Chapters, chapterSummary{ID: id, Missing: true})
			continue
		}
		out.Chapters = append(out.Chapters, chapterSummary{
			ID:           id,
			Title:        c.Title,
			Words:        htmltext.WordCount(c.Content),
			LengthPreset: c.LengthPreset,
		})
	}
	return out
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listLibrary(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	idx, err := s.svc.ListLibrary(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(idx.Books)
}

func (s *Server) openBook(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	p, err := s.svc.OpenBook(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(outline(p))
}

func (s *Server) listChapters(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	p, err := s.svc.LoadBook(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(outline(p).Chapters)
}

func (s *Server) readChapter(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	c, err := s.svc.Chapter(ctx, path, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	body := c.Content
	if req.GetString("format", "text") != "html" {
		body = htmltext.Text(c.Content)
	}
	return mcp.NewToolResultText(fmt.Sprintf("# %s\n\n%s", c.Title, body)), nil
}

func (s *Server) searchChapters(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, req.GetInt("limit", defaultSearchLimit))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(results) == 0 {
		return mcp.NewToolResultText("no matches found"), nil
	}
	return jsonResult(results)
}

func (s *Server) saveSnapshot(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	snap, err := s.svc.SaveSnapshot(ctx, path, id, req.GetString("reason", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("saved snapshot v%d of chapter %s", snap.Version, snap.ChapterID)), nil
}

func (s *Server) getBookFormat(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(BookFormatContract), nil
}

func (s *Server) readBookFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      BookFormatURI,
			MIMEType: "text/markdown",
			Text:     BookFormatContract,
		},
	}, nil
}
