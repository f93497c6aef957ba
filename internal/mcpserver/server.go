// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes daylog tools for LLM integration via stdio transport.
package mcpserver

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/daylog/internal/notebook"
)

const formatURI = "daylog://note-format"

// Server wraps the MCP server with daylog tools.
type Server struct {
	mcp *server.MCPServer
	svc *notebook.Service
}

// New creates a new MCP server with all daylog tools registered.
func New(svc *notebook.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"daylog",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("get_note_contract",
		mcp.WithDescription("Returns the daily note format contract. "+
			"Call this before writing notes to keep the sections and checkboxes intact."),
	), s.getNoteContract)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read the note of one day. A day without a note returns its template."),
		mcp.WithString("date", mcp.Required(), mcp.Description("Day in YYYY-MM-DD form")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("write_note",
		mcp.WithDescription("Replace the note of one day and commit it. "+
			"Pass the checksum returned by read_note as if_match to avoid overwriting concurrent edits."),
		mcp.WithString("date", mcp.Required(), mcp.Description("Day in YYYY-MM-DD form")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Full Markdown content following the note format contract")),
		mcp.WithString("if_match", mcp.Description("Checksum of the content being replaced")),
	), s.writeNote)

	s.mcp.AddTool(mcp.NewTool("list_days",
		mcp.WithDescription("List the calendar. Without arguments lists years; with year lists months; "+
			"with year and month lists days that have notes."),
		mcp.WithString("year", mcp.Description("Four-digit year")),
		mcp.WithString("month", mcp.Description("Two-digit month, requires year")),
	), s.listDays)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Full-text search through daily notes."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 20)")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("note_history",
		mcp.WithDescription("List the commits that changed a file, newest first."),
		mcp.WithString("path", mcp.Description("Repository-relative path (empty for all commits)")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of commits (default 20)")),
	), s.noteHistory)

	s.mcp.AddTool(mcp.NewTool("get_stats",
		mcp.WithDescription("Task completion statistics: per-day counts and streak summary."),
	), s.getStats)

	s.mcp.AddTool(mcp.NewTool("recompute_stats",
		mcp.WithDescription("Rebuild statistics from every note and commit them."),
	), s.recomputeStats)

	s.mcp.AddTool(mcp.NewTool("scan_past_tasks",
		mcp.WithDescription("List unfinished to-do items from earlier days that were not dismissed."),
	), s.scanPastTasks)

	s.mcp.AddTool(mcp.NewTool("sync",
		mcp.WithDescription("Pull from and push to the configured remote."),
	), s.sync)

	s.mcp.AddTool(mcp.NewTool("list_conflicts",
		mcp.WithDescription("Report the merge state and the files that still have conflicts."),
	), s.listConflicts)

	s.mcp.AddTool(mcp.NewTool("complete_merge",
		mcp.WithDescription("Commit a merge whose conflicts are all resolved, then push once."),
		mcp.WithString("message", mcp.Description("Merge commit message; a default is used when empty")),
	), s.completeMerge)

	s.mcp.AddTool(mcp.NewTool("upload_asset",
		mcp.WithDescription("Store an image or PDF in a month's assets directory from an http(s) URL "+
			"or a base64 data URI. Returns a markdown snippet to paste into that month's notes."),
		mcp.WithString("year", mcp.Required(), mcp.Description("Four-digit year of the note")),
		mcp.WithString("month", mcp.Required(), mcp.Description("Two-digit month of the note")),
		mcp.WithString("url", mcp.Required(), mcp.Description("http(s) URL or data:<mime>;base64,<data> URI")),
		mcp.WithString("filename", mcp.Description("Optional filename; derived from the URL when empty")),
	), s.uploadAsset)

	// Resource: note format contract.
	s.mcp.AddResource(
		mcp.NewResource(formatURI, "Note Format Contract",
			mcp.WithResourceDescription("Layout of daily notes and the checkbox syntax statistics rely on."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNoteFormatResource,
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
