package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/daylog/internal/notes"
	"github.com/starford/daylog/internal/vcs"
)

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func requireDate(req mcp.CallToolRequest) (notes.Date, error) {
	raw, err := req.RequireString("date")
	if err != nil {
		return notes.Date{}, err
	}
	return notes.ParseDate(raw)
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	d, err := requireDate(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.svc.ReadNote(ctx, d)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(note)
}

func (s *Server) writeNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	d, err := requireDate(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.svc.WriteNote(ctx, d, []byte(content), req.GetString("if_match", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("saved: %s (checksum %s)", note.Path, note.Checksum)), nil
}

func (s *Server) listDays(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	year := req.GetString("year", "")
	month := req.GetString("month", "")

	var items []string
	switch {
	case year == "":
		items = s.svc.Years()
	case month == "":
		items = s.svc.Months(year)
	default:
		for _, day := range s.svc.Days(year, month) {
			items = append(items, fmt.Sprintf("%s-%s-%s", year, month, day))
		}
	}
	if len(items) == 0 {
		return mcp.NewToolResultText("nothing found"), nil
	}
	return mcp.NewToolResultText(strings.Join(items, "\n")), nil
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, req.GetInt("limit", 20))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results)
}

func (s *Server) noteHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	commits, err := s.svc.History(ctx, req.GetString("path", ""), req.GetInt("limit", 20))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(commits)
}

func (s *Server) getStats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, err := s.svc.Stats(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(st)
}

func (s *Server) recomputeStats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, err := s.svc.RecomputeStats(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(st.Summary)
}

func (s *Server) scanPastTasks(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tasks, err := s.svc.ScanPastTasks(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(tasks) == 0 {
		return mcp.NewToolResultText("no unfinished tasks from earlier days"), nil
	}
	return jsonResult(tasks)
}

func (s *Server) sync(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.svc.Sync(ctx)
	if err != nil {
		if vcs.IsUserActionRequired(err) {
			return mcp.NewToolResultError(fmt.Sprintf("%v; conflicted files: %s", err, strings.Join(res.Conflicts, ", "))), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res)
}

func (s *Server) listConflicts(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st, err := s.svc.ConflictStatus(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(st)
}

func (s *Server) completeMerge(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := s.svc.CompleteMerge(ctx, req.GetString("message", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res)
}

func (s *Server) uploadAsset(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	year, err := req.RequireString("year")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	month, err := req.RequireString("month")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rawURL, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	a, err := s.svc.FetchAttachment(ctx, year, month, rawURL, req.GetString("filename", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(a)
}

func (s *Server) getNoteContract(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NoteFormatContract), nil
}

func (s *Server) readNoteFormatResource(context.Context, mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      formatURI,
			MIMEType: "text/markdown",
			Text:     NoteFormatContract,
		},
	}, nil
}
