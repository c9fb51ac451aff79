// Package mcpserver exposes memolog over MCP (Model Context Protocol) on
// stdio so LLM clients can read memos and record progress.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/memolog/internal/apperr"
	"github.com/starford/memolog/internal/marker"
	"github.com/starford/memolog/internal/memostore"
	"github.com/starford/memolog/internal/models"
	"github.com/starford/memolog/internal/tracker"
)

// FormatURI is the resource URI of the memo format contract.
const FormatURI = "memolog://memo-format"

// Server wraps the MCP server with memolog tools.
type Server struct {
	mcp     *server.MCPServer
	memos   *memostore.Service
	tracker *tracker.Service
	now     func() time.Time
}

// New creates an MCP server with all memolog tools registered. A nil now
// means time.Now.
func New(memos *memostore.Service, tr *tracker.Service, now func() time.Time) *Server {
	if now == nil {
		now = time.Now
	}
	s := &Server{memos: memos, tracker: tr, now: now}

	s.mcp = server.NewMCPServer(
		"memolog",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_memos",
		mcp.WithDescription("List memos, newest first."),
		mcp.WithNumber("limit", mcp.Description("Maximum number of memos (default 20)")),
		mcp.WithString("tag", mcp.Description("Only memos carrying this #tag")),
		mcp.WithBoolean("hide_records", mcp.Description("Drop check-in and goal completion records")),
	), s.listMemos)

	s.mcp.AddTool(mcp.NewTool("read_memo",
		mcp.WithDescription("Read a memo with its metadata and back-references."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Memo id, e.g. memos/1f0c...")),
	), s.readMemo)

	s.mcp.AddTool(mcp.NewTool("create_memo",
		mcp.WithDescription("Create a memo. Content may carry goal, check-in, schedule or task "+
			"markers; read the contract first via get_memo_contract or the "+FormatURI+" resource."),
		mcp.WithString("content", mcp.Required(), mcp.Description("Memo body")),
		mcp.WithString("visibility", mcp.Description("PRIVATE (default), PROTECTED or PUBLIC"),
			mcp.Enum(string(models.VisibilityPrivate), string(models.VisibilityProtected), string(models.VisibilityPublic))),
	), s.createMemo)

	s.mcp.AddTool(mcp.NewTool("search_memos",
		mcp.WithDescription("Full-text search through memo content."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchMemos)

	s.mcp.AddTool(mcp.NewTool("get_backlinks",
		mcp.WithDescription("List memos that reference the given memo."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Memo id")),
	), s.getBacklinks)

	s.mcp.AddTool(mcp.NewTool("check_in",
		mcp.WithDescription("Record a check-in against a memo carrying a -[*] marker."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Check-in memo id")),
	), s.checkIn)

	s.mcp.AddTool(mcp.NewTool("complete_goal",
		mcp.WithDescription("Advance a goal memo (-[0] title (current/target)). Progress is clamped at the target."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Goal memo id")),
		mcp.WithNumber("amount", mcp.Description("Units to add (default 1)")),
	), s.completeGoal)

	s.mcp.AddTool(mcp.NewTool("memo_stats",
		mcp.WithDescription("Statistics of a goal or check-in memo: totals, streaks, per-day records."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Memo id")),
	), s.memoStats)

	s.mcp.AddTool(mcp.NewTool("list_schedules",
		mcp.WithDescription("List schedule memos ({} YYYY/MM/DD HH:mm) earliest first."),
		mcp.WithString("filter", mcp.Description("all, today, date or upcoming"),
			mcp.Enum(string(tracker.ScheduleAll), string(tracker.ScheduleToday), string(tracker.ScheduleDate), string(tracker.ScheduleUpcoming))),
		mcp.WithString("date", mcp.Description("YYYY-MM-DD, required for filter=date")),
	), s.listSchedules)

	s.mcp.AddTool(mcp.NewTool("get_memo_contract",
		mcp.WithDescription("Returns the memo marker contract. Call this before writing memos."),
	), s.getMemoContract)

	s.mcp.AddResource(
		mcp.NewResource(FormatURI, "Memo Format Contract",
			mcp.WithResourceDescription("Textual markers memolog recognises in memo content."),
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

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

// toolError turns a domain error into a tool-level error result.
func toolError(err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError("memo not found")
	case errors.Is(err, apperr.ErrMarkerNotFound):
		return mcp.NewToolResultError("memo has no matching marker")
	case errors.Is(err, apperr.ErrGoalCompleted):
		return mcp.NewToolResultError("goal already completed")
	default:
		return mcp.NewToolResultError(err.Error())
	}
}

func (s *Server) listMemos(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	notes, total, err := s.memos.Page(ctx, memostore.Query{
		Limit:       req.GetInt("limit", 20),
		Tag:         req.GetString("tag", ""),
		HideRecords: req.GetBool("hide_records", false),
	})
	if err != nil {
		return toolError(err), nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d of %d memos\n", len(notes), total)
	for _, n := range notes {
		fmt.Fprintf(&b, "%s\t%s\t%s\n", n.ID, n.DisplayTime.Format(time.RFC3339), firstLine(n.Content))
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) readMemo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := s.memos.GetNote(ctx, id)
	if err != nil {
		return toolError(err), nil
	}
	backlinks, err := s.memos.Backlinks(ctx, id)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(map[string]any{"memo": n, "backlinks": backlinks})
}

func (s *Server) createMemo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if strings.TrimSpace(content) == "" {
		return mcp.NewToolResultError("content must not be empty"), nil
	}
	vis := models.ParseVisibility(req.GetString("visibility", ""))
	n, err := s.memos.CreateNote(ctx, content, vis)
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText("created: " + n.ID), nil
}

func (s *Server) searchMemos(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.memos.Search(ctx, query, 20)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(results)
}

func (s *Server) getBacklinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	bl, err := s.memos.Backlinks(ctx, id)
	if err != nil {
		return toolError(err), nil
	}
	if len(bl) == 0 {
		return mcp.NewToolResultText("no backlinks found"), nil
	}
	return mcp.NewToolResultText(strings.Join(bl, "\n")), nil
}

func (s *Server) checkIn(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.tracker.CheckIn(ctx, id, s.now())
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(res.Stats)
}

func (s *Server) completeGoal(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.tracker.CompleteGoal(ctx, id, req.GetInt("amount", 1), s.now())
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(res.Stats)
}

func (s *Server) memoStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := s.memos.GetNote(ctx, id)
	if err != nil {
		return toolError(err), nil
	}
	switch {
	case marker.IsGoal(n):
		stats, err := s.tracker.GoalStats(ctx, id, s.now())
		if err != nil {
			return toolError(err), nil
		}
		return jsonResult(stats)
	case marker.IsCheckin(n):
		stats, err := s.tracker.CheckinStats(ctx, id, s.now())
		if err != nil {
			return toolError(err), nil
		}
		return jsonResult(stats)
	default:
		return mcp.NewToolResultError("memo is neither a goal nor a check-in"), nil
	}
}

func (s *Server) listSchedules(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter := tracker.ParseScheduleFilter(req.GetString("filter", ""))
	date := req.GetString("date", "")
	if filter == tracker.ScheduleDate && date == "" {
		return mcp.NewToolResultError("date is required for filter=date"), nil
	}
	list, err := s.tracker.Schedules(ctx, filter, date, s.now())
	if err != nil {
		return toolError(err), nil
	}
	if len(list) == 0 {
		return mcp.NewToolResultText("no schedules"), nil
	}
	var b strings.Builder
	for _, sc := range list {
		fmt.Fprintf(&b, "%s\t%s\t%s\n", sc.DateTime, sc.Title, sc.ID)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) getMemoContract(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(MemoFormatContract), nil
}

func (s *Server) readFormatResource(context.Context, mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      FormatURI,
			MIMEType: "text/markdown",
			Text:     MemoFormatContract,
		},
	}, nil
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	if r := []rune(line); len(r) > 80 {
		return string(r[:80]) + "…"
	}
	return line
}
