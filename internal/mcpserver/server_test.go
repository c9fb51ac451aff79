package mcpserver

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/memolog/internal/memostore"
	"github.com/starford/memolog/internal/models"
	"github.com/starford/memolog/internal/testutil"
	"github.com/starford/memolog/internal/tracker"
)

var now = time.Date(2025, 8, 6, 9, 0, 0, 0, time.UTC)

func testServer(t *testing.T) (*Server, *memostore.Service) {
	t.Helper()
	_, vault := testutil.TestVault(t)
	memos := memostore.NewService(vault, testutil.TestDB(t), testutil.Logger(),
		memostore.WithClock(testutil.NewClock(now).Now))
	tr := tracker.NewService(memos, testutil.Logger(), tracker.WithLocation(time.UTC))
	return New(memos, tr, func() time.Time { return now }), memos
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	handlers := map[string]func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error){
		"list_memos":        srv.listMemos,
		"read_memo":         srv.readMemo,
		"create_memo":       srv.createMemo,
		"search_memos":      srv.searchMemos,
		"get_backlinks":     srv.getBacklinks,
		"check_in":          srv.checkIn,
		"complete_goal":     srv.completeGoal,
		"memo_stats":        srv.memoStats,
		"list_schedules":    srv.listSchedules,
		"get_memo_contract": srv.getMemoContract,
	}
	h, ok := handlers[name]
	if !ok {
		t.Fatalf("unknown tool: %s", name)
	}
	result, err := h(context.Background(), req)
	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func create(t *testing.T, memos *memostore.Service, content string) models.Note {
	t.Helper()
	n, err := memos.CreateNote(context.Background(), content, models.VisibilityPrivate)
	if err != nil {
		t.Fatalf("CreateNote: %v", err)
	}
	return n
}

func TestCreateAndReadMemo(t *testing.T) {
	srv, _ := testServer(t)

	r := callTool(t, srv, "create_memo", map[string]any{"content": "hello #inbox"})
	text := resultText(r)
	id, ok := strings.CutPrefix(text, "created: ")
	if r.IsError || !ok {
		t.Fatalf("create result = %q", text)
	}

	r = callTool(t, srv, "read_memo", map[string]any{"id": id})
	if r.IsError {
		t.Fatalf("read error: %s", resultText(r))
	}
	if got := resultText(r); !strings.Contains(got, `"content": "hello #inbox"`) {
		t.Errorf("read result = %s", got)
	}
}

func TestCreateMemo_Empty(t *testing.T) {
	srv, _ := testServer(t)
	if r := callTool(t, srv, "create_memo", map[string]any{"content": "  "}); !r.IsError {
		t.Error("expected error for empty content")
	}
}

func TestReadMemoMissing(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "read_memo", map[string]any{"id": "memos/nope"})
	if !r.IsError {
		t.Error("expected error for missing memo")
	}
}

func TestListMemos(t *testing.T) {
	srv, memos := testServer(t)
	create(t, memos, "first")
	create(t, memos, "second")

	text := resultText(callTool(t, srv, "list_memos", map[string]any{}))
	if !strings.HasPrefix(text, "2 of 2 memos") {
		t.Errorf("list = %q", text)
	}
	text = resultText(callTool(t, srv, "list_memos", map[string]any{"limit": float64(1)}))
	if !strings.HasPrefix(text, "1 of 2 memos") {
		t.Errorf("limited list = %q", text)
	}
}

func TestGetBacklinks(t *testing.T) {
	srv, memos := testServer(t)
	target := create(t, memos, "target")
	src := create(t, memos, "links to [["+target.ID+"]]")

	text := resultText(callTool(t, srv, "get_backlinks", map[string]any{"id": target.ID}))
	if text != src.ID {
		t.Errorf("backlinks = %q, want %s", text, src.ID)
	}
	text = resultText(callTool(t, srv, "get_backlinks", map[string]any{"id": src.ID}))
	if text != "no backlinks found" {
		t.Errorf("backlinks = %q", text)
	}
}

func TestCheckInAndStats(t *testing.T) {
	srv, memos := testServer(t)
	habit := create(t, memos, "-[*] Stretch")

	r := callTool(t, srv, "check_in", map[string]any{"id": habit.ID})
	if r.IsError {
		t.Fatalf("check_in error: %s", resultText(r))
	}
	if got := resultText(r); !strings.Contains(got, `"total_count": 1`) {
		t.Errorf("check_in result = %s", got)
	}

	r = callTool(t, srv, "memo_stats", map[string]any{"id": habit.ID})
	if got := resultText(r); !strings.Contains(got, `"has_checked_today": true`) {
		t.Errorf("memo_stats = %s", got)
	}
}

func TestCompleteGoal(t *testing.T) {
	srv, memos := testServer(t)
	goal := create(t, memos, "-[0] Ship v1 (0/2)")

	r := callTool(t, srv, "complete_goal", map[string]any{"id": goal.ID, "amount": float64(2)})
	if r.IsError {
		t.Fatalf("complete_goal error: %s", resultText(r))
	}
	if got := resultText(r); !strings.Contains(got, `"is_completed": true`) {
		t.Errorf("complete_goal result = %s", got)
	}

	r = callTool(t, srv, "complete_goal", map[string]any{"id": goal.ID})
	if !r.IsError || resultText(r) != "goal already completed" {
		t.Errorf("second completion = %q, want goal already completed error", resultText(r))
	}
}

func TestMemoStats_PlainMemo(t *testing.T) {
	srv, memos := testServer(t)
	plain := create(t, memos, "nothing special")
	if r := callTool(t, srv, "memo_stats", map[string]any{"id": plain.ID}); !r.IsError {
		t.Error("expected error for plain memo")
	}
}

func TestListSchedules(t *testing.T) {
	srv, memos := testServer(t)
	create(t, memos, "{} 2025/08/06 15:00 Dentist")
	create(t, memos, "{} 2025/09/01 10:00 Trip")

	text := resultText(callTool(t, srv, "list_schedules", map[string]any{"filter": "today"}))
	if !strings.HasPrefix(text, "2025-08-06 15:00:00\tDentist\t") {
		t.Errorf("today = %q", text)
	}
	if !strings.Contains(text, "Dentist") || strings.Contains(text, "Trip") {
		t.Errorf("today = %q", text)
	}
	if r := callTool(t, srv, "list_schedules", map[string]any{"filter": "date"}); !r.IsError {
		t.Error("expected error for date filter without date")
	}
}

func TestMemoContract(t *testing.T) {
	srv, _ := testServer(t)
	text := resultText(callTool(t, srv, "get_memo_contract", map[string]any{}))
	for _, want := range []string{"-[0]", "-[*]", "{}", "- [ ]"} {
		if !strings.Contains(text, want) {
			t.Errorf("contract lacks %q", want)
		}
	}
}
