// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Memento tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/memento/internal/noteservice"
	"github.com/starford/memento/internal/periodic"
	"github.com/starford/memento/internal/tagtree"
	"github.com/starford/memento/internal/todo"
	"github.com/starford/memento/internal/views"
)

const todoFormatURI = "memento://todo-format"

// Server wraps the MCP server with Memento tools.
type Server struct {
	mcp *server.MCPServer
	svc *noteservice.Service
}

// New creates a new MCP server with all Memento tools registered.
func New(svc *noteservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Memento",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List notes newest first, optionally filtered by tag or title text."),
		mcp.WithString("tag", mcp.Description("Tag to filter by; nested tags match too (e.g. work matches work/urgent)")),
		mcp.WithString("query", mcp.Description("Case-insensitive text matched against title and path")),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("tag_tree",
		mcp.WithDescription("Show the hierarchical tag tree with note counts."),
	), s.tagTree)

	s.mcp.AddTool(mcp.NewTool("list_todos",
		mcp.WithDescription("List checklist items across all notes."),
		mcp.WithString("status", mcp.Description("open, done or all (default all)")),
		mcp.WithString("tag", mcp.Description("Only items carrying this tag or a nested one")),
		mcp.WithString("project", mcp.Description("Only items with this project: attribute")),
	), s.listTodos)

	s.mcp.AddTool(mcp.NewTool("due_todos",
		mcp.WithDescription("List open items due on or before a date."),
		mcp.WithString("before", mcp.Description("YYYY-MM-DD; defaults to today")),
	), s.dueTodos)

	s.mcp.AddTool(mcp.NewTool("toggle_todo",
		mcp.WithDescription("Flip a checklist item between open and done. "+
			"Addresses the item by note path and 1-based line number as returned by list_todos."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative note path (e.g. work/plan.md)")),
		mcp.WithNumber("line", mcp.Required(), mcp.Description("1-based line number")),
	), s.toggleTodo)

	s.mcp.AddTool(mcp.NewTool("update_todo",
		mcp.WithDescription("Replace attributes of a checklist item. Omitted attributes are kept; "+
			"an empty string clears one. Read the format via get_todo_format first."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative note path")),
		mcp.WithNumber("line", mcp.Required(), mcp.Description("1-based line number")),
		mcp.WithString("tags", mcp.Description("Comma-separated tags without #; replaces all tags")),
		mcp.WithString("project", mcp.Description("Project name")),
		mcp.WithString("due", mcp.Description("Due date YYYY-MM-DD")),
		mcp.WithString("priority", mcp.Description("H, M or L")),
	), s.updateTodo)

	s.mcp.AddTool(mcp.NewTool("open_periodic_note",
		mcp.WithDescription("Create (from template) or locate the daily or weekly note for a date."),
		mcp.WithString("kind", mcp.Required(), mcp.Description("daily or weekly")),
		mcp.WithString("date", mcp.Description("Any date inside the period; defaults to today")),
	), s.openPeriodic)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Full-text search through note content and titles."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithString("tag", mcp.Description("Restrict results to a tag subtree")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("refresh_index",
		mcp.WithDescription("Rescan the notes directory and rebuild all derived views."),
	), s.refresh)

	s.mcp.AddTool(mcp.NewTool("get_todo_format",
		mcp.WithDescription("Returns the checklist line grammar. "+
			"Call this before writing or updating TODO items."),
	), s.getTodoFormat)

	s.mcp.AddResource(
		mcp.NewResource(todoFormatURI, "TODO Format Contract",
			mcp.WithResourceDescription("Grammar of checklist lines and their attributes."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readTodoFormatResource,
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

func stringArg(req mcp.CallToolRequest, key string) (string, bool) {
	v, ok := req.GetArguments()[key].(string)
	return v, ok
}

func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snap, err := s.svc.Snapshot(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	f := views.Filter{}
	f.Tag, _ = stringArg(req, "tag")
	f.Text, _ = stringArg(req, "query")

	records := views.Notes(views.Chronological(snap.Notes), f)
	if len(records) == 0 {
		return mcp.NewToolResultText("no notes found"), nil
	}
	var b strings.Builder
	for _, r := range records {
		fmt.Fprintf(&b, "%s\t%s\t%s\n", r.Date.Format(time.DateOnly), r.RelPath, r.Title)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) tagTree(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snap, err := s.svc.Snapshot(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(snap.Tags) == 0 {
		return mcp.NewToolResultText("no tags"), nil
	}
	var b strings.Builder
	tagtree.Walk(snap.Tags, func(n *tagtree.Node, depth int) bool {
		fmt.Fprintf(&b, "%s#%s (%d)\n", strings.Repeat("  ", depth), n.Label, len(tagtree.Subtree(snap.Tags, n.Path)))
		return true
	})
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) listTodos(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, _ := stringArg(req, "status")
	status, err := views.ParseStatus(raw)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	snap, err := s.svc.Snapshot(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	f := views.Filter{Status: status}
	f.Tag, _ = stringArg(req, "tag")
	f.Project, _ = stringArg(req, "project")
	return jsonResult(views.Todos(snap.Todos, f))
}

func (s *Server) dueTodos(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	before, _ := stringArg(req, "before")
	if before == "" {
		before = s.svc.Now().Format(todo.DateLayout)
	}
	items, err := s.svc.TodosDue(ctx, before, 0)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(items)
}

func location(req mcp.CallToolRequest) (todo.Location, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return todo.Location{}, err
	}
	line := intArg(req, "line", 0)
	if line < 1 {
		return todo.Location{}, fmt.Errorf("line must be a positive number")
	}
	return todo.Location{RelPath: path, Line: line}, nil
}

func (s *Server) toggleTodo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	loc, err := location(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	e, err := s.svc.Toggle(ctx, loc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(e.Raw), nil
}

func (s *Server) updateTodo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	loc, err := location(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var p todo.Patch
	if v, ok := stringArg(req, "tags"); ok {
		tags := []string{}
		for _, t := range strings.Split(v, ",") {
			if t = strings.TrimPrefix(strings.TrimSpace(t), "#"); t != "" {
				tags = append(tags, t)
			}
		}
		p.Tags = &tags
	}
	if v, ok := stringArg(req, "project"); ok {
		p.Project = &v
	}
	if v, ok := stringArg(req, "due"); ok {
		p.Due = &v
	}
	if v, ok := stringArg(req, "priority"); ok {
		p.Priority = &v
	}
	if p.Empty() {
		return mcp.NewToolResultError("nothing to update: pass at least one of tags, project, due, priority"), nil
	}
	e, err := s.svc.UpdateTodo(ctx, loc, p)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(e.Raw), nil
}

func (s *Server) openPeriodic(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireString("kind")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	kind, err := periodic.ParseKind(raw)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	t := s.svc.Now()
	if d, _ := stringArg(req, "date"); d != "" {
		if t, err = dateparse.ParseIn(d, time.Local); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid date %q", d)), nil
		}
	}
	note, err := s.svc.OpenPeriodic(ctx, kind, t)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	verb := "opened"
	if note.Created {
		verb = "created"
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s: %s", verb, note.RelPath)), nil
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	tag, _ := stringArg(req, "tag")
	results, err := s.svc.Search(ctx, query, tag, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results)
}

func (s *Server) refresh(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snap, err := s.svc.Refresh(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("generation %d: %d notes, %d todos", snap.Generation, len(snap.Notes), len(snap.Todos))), nil
}

func (s *Server) getTodoFormat(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(TodoFormatContract), nil
}

func (s *Server) readTodoFormatResource(context.Context, mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      todoFormatURI,
			MIMEType: "text/markdown",
			Text:     TodoFormatContract,
		},
	}, nil
}
