package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/go-chi/chi/v5"

	"github.com/starford/memento/internal/apperr"
	"github.com/starford/memento/internal/noteservice"
	"github.com/starford/memento/internal/periodic"
	"github.com/starford/memento/internal/sse"
	"github.com/starford/memento/internal/tagtree"
	"github.com/starford/memento/internal/todo"
	"github.com/starford/memento/internal/views"
)

// Notifier receives TODO mutation events.
type Notifier interface {
	PublishTodo(eventType, path string, line int)
}

// Handler holds API route handlers.
type Handler struct {
	svc      *noteservice.Service
	ctrl     *views.Controller
	notifier Notifier
}

// NewHandler creates a new Handler. notifier may be nil.
func NewHandler(svc *noteservice.Service, ctrl *views.Controller, notifier Notifier) *Handler {
	if ctrl == nil {
		ctrl = views.NewController()
	}
	return &Handler{svc: svc, ctrl: ctrl, notifier: notifier}
}

// wildcardPath extracts the path after a wildcard route.
// Supports encoded slashes from OpenAPI clients (e.g. work%2Furgent).
func wildcardPath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// writeError maps sentinel errors to status codes.
func writeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody("line changed on disk; refresh and retry"))
	case errors.Is(err, apperr.ErrInvalid):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	default:
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) (noteservice.Snapshot, bool) {
	snap, err := h.svc.Snapshot(r.Context())
	if err != nil {
		writeError(w, "snapshot", err)
		return noteservice.Snapshot{}, false
	}
	return snap, true
}

// filter starts from the stored view filter and applies query overrides.
func (h *Handler) filter(r *http.Request) (views.Filter, error) {
	f := h.ctrl.State().Filter
	q := r.URL.Query()
	if q.Has("tag") {
		f.Tag = q.Get("tag")
	}
	if q.Has("q") {
		f.Text = q.Get("q")
	}
	if q.Has("project") {
		f.Project = q.Get("project")
	}
	if q.Has("status") {
		s, err := views.ParseStatus(q.Get("status"))
		if err != nil {
			return views.Filter{}, err
		}
		f.Status = s
	}
	return f, nil
}

// ListNotes handles GET /api/notes.
//
//	@Summary		List notes newest first
//	@Tags			notes
//	@Produce		json
//	@Param			tag	query		string	false	"Filter by tag (includes nested tags)"
//	@Param			q	query		string	false	"Filter by title or path"
//	@Success		200	{object}	NoteListResponse
//	@Security		BearerAuth
//	@Router			/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	f, err := h.filter(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	items := toListItems(views.Notes(views.Chronological(snap.Notes), f))
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: items, Total: len(items)})
}

// PinnedNotes handles GET /api/notes/pinned.
func (h *Handler) PinnedNotes(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	items := toListItems(views.Pinned(snap.Notes, snap.Config))
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: items, Total: len(items)})
}

// TagTree handles GET /api/tags.
//
//	@Summary		Get the tag forest
//	@Tags			tags
//	@Produce		json
//	@Success		200	{array}	TagNode
//	@Security		BearerAuth
//	@Router			/tags [get]
func (h *Handler) TagTree(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tags": toTagNodes(snap.Tags)})
}

// TagNode handles GET /api/tags/*.
func (h *Handler) TagNode(w http.ResponseWriter, r *http.Request) {
	tag := wildcardPath(r)
	if tag == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("tag is required"))
		return
	}
	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	node := tagtree.Find(snap.Tags, tag)
	if node == nil {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"node":  toTagNode(node),
		"notes": toListItems(tagtree.Subtree(snap.Tags, tag)),
	})
}

// ListTodos handles GET /api/todos.
//
//	@Summary		List TODO items
//	@Tags			todos
//	@Produce		json
//	@Param			status	query		string	false	"open, done or all"	Enums(open, done, all)
//	@Param			tag		query		string	false	"Filter by tag"
//	@Param			project	query		string	false	"Filter by project"
//	@Success		200		{object}	TodoListResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/todos [get]
func (h *Handler) ListTodos(w http.ResponseWriter, r *http.Request) {
	f, err := h.filter(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	items := views.Todos(snap.Todos, f)
	writeJSON(w, http.StatusOK, TodoListResponse{Todos: items, Total: len(items)})
}

// DueTodos handles GET /api/todos/due?before=YYYY-MM-DD. before defaults to today.
func (h *Handler) DueTodos(w http.ResponseWriter, r *http.Request) {
	before := r.URL.Query().Get("before")
	if before == "" {
		before = h.svc.Now().Format(todo.DateLayout)
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	items, err := h.svc.TodosDue(r.Context(), before, limit)
	if err != nil {
		writeError(w, "due todos", err)
		return
	}
	writeJSON(w, http.StatusOK, TodoListResponse{Todos: items, Total: len(items)})
}

// ToggleTodo handles POST /api/todos/toggle.
//
//	@Summary		Toggle a TODO between open and done
//	@Tags			todos
//	@Accept			json
//	@Produce		json
//	@Param			body	body		TodoLocationRequest	true	"TODO location"
//	@Success		200		{object}	todo.Entry
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/todos/toggle [post]
func (h *Handler) ToggleTodo(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req TodoLocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Path == "" || req.Line < 1 {
		writeJSON(w, http.StatusBadRequest, errorBody("path and line are required"))
		return
	}
	e, err := h.svc.Toggle(r.Context(), todo.Location{RelPath: req.Path, Line: req.Line})
	if err != nil {
		writeError(w, "toggle todo", err)
		return
	}
	h.publish(sse.TypeTodoToggled, e)
	writeJSON(w, http.StatusOK, e)
}

// UpdateTodo handles PATCH /api/todos.
func (h *Handler) UpdateTodo(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req UpdateTodoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Path == "" || req.Line < 1 {
		writeJSON(w, http.StatusBadRequest, errorBody("path and line are required"))
		return
	}
	patch := todo.Patch{Tags: req.Tags, Project: req.Project, Due: req.Due, Priority: req.Priority}
	if patch.Empty() {
		writeJSON(w, http.StatusBadRequest, errorBody("no attributes to update"))
		return
	}
	e, err := h.svc.UpdateTodo(r.Context(), todo.Location{RelPath: req.Path, Line: req.Line}, patch)
	if err != nil {
		writeError(w, "update todo", err)
		return
	}
	h.publish(sse.TypeTodoUpdated, e)
	writeJSON(w, http.StatusOK, e)
}

func (h *Handler) publish(eventType string, e todo.Entry) {
	if h.notifier != nil {
		h.notifier.PublishTodo(eventType, e.RelPath, e.Line)
	}
}

func periodicKind(w http.ResponseWriter, r *http.Request) (periodic.Kind, bool) {
	kind, err := periodic.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorBody(err.Error()))
		return "", false
	}
	return kind, true
}

// ListPeriodic handles GET /api/periodic/{kind}.
func (h *Handler) ListPeriodic(w http.ResponseWriter, r *http.Request) {
	kind, ok := periodicKind(w, r)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 10
	}
	entries, err := h.svc.ListPeriodic(r.Context(), kind, limit)
	if err != nil {
		writeError(w, "list periodic", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"kind": kind, "notes": entries})
}

// OpenPeriodic handles POST /api/periodic/{kind}. It answers 201 when the
// note was created and 200 when it already existed.
//
//	@Summary		Create or open a daily or weekly note
//	@Tags			periodic
//	@Accept			json
//	@Produce		json
//	@Param			kind	path		string				true	"daily or weekly"
//	@Param			body	body		OpenPeriodicRequest	false	"Date inside the period; defaults to today"
//	@Success		200		{object}	periodic.Note
//	@Success		201		{object}	periodic.Note
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/periodic/{kind} [post]
func (h *Handler) OpenPeriodic(w http.ResponseWriter, r *http.Request) {
	kind, ok := periodicKind(w, r)
	if !ok {
		return
	}
	var req OpenPeriodicRequest
	if r.ContentLength != 0 {
		r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
			return
		}
	}
	t := h.svc.Now()
	if req.Date != "" {
		parsed, err := dateparse.ParseIn(req.Date, time.Local)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody(fmt.Sprintf("invalid date %q", req.Date)))
			return
		}
		t = parsed
	}
	note, err := h.svc.OpenPeriodic(r.Context(), kind, t)
	if err != nil {
		writeError(w, "open periodic", err)
		return
	}
	status := http.StatusOK
	if note.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, note)
}

// Calendar handles GET /api/calendar?month=YYYY-MM. month defaults to the
// current month.
func (h *Handler) Calendar(w http.ResponseWriter, r *http.Request) {
	ref := h.svc.Now()
	if m := r.URL.Query().Get("month"); m != "" {
		parsed, err := time.ParseInLocation("2006-01", m, time.Local)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("month must be YYYY-MM"))
			return
		}
		ref = parsed
	}
	month, err := h.svc.Calendar(r.Context(), ref)
	if err != nil {
		writeError(w, "calendar", err)
		return
	}
	writeJSON(w, http.StatusOK, month)
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across notes
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			tag		query		string	false	"Restrict to a tag subtree"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, r.URL.Query().Get("tag"), limit)
	if err != nil {
		slog.Error("search failed", slog.String("query", q), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	out := make([]SearchResult, len(results))
	for i, res := range results {
		out[i] = SearchResult{Path: res.Path, Title: res.Title, Snippet: res.Snippet}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: out})
}

// Refresh handles POST /api/refresh.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	snap, err := h.svc.Refresh(r.Context())
	if err != nil {
		writeError(w, "refresh", err)
		return
	}
	writeJSON(w, http.StatusOK, RefreshResponse{
		Generation: snap.Generation,
		Notes:      len(snap.Notes),
		Todos:      len(snap.Todos),
		ScannedAt:  snap.ScannedAt,
	})
}

// Config handles GET /api/config.
func (h *Handler) Config(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.svc.Config(r.Context())
	if err != nil {
		writeError(w, "config", err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// GetView handles GET /api/view.
func (h *Handler) GetView(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.ctrl.State())
}

// PutView handles PUT /api/view.
func (h *Handler) PutView(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var s views.State
	if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := h.ctrl.Set(s); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, h.ctrl.State())
}
