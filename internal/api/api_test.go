package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/memento/internal/noteservice"
	"github.com/starford/memento/internal/periodic"
	"github.com/starford/memento/internal/sse"
	"github.com/starford/memento/internal/testutil"
	"github.com/starford/memento/internal/todo"
	"github.com/starford/memento/internal/views"
)

var fixedNow = time.Date(2025, 1, 15, 9, 30, 0, 0, time.UTC)

var vault = map[string]string{
	"inbox.md":             "---\ntitle: Inbox\ntags: [work/urgent]\n---\n- [ ] Buy milk #errand due:2025-01-10\n- [x] Done thing end_time:2025-01-02\n",
	"work/plan.md":         "# Plan\n\nSome #work/q1 notes.\n\n- [ ] Ship it due:2025-02-01 priority:H\n",
	".memento/config.json": `{"pinnedFiles": ["work/plan.md"]}`,
}

type recordedEvent struct {
	Type string
	Path string
	Line int
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (f *fakeNotifier) PublishTodo(eventType, path string, line int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, recordedEvent{eventType, path, line})
}

type env struct {
	svc      *noteservice.Service
	router   http.Handler
	root     string
	notifier *fakeNotifier
}

// testEnv sets up a temp notes root, SQLite DB, service, and router for testing.
// An empty authToken means disabled mode.
func testEnv(t *testing.T, authToken string) *env {
	t.Helper()
	return testEnvWithSSE(t, authToken != "", authToken, nil)
}

func testEnvWithSSE(t *testing.T, authEnabled bool, token string, sseHandler http.Handler) *env {
	t.Helper()
	root, store := testutil.TestVault(t, vault)
	svc := noteservice.NewService(store, testutil.Logger(),
		noteservice.WithClock(func() time.Time { return fixedNow }),
		noteservice.WithIndex(testutil.TestDB(t)),
	)
	n := &fakeNotifier{}
	router := NewRouter(svc, views.NewController(), authEnabled, token, sseHandler, n)
	return &env{svc: svc, router: router, root: root, notifier: n}
}

func (e *env) do(t *testing.T, method, target string, body any, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(data)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, rd)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return v
}

func TestListNotes(t *testing.T) {
	e := testEnv(t, "")

	w := e.do(t, http.MethodGet, "/notes", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list = %d, body = %s", w.Code, w.Body.String())
	}
	resp := decode[NoteListResponse](t, w)
	if resp.Total != 2 {
		t.Errorf("total = %d, want 2", resp.Total)
	}

	w = e.do(t, http.MethodGet, "/notes?tag=work/urgent", nil)
	resp = decode[NoteListResponse](t, w)
	if resp.Total != 1 || resp.Notes[0].Path != "inbox.md" {
		t.Errorf("tag filter = %+v", resp)
	}
}

func TestListNotesUsesViewFilter(t *testing.T) {
	e := testEnv(t, "")

	w := e.do(t, http.MethodPut, "/view", views.State{Mode: views.ModeTags, Filter: views.Filter{Tag: "work/q1"}})
	if w.Code != http.StatusOK {
		t.Fatalf("put view = %d, body = %s", w.Code, w.Body.String())
	}
	resp := decode[NoteListResponse](t, e.do(t, http.MethodGet, "/notes", nil))
	if resp.Total != 1 || resp.Notes[0].Path != "work/plan.md" {
		t.Errorf("notes = %+v", resp)
	}

	state := decode[views.State](t, e.do(t, http.MethodGet, "/view", nil))
	if state.Mode != views.ModeTags || state.Filter.Status != views.StatusAll {
		t.Errorf("state = %+v", state)
	}
}

func TestPutViewInvalid(t *testing.T) {
	e := testEnv(t, "")
	w := e.do(t, http.MethodPut, "/view", map[string]any{"mode": "grid"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid mode = %d, want 400", w.Code)
	}
}

func TestPinnedNotes(t *testing.T) {
	e := testEnv(t, "")
	resp := decode[NoteListResponse](t, e.do(t, http.MethodGet, "/notes/pinned", nil))
	if resp.Total != 1 || resp.Notes[0].Path != "work/plan.md" {
		t.Errorf("pinned = %+v", resp)
	}
}

func TestTagTree(t *testing.T) {
	e := testEnv(t, "")

	w := e.do(t, http.MethodGet, "/tags", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("tags = %d", w.Code)
	}
	forest := decode[map[string][]TagNode](t, w)["tags"]
	var labels []string
	for _, n := range forest {
		labels = append(labels, n.Label)
	}
	if strings.Join(labels, ",") != "errand,work" {
		t.Errorf("roots = %v", labels)
	}

	w = e.do(t, http.MethodGet, "/tags/work", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("tag node = %d", w.Code)
	}
	body := decode[struct {
		Node  TagNode        `json:"node"`
		Notes []NoteListItem `json:"notes"`
	}](t, w)
	if len(body.Node.Children) != 2 || len(body.Notes) != 2 {
		t.Errorf("work node = %+v", body)
	}

	if w := e.do(t, http.MethodGet, "/tags/work%2Furgent", nil); w.Code != http.StatusOK {
		t.Errorf("encoded tag = %d, want 200", w.Code)
	}
	if w := e.do(t, http.MethodGet, "/tags/nope", nil); w.Code != http.StatusNotFound {
		t.Errorf("missing tag = %d, want 404", w.Code)
	}
}

func TestListTodos(t *testing.T) {
	e := testEnv(t, "")

	resp := decode[TodoListResponse](t, e.do(t, http.MethodGet, "/todos?status=open", nil))
	if resp.Total != 2 {
		t.Errorf("open todos = %d, want 2", resp.Total)
	}
	resp = decode[TodoListResponse](t, e.do(t, http.MethodGet, "/todos?status=done", nil))
	if resp.Total != 1 || resp.Todos[0].Content != "Done thing" {
		t.Errorf("done todos = %+v", resp)
	}
	if w := e.do(t, http.MethodGet, "/todos?status=later", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad status = %d, want 400", w.Code)
	}
}

func TestDueTodos(t *testing.T) {
	e := testEnv(t, "")

	resp := decode[TodoListResponse](t, e.do(t, http.MethodGet, "/todos/due", nil))
	if resp.Total != 1 || resp.Todos[0].Content != "Buy milk" {
		t.Errorf("due today = %+v", resp)
	}
	resp = decode[TodoListResponse](t, e.do(t, http.MethodGet, "/todos/due?before=2025-12-31", nil))
	if resp.Total != 2 {
		t.Errorf("due by year end = %d, want 2", resp.Total)
	}
	if w := e.do(t, http.MethodGet, "/todos/due?before=tomorrow", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad date = %d, want 400", w.Code)
	}
}

func TestToggleTodo(t *testing.T) {
	e := testEnv(t, "")

	w := e.do(t, http.MethodPost, "/todos/toggle", TodoLocationRequest{Path: "inbox.md", Line: 5})
	if w.Code != http.StatusOK {
		t.Fatalf("toggle = %d, body = %s", w.Code, w.Body.String())
	}
	entry := decode[todo.Entry](t, w)
	if !entry.Completed || entry.EndTime != "2025-01-15" {
		t.Errorf("entry = %+v", entry)
	}
	if !strings.Contains(testutil.ReadFile(t, e.root, "inbox.md"), "- [x] Buy milk") {
		t.Error("file not rewritten")
	}
	if len(e.notifier.events) != 1 || e.notifier.events[0] != (recordedEvent{sse.TypeTodoToggled, "inbox.md", 5}) {
		t.Errorf("events = %+v", e.notifier.events)
	}
}

func TestToggleTodoErrors(t *testing.T) {
	e := testEnv(t, "")

	cases := []struct {
		name string
		body any
		want int
	}{
		{"not a checklist line", TodoLocationRequest{Path: "inbox.md", Line: 1}, http.StatusConflict},
		{"past end of file", TodoLocationRequest{Path: "inbox.md", Line: 99}, http.StatusConflict},
		{"missing file", TodoLocationRequest{Path: "ghost.md", Line: 1}, http.StatusNotFound},
		{"missing line", map[string]string{"path": "inbox.md"}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if w := e.do(t, http.MethodPost, "/todos/toggle", tc.body); w.Code != tc.want {
				t.Errorf("status = %d, want %d", w.Code, tc.want)
			}
		})
	}
	if len(e.notifier.events) != 0 {
		t.Errorf("failed toggles published events: %+v", e.notifier.events)
	}
}

func TestUpdateTodo(t *testing.T) {
	e := testEnv(t, "")

	project := "launch"
	w := e.do(t, http.MethodPatch, "/todos", UpdateTodoRequest{Path: "work/plan.md", Line: 5, Project: &project})
	if w.Code != http.StatusOK {
		t.Fatalf("update = %d, body = %s", w.Code, w.Body.String())
	}
	entry := decode[todo.Entry](t, w)
	if entry.Project != "launch" || entry.Due != "2025-02-01" {
		t.Errorf("entry = %+v", entry)
	}
	if e.notifier.events[0].Type != sse.TypeTodoUpdated {
		t.Errorf("events = %+v", e.notifier.events)
	}

	if w := e.do(t, http.MethodPatch, "/todos", UpdateTodoRequest{Path: "work/plan.md", Line: 5}); w.Code != http.StatusBadRequest {
		t.Errorf("empty patch = %d, want 400", w.Code)
	}
	bad := "next week"
	if w := e.do(t, http.MethodPatch, "/todos", UpdateTodoRequest{Path: "work/plan.md", Line: 5, Due: &bad}); w.Code != http.StatusBadRequest {
		t.Errorf("bad due = %d, want 400", w.Code)
	}
}

func TestOpenPeriodic(t *testing.T) {
	e := testEnv(t, "")

	w := e.do(t, http.MethodPost, "/periodic/daily", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("first open = %d, body = %s", w.Code, w.Body.String())
	}
	note := decode[periodic.Note](t, w)
	if note.RelPath != "daily/2025-01-15.md" {
		t.Errorf("path = %q", note.RelPath)
	}
	if w := e.do(t, http.MethodPost, "/periodic/daily", nil); w.Code != http.StatusOK {
		t.Errorf("second open = %d, want 200", w.Code)
	}

	w = e.do(t, http.MethodPost, "/periodic/weekly", OpenPeriodicRequest{Date: "2025-01-13"})
	if w.Code != http.StatusCreated {
		t.Fatalf("weekly = %d, body = %s", w.Code, w.Body.String())
	}
	if note := decode[periodic.Note](t, w); note.RelPath != "weekly/2025-W03.md" {
		t.Errorf("weekly path = %q", note.RelPath)
	}

	list := decode[struct {
		Notes []periodic.Entry `json:"notes"`
	}](t, e.do(t, http.MethodGet, "/periodic/daily", nil))
	if len(list.Notes) != 1 {
		t.Errorf("daily list = %+v", list)
	}

	if w := e.do(t, http.MethodPost, "/periodic/monthly", nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown kind = %d, want 404", w.Code)
	}
	if w := e.do(t, http.MethodPost, "/periodic/daily", OpenPeriodicRequest{Date: "not a date"}); w.Code != http.StatusBadRequest {
		t.Errorf("bad date = %d, want 400", w.Code)
	}
}

func TestCalendar(t *testing.T) {
	e := testEnv(t, "")

	w := e.do(t, http.MethodGet, "/calendar?month=2021-02", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("calendar = %d", w.Code)
	}
	month := decode[struct {
		Weeks []struct {
			Week int `json:"week"`
		} `json:"weeks"`
	}](t, w)
	if len(month.Weeks) != 4 || month.Weeks[0].Week != 5 {
		t.Errorf("weeks = %+v", month.Weeks)
	}
	if w := e.do(t, http.MethodGet, "/calendar?month=feb", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad month = %d, want 400", w.Code)
	}
}

func TestSearchEndpoint(t *testing.T) {
	e := testEnv(t, "")

	w := e.do(t, http.MethodGet, "/search?q=milk", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("search = %d, body = %s", w.Code, w.Body.String())
	}
	resp := decode[SearchResponse](t, w)
	if len(resp.Results) != 1 || resp.Results[0].Path != "inbox.md" {
		t.Errorf("results = %+v", resp.Results)
	}
}

func TestSearchMissingQuery(t *testing.T) {
	e := testEnv(t, "")
	if w := e.do(t, http.MethodGet, "/search", nil); w.Code != http.StatusBadRequest {
		t.Errorf("search no query = %d, want 400", w.Code)
	}
}

func TestRefreshAndConfig(t *testing.T) {
	e := testEnv(t, "")

	first := decode[RefreshResponse](t, e.do(t, http.MethodPost, "/refresh", nil))
	second := decode[RefreshResponse](t, e.do(t, http.MethodPost, "/refresh", nil))
	if second.Generation <= first.Generation || second.Notes != 2 || second.Todos != 3 {
		t.Errorf("refresh = %+v then %+v", first, second)
	}

	cfg := decode[map[string]any](t, e.do(t, http.MethodGet, "/config", nil))
	if pinned, _ := cfg["pinnedFiles"].([]any); len(pinned) != 1 {
		t.Errorf("config = %+v", cfg)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	e := testEnv(t, "secret123")
	if w := e.do(t, http.MethodGet, "/notes", nil, "Authorization", "Bearer secret123"); w.Code != http.StatusOK {
		t.Errorf("authed list = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	e := testEnv(t, "secret123")
	if w := e.do(t, http.MethodGet, "/notes", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	e := testEnv(t, "secret123")
	if w := e.do(t, http.MethodGet, "/notes", nil, "Authorization", "Bearer wrong"); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	e := testEnv(t, "")
	if w := e.do(t, http.MethodGet, "/notes", nil); w.Code != http.StatusOK {
		t.Errorf("no auth = %d, want 200", w.Code)
	}
}

// SSE endpoint auth tests.

// blockingSSE writes headers and blocks until the request context is done.
var blockingSSE = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	<-r.Context().Done()
})

func serveSSE(t *testing.T, e *env, header ...string) int {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w.Code
}

func TestSSEEvents_AuthProtected(t *testing.T) {
	e := testEnvWithSSE(t, true, "secret", blockingSSE)
	if code := serveSSE(t, e); code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", code)
	}
}

func TestSSEEvents_AuthDisabled(t *testing.T) {
	e := testEnvWithSSE(t, false, "", blockingSSE)
	if code := serveSSE(t, e); code == http.StatusUnauthorized {
		t.Error("SSE should not require auth when disabled")
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	e := testEnvWithSSE(t, true, "tok", blockingSSE)
	if code := serveSSE(t, e, "Authorization", "Bearer tok"); code == http.StatusUnauthorized {
		t.Error("SSE with valid token should not 401")
	}
}
