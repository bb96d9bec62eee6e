package api

import (
	"time"

	"github.com/starford/memento/internal/models"
	"github.com/starford/memento/internal/tagtree"
	"github.com/starford/memento/internal/todo"
)

// TodoLocationRequest identifies one TODO line.
type TodoLocationRequest struct {
	Path string `json:"path" example:"inbox.md" validate:"required"`
	Line int    `json:"line" example:"5" validate:"required"`
}

// UpdateTodoRequest carries a TODO location and the attributes to replace.
// Omitted attributes keep their current value; an empty string clears one.
type UpdateTodoRequest struct {
	Path     string    `json:"path" example:"inbox.md" validate:"required"`
	Line     int       `json:"line" example:"5" validate:"required"`
	Tags     *[]string `json:"tags,omitempty" example:"errand,home"`
	Project  *string   `json:"project,omitempty" example:"house"`
	Due      *string   `json:"due,omitempty" example:"2025-02-01"`
	Priority *string   `json:"priority,omitempty" example:"H"`
}

// OpenPeriodicRequest is the optional body of POST /periodic/{kind}.
type OpenPeriodicRequest struct {
	Date string `json:"date,omitempty" example:"2025-01-13"`
}

// NoteListItem is a lightweight note in list responses.
type NoteListItem struct {
	Path  string    `json:"path" example:"work/plan.md" validate:"required"`
	Title string    `json:"title" example:"Plan" validate:"required"`
	Date  time.Time `json:"date"`
	Tags  []string  `json:"tags" example:"work/q1"`
}

// NoteListResponse wraps note listings.
type NoteListResponse struct {
	Notes []NoteListItem `json:"notes" validate:"required"`
	Total int            `json:"total" example:"42" validate:"required"`
}

// TagNode is one node of the tag forest in API responses.
type TagNode struct {
	Label    string         `json:"label" example:"urgent"`
	Path     string         `json:"path" example:"work/urgent"`
	Files    []NoteListItem `json:"files"`
	Children []TagNode      `json:"children"`
}

// TodoListResponse wraps TODO listings.
type TodoListResponse struct {
	Todos []todo.Entry `json:"todos" validate:"required"`
	Total int          `json:"total" validate:"required"`
}

// SearchResult is a single search hit in the API response.
type SearchResult struct {
	Path    string `json:"path" example:"notes/hello.md" validate:"required"`
	Title   string `json:"title" example:"Hello" validate:"required"`
	Snippet string `json:"snippet" example:"...matched text..." validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []SearchResult `json:"results" validate:"required"`
}

// RefreshResponse summarises an installed snapshot.
type RefreshResponse struct {
	Generation int64     `json:"generation"`
	Notes      int       `json:"notes"`
	Todos      int       `json:"todos"`
	ScannedAt  time.Time `json:"scanned_at"`
}

func toListItems(records []models.NoteRecord) []NoteListItem {
	out := make([]NoteListItem, len(records))
	for i, r := range records {
		tags := r.Tags
		if tags == nil {
			tags = []string{}
		}
		out[i] = NoteListItem{Path: r.RelPath, Title: r.Title, Date: r.Date, Tags: tags}
	}
	return out
}

func toTagNodes(nodes []*tagtree.Node) []TagNode {
	out := make([]TagNode, len(nodes))
	for i, n := range nodes {
		out[i] = toTagNode(n)
	}
	return out
}

func toTagNode(n *tagtree.Node) TagNode {
	return TagNode{
		Label:    n.Label,
		Path:     n.Path,
		Files:    toListItems(n.Files),
		Children: toTagNodes(n.Children),
	}
}
