// Package views holds the current presentation state and the query
// functions that turn a scan snapshot into ordered lists.
package views

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/memento/internal/memento"
	"github.com/starford/memento/internal/models"
	"github.com/starford/memento/internal/todo"
)

// Mode selects how notes are presented.
type Mode string

const (
	ModeChronological Mode = "chronological"
	ModeTags          Mode = "tags"
)

// Status filters TODOs by completion.
type Status string

const (
	StatusAll  Status = "all"
	StatusOpen Status = "open"
	StatusDone Status = "done"
)

// ParseStatus maps an empty string to StatusAll and rejects unknown values.
func ParseStatus(s string) (Status, error) {
	switch Status(strings.ToLower(s)) {
	case "", StatusAll:
		return StatusAll, nil
	case StatusOpen:
		return StatusOpen, nil
	case StatusDone:
		return StatusDone, nil
	}
	return "", fmt.Errorf("views: unknown status %q", s)
}

// Filter narrows note and TODO lists. Zero values match everything.
type Filter struct {
	Tag     string `json:"tag"`
	Text    string `json:"text"`
	Status  Status `json:"status"`
	Project string `json:"project"`
}

// State is the view mode plus the active filter.
type State struct {
	Mode   Mode   `json:"mode"`
	Filter Filter `json:"filter"`
}

// Validate checks mode and status values.
func (s *State) Validate() error {
	return validation.ValidateStruct(s,
		validation.Field(&s.Mode, validation.Required, validation.In(ModeChronological, ModeTags)),
		validation.Field(&s.Filter),
	)
}

// Validate checks the status value.
func (f Filter) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Status, validation.In(StatusAll, StatusOpen, StatusDone)),
	)
}

// Controller owns the view state shared by the HTTP and TUI surfaces.
type Controller struct {
	mu    sync.RWMutex
	state State
}

// NewController starts in chronological mode with an empty filter.
func NewController() *Controller {
	return &Controller{state: State{Mode: ModeChronological, Filter: Filter{Status: StatusAll}}}
}

// State returns a copy of the current state.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Set replaces the state after validating it.
func (c *Controller) Set(s State) error {
	if s.Filter.Status == "" {
		s.Filter.Status = StatusAll
	}
	if err := s.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
	return nil
}

// SetMode changes only the mode.
func (c *Controller) SetMode(m Mode) error {
	s := c.State()
	s.Mode = m
	return c.Set(s)
}

// SetFilter changes only the filter.
func (c *Controller) SetFilter(f Filter) error {
	s := c.State()
	s.Filter = f
	return c.Set(s)
}

// Chronological returns records newest first; ties are ordered by path.
// The input is not modified.
func Chronological(records []models.NoteRecord) []models.NoteRecord {
	out := make([]models.NoteRecord, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].RelPath < out[j].RelPath
	})
	return out
}

// Notes applies the tag and text parts of f, keeping input order.
func Notes(records []models.NoteRecord, f Filter) []models.NoteRecord {
	text := strings.ToLower(strings.TrimSpace(f.Text))
	out := []models.NoteRecord{}
	for _, r := range records {
		if f.Tag != "" && !hasTag(r.Tags, f.Tag) {
			continue
		}
		if text != "" && !strings.Contains(strings.ToLower(r.Title), text) &&
			!strings.Contains(strings.ToLower(r.RelPath), text) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Todos applies status, tag, project and text filters and orders the result
// by file then line.
func Todos(entries []todo.Entry, f Filter) []todo.Entry {
	text := strings.ToLower(strings.TrimSpace(f.Text))
	out := []todo.Entry{}
	for _, e := range entries {
		switch f.Status {
		case StatusOpen:
			if e.Completed {
				continue
			}
		case StatusDone:
			if !e.Completed {
				continue
			}
		}
		if f.Tag != "" && !hasTag(e.Tags, f.Tag) {
			continue
		}
		if f.Project != "" && e.Project != f.Project {
			continue
		}
		if text != "" && !strings.Contains(strings.ToLower(e.Content), text) {
			continue
		}
		out = append(out, e)
	}
	todo.Sort(out)
	return out
}

// Pinned returns the configured pinned files in configuration order, then
// every other note carrying a pinned tag, ordered by path. Pinned files
// that were not found by the scan are skipped.
func Pinned(records []models.NoteRecord, cfg memento.Config) []models.NoteRecord {
	byPath := make(map[string]models.NoteRecord, len(records))
	for _, r := range records {
		byPath[r.RelPath] = r
	}
	seen := make(map[string]struct{})
	out := []models.NoteRecord{}
	for _, p := range cfg.PinnedFiles {
		p = strings.TrimPrefix(p, "./")
		r, ok := byPath[p]
		if !ok {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, r)
	}

	var tagged []models.NoteRecord
	for _, r := range records {
		if _, dup := seen[r.RelPath]; dup {
			continue
		}
		for _, t := range cfg.PinnedTags {
			if hasTag(r.Tags, t) {
				tagged = append(tagged, r)
				seen[r.RelPath] = struct{}{}
				break
			}
		}
	}
	sort.Slice(tagged, func(i, j int) bool { return tagged[i].RelPath < tagged[j].RelPath })
	return append(out, tagged...)
}

// hasTag reports whether tags contains want or a tag nested below it.
func hasTag(tags []string, want string) bool {
	want = strings.Trim(strings.TrimPrefix(want, "#"), "/")
	if want == "" {
		return true
	}
	for _, t := range tags {
		if t == want || strings.HasPrefix(t, want+"/") {
			return true
		}
	}
	return false
}
