// Package noteservice owns the installed scan snapshot and orchestrates
// scans, TODO mutations and periodic notes on top of it.
package noteservice

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/starford/memento/internal/apperr"
	"github.com/starford/memento/internal/calendar"
	"github.com/starford/memento/internal/index"
	"github.com/starford/memento/internal/memento"
	"github.com/starford/memento/internal/models"
	"github.com/starford/memento/internal/periodic"
	"github.com/starford/memento/internal/scanner"
	"github.com/starford/memento/internal/storage"
	"github.com/starford/memento/internal/tagtree"
	"github.com/starford/memento/internal/todo"
)

// Snapshot is the result of one completed scan. It is never modified after
// installation.
type Snapshot struct {
	Generation int64               `json:"generation"`
	Config     memento.Config      `json:"config"`
	Notes      []models.NoteRecord `json:"notes"`
	Tags       []*tagtree.Node     `json:"tags"`
	Todos      []todo.Entry        `json:"todos"`
	ScannedAt  time.Time           `json:"scanned_at"`
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now, used for end_time stamps and "today".
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIndex mirrors every installed snapshot into idx and serves search
// and due-date queries from it.
func WithIndex(idx index.SnapshotIndex) Option {
	return func(s *Service) { s.idx = idx }
}

// Service coordinates scanning, the index and file mutations.
type Service struct {
	store    storage.Provider
	logger   *slog.Logger
	scanner  *scanner.Scanner
	todos    *todo.Service
	periodic *periodic.Service
	idx      index.SnapshotIndex
	now      func() time.Time

	gen atomic.Int64

	mu        sync.RWMutex
	snap      Snapshot
	onRefresh []func(Snapshot)
}

// NewService creates a note service over store.
func NewService(store storage.Provider, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:    store,
		logger:   logger,
		scanner:  scanner.New(store, logger),
		periodic: periodic.NewService(store, logger),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.todos = todo.NewService(store, storage.NewLocker(), s.now)
	if s.idx != nil {
		// Continue numbering after the last snapshot persisted in the index.
		if gen, err := s.idx.Generation(); err == nil {
			s.gen.Store(gen)
		} else {
			logger.Warn("noteservice: read index generation failed", slog.String("error", err.Error()))
		}
	}
	return s
}

// OnRefresh registers fn to run after every installed snapshot.
func (s *Service) OnRefresh(fn func(Snapshot)) {
	s.mu.Lock()
	s.onRefresh = append(s.onRefresh, fn)
	s.mu.Unlock()
}

// Current returns the installed snapshot. Generation is 0 before the first
// successful refresh.
func (s *Service) Current() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Refresh loads the memento config, scans the notes root and installs the
// result. A scan that finishes after a newer one has been installed is
// dropped and the newer snapshot is returned instead.
func (s *Service) Refresh(ctx context.Context) (Snapshot, error) {
	gen := s.gen.Add(1)
	cfg := memento.Load(s.store, s.logger)

	notes, err := s.scanner.Scan(ctx, cfg)
	if err != nil {
		return Snapshot{}, fmt.Errorf("noteservice: refresh: %w", err)
	}
	next := Snapshot{
		Generation: gen,
		Config:     cfg,
		Notes:      notes,
		Tags:       tagtree.Build(notes),
		Todos:      nonNil(todo.Collect(notes)),
		ScannedAt:  s.now(),
	}

	s.mu.Lock()
	if gen < s.snap.Generation {
		cur := s.snap
		s.mu.Unlock()
		s.logger.Debug("noteservice: stale scan dropped",
			slog.Int64("generation", gen),
			slog.Int64("installed", cur.Generation))
		return cur, nil
	}
	s.snap = next
	hooks := append([]func(Snapshot){}, s.onRefresh...)
	s.mu.Unlock()

	if s.idx != nil {
		if _, err := s.idx.ReplaceSnapshot(ctx, gen, notes, next.Todos); err != nil {
			s.logger.Warn("noteservice: index update failed", slog.String("error", err.Error()))
		}
	}
	s.logger.Info("noteservice: snapshot installed",
		slog.Int64("generation", gen),
		slog.Int("notes", len(notes)),
		slog.Int("todos", len(next.Todos)))

	for _, fn := range hooks {
		fn(next)
	}
	return next, nil
}

// ensure returns the installed snapshot, refreshing first when none exists.
func (s *Service) ensure(ctx context.Context) (Snapshot, error) {
	if snap := s.Current(); snap.Generation > 0 {
		return snap, nil
	}
	return s.Refresh(ctx)
}

// Snapshot returns the installed snapshot, scanning once if needed.
func (s *Service) Snapshot(ctx context.Context) (Snapshot, error) {
	return s.ensure(ctx)
}

// Config returns the memento config of the installed snapshot.
func (s *Service) Config(ctx context.Context) (memento.Config, error) {
	snap, err := s.ensure(ctx)
	if err != nil {
		return memento.Config{}, err
	}
	return snap.Config, nil
}

// Toggle flips a TODO and rescans so line numbers and views are fresh.
func (s *Service) Toggle(ctx context.Context, loc todo.Location) (todo.Entry, error) {
	e, err := s.todos.Toggle(ctx, loc)
	if err != nil {
		return todo.Entry{}, err
	}
	s.rescan(ctx)
	return e, nil
}

// UpdateTodo rewrites a TODO's attributes and rescans.
func (s *Service) UpdateTodo(ctx context.Context, loc todo.Location, p todo.Patch) (todo.Entry, error) {
	e, err := s.todos.Update(ctx, loc, p)
	if err != nil {
		return todo.Entry{}, err
	}
	s.rescan(ctx)
	return e, nil
}

func (s *Service) rescan(ctx context.Context) {
	if _, err := s.Refresh(ctx); err != nil {
		s.logger.Warn("noteservice: rescan after write failed", slog.String("error", err.Error()))
	}
}

// OpenPeriodic creates or opens the note of kind for the period containing t.
func (s *Service) OpenPeriodic(ctx context.Context, kind periodic.Kind, t time.Time) (periodic.Note, error) {
	cfg, err := s.Config(ctx)
	if err != nil {
		return periodic.Note{}, err
	}
	note, err := s.periodic.Open(ctx, cfg, kind, t)
	if err != nil {
		return periodic.Note{}, err
	}
	if note.Created {
		s.rescan(ctx)
	}
	return note, nil
}

// ListPeriodic returns existing notes of kind, newest first.
func (s *Service) ListPeriodic(ctx context.Context, kind periodic.Kind, limit int) ([]periodic.Entry, error) {
	cfg, err := s.Config(ctx)
	if err != nil {
		return nil, err
	}
	return s.periodic.List(ctx, cfg, kind, limit)
}

// Calendar builds the month grid containing ref.
func (s *Service) Calendar(ctx context.Context, ref time.Time) (calendar.Month, error) {
	daily, err := s.ListPeriodic(ctx, periodic.Daily, 0)
	if err != nil {
		return calendar.Month{}, err
	}
	weekly, err := s.ListPeriodic(ctx, periodic.Weekly, 0)
	if err != nil {
		return calendar.Month{}, err
	}
	return calendar.Build(ref, daily, weekly, s.now()), nil
}

// Search finds notes matching query, optionally restricted to a tag
// subtree. Without an index it falls back to a substring match over the
// installed snapshot.
func (s *Service) Search(ctx context.Context, query, tag string, limit int) ([]index.SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	if s.idx == nil {
		return s.searchSnapshot(ctx, query, tag, limit)
	}
	if _, err := s.ensure(ctx); err != nil {
		return nil, err
	}
	fetch := limit
	if tag != "" {
		fetch = limit * 5
	}
	hits, err := s.idx.Search(query, fetch)
	if err != nil {
		return nil, fmt.Errorf("noteservice: search: %w", err)
	}
	if tag == "" {
		return hits, nil
	}
	allowed, err := s.idx.Tagged(tag)
	if err != nil {
		return nil, fmt.Errorf("noteservice: search: %w", err)
	}
	out := []index.SearchResult{}
	for _, h := range hits {
		if _, ok := allowed[h.Path]; ok {
			out = append(out, h)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (s *Service) searchSnapshot(ctx context.Context, query, tag string, limit int) ([]index.SearchResult, error) {
	snap, err := s.ensure(ctx)
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(query)
	tag = strings.Trim(strings.TrimPrefix(tag, "#"), "/")
	out := []index.SearchResult{}
	for _, n := range snap.Notes {
		if tag != "" && !tagged(n.Tags, tag) {
			continue
		}
		body := string(n.Content)
		pos := strings.Index(strings.ToLower(body), q)
		if pos < 0 && !strings.Contains(strings.ToLower(n.Title), q) {
			continue
		}
		out = append(out, index.SearchResult{Path: n.RelPath, Title: n.Title, Snippet: snippet(body, pos)})
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// TodosDue returns open TODOs due on or before before (YYYY-MM-DD).
func (s *Service) TodosDue(ctx context.Context, before string, limit int) ([]todo.Entry, error) {
	if _, err := time.Parse(todo.DateLayout, before); err != nil {
		return nil, fmt.Errorf("noteservice: due date %q: %w", before, apperr.ErrInvalid)
	}
	snap, err := s.ensure(ctx)
	if err != nil {
		return nil, err
	}
	if s.idx != nil {
		return s.idx.TodosDue(before, limit)
	}
	out := []todo.Entry{}
	for _, e := range snap.Todos {
		if !e.Completed && e.Due != "" && e.Due <= before {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Due < out[j].Due })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Now returns the service clock's current time.
func (s *Service) Now() time.Time { return s.now() }

func tagged(tags []string, want string) bool {
	for _, t := range tags {
		if t == want || strings.HasPrefix(t, want+"/") {
			return true
		}
	}
	return false
}

func snippet(body string, pos int) string {
	const width = 200
	start := 0
	if pos > width/2 && pos < len(body) {
		start = pos - width/2
		for start > 0 && !utf8.RuneStart(body[start]) {
			start--
		}
	}
	r := []rune(body[start:])
	if len(r) > width {
		r = r[:width]
	}
	return strings.ToValidUTF8(string(r), "")
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
