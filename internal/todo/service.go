package todo

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/starford/memento/internal/apperr"
	"github.com/starford/memento/internal/storage"
)

// Service applies line mutations to note files.
type Service struct {
	store storage.Provider
	locks *storage.Locker
	now   func() time.Time
}

// NewService creates a Service. now defaults to time.Now.
func NewService(store storage.Provider, locks *storage.Locker, now func() time.Time) *Service {
	if locks == nil {
		locks = storage.NewLocker()
	}
	if now == nil {
		now = time.Now
	}
	return &Service{store: store, locks: locks, now: now}
}

// Toggle flips the completion state of the item at loc.
func (s *Service) Toggle(ctx context.Context, loc Location) (Entry, error) {
	return s.mutate(ctx, loc, func(line string) (string, error) {
		return ToggleLine(line, s.now())
	})
}

// Update replaces attributes of the item at loc.
func (s *Service) Update(ctx context.Context, loc Location, p Patch) (Entry, error) {
	return s.mutate(ctx, loc, func(line string) (string, error) {
		return UpdateLine(line, p)
	})
}

// mutate rewrites exactly one line. It fails with apperr.ErrConflict, and
// writes nothing, when the line is out of range or no longer a checklist item.
func (s *Service) mutate(ctx context.Context, loc Location, fn func(string) (string, error)) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}
	unlock := s.locks.Lock(loc.RelPath)
	defer unlock()

	data, err := s.store.Read(loc.RelPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Entry{}, fmt.Errorf("todo: %s: %w", loc.RelPath, apperr.ErrNotFound)
		}
		return Entry{}, fmt.Errorf("todo: read %s: %w", loc.RelPath, err)
	}

	lines := strings.Split(string(data), "\n")
	if loc.Line < 1 || loc.Line > len(lines) {
		return Entry{}, fmt.Errorf("todo: %s:%d: %w: line out of range", loc.RelPath, loc.Line, apperr.ErrConflict)
	}
	cur := lines[loc.Line-1]
	if _, ok := ParseLine(cur); !ok {
		return Entry{}, fmt.Errorf("todo: %s:%d: %w: line is no longer a checklist item", loc.RelPath, loc.Line, apperr.ErrConflict)
	}

	next, err := fn(cur)
	if err != nil {
		return Entry{}, err
	}
	lines[loc.Line-1] = next
	if err := s.store.Write(loc.RelPath, []byte(strings.Join(lines, "\n"))); err != nil {
		return Entry{}, fmt.Errorf("todo: write %s: %w", loc.RelPath, err)
	}

	e, _ := ParseLine(next)
	e.RelPath = loc.RelPath
	e.AbsPath, _ = s.store.Abs(loc.RelPath)
	e.File = path.Base(loc.RelPath)
	e.Line = loc.Line
	return e, nil
}
