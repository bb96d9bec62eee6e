package index

import (
	"context"

	"github.com/starford/memento/internal/models"
	"github.com/starford/memento/internal/todo"
)

// SnapshotIndex is what the note service needs from the index.
// Consumers should depend on this interface rather than the concrete *DB type.
type SnapshotIndex interface {
	ReplaceSnapshot(ctx context.Context, gen int64, notes []models.NoteRecord, todos []todo.Entry) (bool, error)
	Generation() (int64, error)
	Search(query string, limit int) ([]SearchResult, error)
	Tagged(tag string) (map[string]struct{}, error)
	TodosDue(before string, limit int) ([]todo.Entry, error)
	Close() error
}

// Verify *DB satisfies SnapshotIndex at compile time.
var _ SnapshotIndex = (*DB)(nil)
