package internal

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/starford/memento/internal/index"
	"github.com/starford/memento/internal/noteservice"
	"github.com/starford/memento/internal/storage"
)

// NewLogger returns the structured JSON logger used by every command.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// Core is the note service together with the resources it owns.
type Core struct {
	Store   *storage.FS
	Service *noteservice.Service
	db      *index.DB
}

// OpenCore prepares the notes root, opens the index when configured and
// builds the note service. No scan is performed.
func OpenCore(cfg *Config, logger *slog.Logger, opts ...noteservice.Option) (*Core, error) {
	if err := os.MkdirAll(cfg.Notes.Root, 0o755); err != nil {
		return nil, fmt.Errorf("create notes dir: %w", err)
	}
	store, err := storage.NewFS(cfg.Notes.Root)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	c := &Core{Store: store}
	if cfg.SQLite.Enabled() {
		db, err := index.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("init index: %w", err)
		}
		c.db = db
		opts = append(opts, noteservice.WithIndex(db))
	}
	c.Service = noteservice.NewService(store, logger, opts...)
	return c, nil
}

// Close releases the index.
func (c *Core) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}
