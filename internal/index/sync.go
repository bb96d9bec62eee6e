package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/starford/memento/internal/models"
	"github.com/starford/memento/internal/todo"
)

// ReplaceSnapshot brings the index in line with one completed scan:
//   - new/changed notes (by checksum) are upserted
//   - notes missing from the scan are deleted
//   - tags and TODOs are replaced wholesale
//
// A snapshot older than the installed generation is ignored and reported
// with applied == false.
func (db *DB) ReplaceSnapshot(ctx context.Context, gen int64, notes []models.NoteRecord, todos []todo.Entry) (applied bool, err error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	current, err := generation(tx)
	if err != nil {
		return false, err
	}
	if gen < current {
		return false, nil
	}

	checksums, err := allChecksums(tx)
	if err != nil {
		return false, err
	}

	now := time.Now()
	seen := make(map[string]struct{}, len(notes))
	for _, n := range notes {
		seen[n.RelPath] = struct{}{}
		if cs, ok := checksums[n.RelPath]; ok && cs == n.Checksum && n.Checksum != "" {
			continue
		}
		row := NoteRow{
			Path:      n.RelPath,
			Title:     n.Title,
			Checksum:  n.Checksum,
			Tags:      nonNil(n.Tags),
			Date:      n.Date,
			UpdatedAt: now,
		}
		if err := upsertNote(tx, row, string(n.Content)); err != nil {
			return false, err
		}
	}

	// Remove stale entries.
	for p := range checksums {
		if _, ok := seen[p]; !ok {
			if err := deleteNote(tx, p); err != nil {
				return false, err
			}
		}
	}

	if err := replaceTags(tx, notes); err != nil {
		return false, err
	}
	if err := replaceTodos(tx, todos); err != nil {
		return false, err
	}
	if err := setGeneration(tx, gen); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("index: commit: %w", err)
	}
	return true, nil
}

func replaceTags(tx *sql.Tx, notes []models.NoteRecord) error {
	if _, err := tx.Exec(`DELETE FROM note_tags`); err != nil {
		return fmt.Errorf("index: clear tags: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT OR IGNORE INTO note_tags (path, tag) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("index: prepare tag insert: %w", err)
	}
	defer stmt.Close()
	for _, n := range notes {
		for _, tag := range n.Tags {
			if _, err := stmt.Exec(n.RelPath, tag); err != nil {
				return fmt.Errorf("index: insert tag: %w", err)
			}
		}
	}
	return nil
}

func replaceTodos(tx *sql.Tx, todos []todo.Entry) error {
	if _, err := tx.Exec(`DELETE FROM todos`); err != nil {
		return fmt.Errorf("index: clear todos: %w", err)
	}
	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO todos (path, line, completed, indent, content, tags, project, due, priority, end_time, raw)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("index: prepare todo insert: %w", err)
	}
	defer stmt.Close()
	for _, e := range todos {
		tagsJSON, _ := json.Marshal(nonNil(e.Tags))
		if _, err := stmt.Exec(e.RelPath, e.Line, e.Completed, e.Indent, e.Content, string(tagsJSON),
			e.Project, e.Due, e.Priority, e.EndTime, e.Raw); err != nil {
			return fmt.Errorf("index: insert todo: %w", err)
		}
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
