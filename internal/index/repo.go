package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/starford/memento/internal/todo"
)

// NoteRow represents a row in the notes table.
type NoteRow struct {
	Path      string
	Title     string
	Checksum  string
	Tags      []string
	Date      time.Time
	UpdatedAt time.Time
}

// SearchResult represents one search hit.
type SearchResult struct {
	Path    string `json:"path"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// upsertNote inserts or replaces a note and its FTS entry inside tx.
func upsertNote(tx *sql.Tx, n NoteRow, body string) error {
	tagsJSON, _ := json.Marshal(n.Tags)

	// Upsert notes table (includes body for fallback search).
	_, err := tx.Exec(`
		INSERT INTO notes (path, title, checksum, tags, body, note_date, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			title      = excluded.title,
			checksum   = excluded.checksum,
			tags       = excluded.tags,
			body       = excluded.body,
			note_date  = excluded.note_date,
			updated_at = excluded.updated_at
	`, n.Path, n.Title, n.Checksum, string(tagsJSON), body, formatDate(n.Date), n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert note: %w", err)
	}

	// FTS upsert (no-op when FTS5 tag is absent).
	return ftsUpsert(tx, n.Path, n.Title, body, n.Tags)
}

// deleteNote removes a note, its FTS entry and its tags inside tx.
func deleteNote(tx *sql.Tx, path string) error {
	ftsDelete(tx, path)
	if _, err := tx.Exec(`DELETE FROM note_tags WHERE path = ?`, path); err != nil {
		return fmt.Errorf("index: delete tags: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM notes WHERE path = ?`, path); err != nil {
		return fmt.Errorf("index: delete note: %w", err)
	}
	return nil
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// allChecksums returns path -> checksum for every indexed note.
func allChecksums(q queryer) (map[string]string, error) {
	rows, err := q.Query(`SELECT path, checksum FROM notes`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// Tagged returns the paths of notes carrying tag or any tag below it.
func (db *DB) Tagged(tag string) (map[string]struct{}, error) {
	tag = strings.Trim(tag, "/")
	rows, err := db.conn.Query(`
		SELECT DISTINCT path FROM note_tags
		WHERE tag = ? OR substr(tag, 1, ?) = ?
	`, tag, len(tag)+1, tag+"/")
	if err != nil {
		return nil, fmt.Errorf("index: tagged: %w", err)
	}
	defer rows.Close()
	out := make(map[string]struct{})
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out[p] = struct{}{}
	}
	return out, rows.Err()
}

// TodosDue returns open TODOs whose due date is on or before before
// (YYYY-MM-DD), earliest first.
func (db *DB) TodosDue(before string, limit int) ([]todo.Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.conn.Query(`
		SELECT path, line, completed, indent, content, tags, project, due, priority, end_time, raw
		FROM todos
		WHERE completed = 0 AND due != '' AND due <= ?
		ORDER BY due, path, line
		LIMIT ?
	`, before, limit)
	if err != nil {
		return nil, fmt.Errorf("index: todos due: %w", err)
	}
	defer rows.Close()

	out := []todo.Entry{}
	for rows.Next() {
		var (
			e        todo.Entry
			tagsJSON string
		)
		if err := rows.Scan(&e.RelPath, &e.Line, &e.Completed, &e.Indent, &e.Content, &tagsJSON,
			&e.Project, &e.Due, &e.Priority, &e.EndTime, &e.Raw); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(tagsJSON), &e.Tags); err != nil || e.Tags == nil {
			e.Tags = []string{}
		}
		e.File = path.Base(e.RelPath)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Generation returns the scan generation of the installed snapshot, 0 when
// nothing has been installed yet.
func (db *DB) Generation() (int64, error) {
	return generation(db.conn)
}

func generation(q queryer) (int64, error) {
	var v string
	err := q.QueryRow(`SELECT value FROM meta WHERE key = 'generation'`).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("index: generation: %w", err)
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("index: generation: %w", err)
	}
	return n, nil
}

func setGeneration(tx *sql.Tx, gen int64) error {
	_, err := tx.Exec(`
		INSERT INTO meta (key, value) VALUES ('generation', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, strconv.FormatInt(gen, 10))
	if err != nil {
		return fmt.Errorf("index: set generation: %w", err)
	}
	return nil
}
