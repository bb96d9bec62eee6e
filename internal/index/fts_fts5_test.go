//go:build sqlite_fts5

package index

import (
	"context"
	"testing"

	"github.com/starford/memento/internal/models"
)

func TestFTS5_TableExists(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM notes_fts`).Scan(&count); err != nil {
		t.Fatalf("notes_fts table missing: %v", err)
	}
}

func TestFTS5_SearchWithSnippet(t *testing.T) {
	db := testDB(t)
	notes := []models.NoteRecord{note("fts.md", "f1", "Memento keeps powerful derived views of notes.", "search")}
	if _, err := db.ReplaceSnapshot(context.Background(), 1, notes, nil); err != nil {
		t.Fatalf("ReplaceSnapshot: %v", err)
	}

	results, err := db.Search("powerful", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Path != "fts.md" {
		t.Errorf("path = %q", results[0].Path)
	}
	if results[0].Snippet == "" {
		t.Error("expected non-empty snippet")
	}
}

func TestFTS5_StaleNoteRemovedFromFTS(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	_, _ = db.ReplaceSnapshot(ctx, 1, []models.NoteRecord{note("gone.md", "g", "vanishing content")}, nil)
	_, _ = db.ReplaceSnapshot(ctx, 2, nil, nil)

	results, _ := db.Search("vanishing", 10)
	for _, r := range results {
		if r.Path == "gone.md" {
			t.Error("deleted note still in FTS index")
		}
	}
}

func TestFTS5_ChangedChecksumReplacesContent(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	_, _ = db.ReplaceSnapshot(ctx, 1, []models.NoteRecord{note("evo.md", "1", "original text")}, nil)
	_, _ = db.ReplaceSnapshot(ctx, 2, []models.NoteRecord{note("evo.md", "2", "replacement text")}, nil)

	results, _ := db.Search("original", 10)
	if len(results) != 0 {
		t.Error("old FTS content should be gone")
	}
	results, _ = db.Search("replacement", 10)
	if len(results) != 1 || results[0].Path != "evo.md" {
		t.Errorf("FTS not updated: %+v", results)
	}
}
