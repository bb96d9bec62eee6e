package periodic

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/starford/memento/internal/memento"
	"github.com/starford/memento/internal/storage"
)

func testService(t *testing.T) (*Service, *storage.FS) {
	t.Helper()
	store, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return NewService(store, slog.New(slog.NewJSONHandler(io.Discard, nil))), store
}

func TestOpenDailyCreatesThenReuses(t *testing.T) {
	svc, store := testService(t)
	ctx := context.Background()
	day := time.Date(2025, 1, 13, 10, 0, 0, 0, time.Local)

	note, err := svc.Open(ctx, memento.Defaults(), Daily, day)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !note.Created || note.RelPath != "daily/2025-01-13.md" {
		t.Errorf("note = %+v", note)
	}
	data, _ := store.Read(note.RelPath)
	if string(data) != "# Monday, January 13, 2025\n\n" {
		t.Errorf("body = %q", data)
	}

	_ = store.Write(note.RelPath, []byte("edited"))
	again, err := svc.Open(ctx, memento.Defaults(), Daily, day)
	if err != nil {
		t.Fatal(err)
	}
	if again.Created {
		t.Error("second open must not recreate")
	}
	data, _ = store.Read(note.RelPath)
	if string(data) != "edited" {
		t.Errorf("existing note overwritten: %q", data)
	}
}

func TestOpenWeeklyWithTemplate(t *testing.T) {
	svc, store := testService(t)
	_ = store.Write("templates/week.md", []byte("---\ntitle: {{date}}\n---\n## {{title}}\n"))
	cfg := memento.Defaults()
	cfg.WeeklyNotesPath = "journal/weeks"
	cfg.WeeklyNoteTemplatePath = "templates/week.md"

	note, err := svc.Open(context.Background(), cfg, Weekly, time.Date(2025, 1, 15, 0, 0, 0, 0, time.Local))
	if err != nil {
		t.Fatal(err)
	}
	if note.RelPath != "journal/weeks/2025-W03.md" {
		t.Errorf("path = %q", note.RelPath)
	}
	data, _ := store.Read(note.RelPath)
	if !strings.HasPrefix(string(data), "---\ntitle: 2025-W03\n---\n## Week 3, 2025") {
		t.Errorf("body = %q", data)
	}
}

func TestOpenMissingTemplateFallsBack(t *testing.T) {
	svc, store := testService(t)
	cfg := memento.Defaults()
	cfg.DailyNoteTemplatePath = "nope.md"
	note, err := svc.Open(context.Background(), cfg, Daily, time.Date(2025, 3, 1, 0, 0, 0, 0, time.Local))
	if err != nil {
		t.Fatal(err)
	}
	data, _ := store.Read(note.RelPath)
	if !strings.HasPrefix(string(data), "# Saturday, March 1, 2025") {
		t.Errorf("body = %q", data)
	}
}

func TestListRecent(t *testing.T) {
	svc, store := testService(t)
	for _, name := range []string{"2025-01-02.md", "2024-12-31.md", "random.md", "2025-01-10.md"} {
		_ = store.Write("daily/"+name, []byte("x"))
	}
	_ = store.MkdirAll("daily/2025-01-11.md.d")

	got, err := svc.List(context.Background(), memento.Defaults(), Daily, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].RelPath != "daily/2025-01-10.md" || got[1].Name != "2025-01-02.md" {
		t.Errorf("recent = %+v", got)
	}
}

func TestListMissingDirectory(t *testing.T) {
	svc, _ := testService(t)
	got, err := svc.List(context.Background(), memento.Defaults(), Weekly, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("got %v", got)
	}
}
