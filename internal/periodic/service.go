package periodic

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"time"

	"github.com/starford/memento/internal/memento"
	"github.com/starford/memento/internal/storage"
)

// defaultBody is used when no template file is configured or readable.
const defaultBody = "# {{title}}\n\n"

// Note is the result of opening a periodic note.
type Note struct {
	Kind    Kind   `json:"kind"`
	RelPath string `json:"path"`
	AbsPath string `json:"abs_path"`
	Fields  Fields `json:"fields"`
	Created bool   `json:"created"`
}

// Settings are the configured directory, file name template and body
// template path for one kind.
type Settings struct {
	Dir          string
	Format       string
	TemplatePath string
}

// SettingsFor picks the settings for kind out of cfg.
func SettingsFor(cfg memento.Config, kind Kind) Settings {
	if kind == Weekly {
		return Settings{Dir: cfg.WeeklyNotesPath, Format: cfg.WeeklyNoteFileNameFormat, TemplatePath: cfg.WeeklyNoteTemplatePath}
	}
	return Settings{Dir: cfg.DailyNotesPath, Format: cfg.DailyNoteFileNameFormat, TemplatePath: cfg.DailyNoteTemplatePath}
}

// Service creates and lists periodic notes.
type Service struct {
	store  storage.Provider
	logger *slog.Logger
}

// NewService creates a Service.
func NewService(store storage.Provider, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Open returns the note for the period containing t, creating it from the
// configured template when it does not exist yet.
func (s *Service) Open(ctx context.Context, cfg memento.Config, kind Kind, t time.Time) (Note, error) {
	if err := ctx.Err(); err != nil {
		return Note{}, err
	}
	set := SettingsFor(cfg, kind)
	f := FieldsFor(kind, t)
	rel := path.Join(set.Dir, Format(set.Format, f))
	abs, err := s.store.Abs(rel)
	if err != nil {
		return Note{}, fmt.Errorf("periodic: resolve %s: %w", rel, err)
	}
	note := Note{Kind: kind, RelPath: rel, AbsPath: abs, Fields: f}

	if s.store.Exists(rel) {
		return note, nil
	}
	if err := s.store.MkdirAll(path.Dir(rel)); err != nil {
		return Note{}, fmt.Errorf("periodic: create directory: %w", err)
	}
	body := RenderBody(s.templateBody(set.TemplatePath), kind, f)
	if err := s.store.Write(rel, []byte(body)); err != nil {
		return Note{}, fmt.Errorf("periodic: write %s: %w", rel, err)
	}
	s.logger.Info("periodic: note created", slog.String("kind", string(kind)), slog.String("path", rel))
	note.Created = true
	return note, nil
}

func (s *Service) templateBody(templatePath string) string {
	if templatePath == "" {
		return defaultBody
	}
	data, err := s.store.Read(templatePath)
	if err != nil {
		s.logger.Warn("periodic: template unreadable, using default",
			slog.String("path", templatePath),
			slog.String("error", err.Error()))
		return defaultBody
	}
	return string(data)
}

// List returns existing notes of kind, newest first. A missing directory
// yields an empty list.
func (s *Service) List(ctx context.Context, cfg memento.Config, kind Kind, limit int) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	set := SettingsFor(cfg, kind)
	p, err := Compile(path.Base(set.Format))
	if err != nil {
		return nil, err
	}
	dir := path.Join(set.Dir, path.Dir(set.Format))
	entries, err := s.store.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []Entry{}, nil
		}
		return nil, fmt.Errorf("periodic: list %s: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	out := Recent(kind, p, names, limit)
	for i := range out {
		out[i].RelPath = path.Join(dir, out[i].Name)
	}
	if out == nil {
		out = []Entry{}
	}
	return out, nil
}
