// Package scanner walks the notes root and produces one NoteRecord per Markdown file.
package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/starford/memento/internal/memento"
	"github.com/starford/memento/internal/models"
	"github.com/starford/memento/internal/parser"
	"github.com/starford/memento/internal/storage"
)

// Scanner reads notes through a storage.Provider.
type Scanner struct {
	store  storage.Provider
	logger *slog.Logger
}

// New creates a Scanner.
func New(store storage.Provider, logger *slog.Logger) *Scanner {
	return &Scanner{store: store, logger: logger}
}

// Scan walks the notes root depth-first and returns a record for every
// non-excluded .md file. Only an unreadable root is an error; failures on
// individual files or subdirectories are logged and skipped over.
func (s *Scanner) Scan(ctx context.Context, cfg memento.Config) ([]models.NoteRecord, error) {
	if _, err := s.store.ReadDir(""); err != nil {
		return nil, fmt.Errorf("scanner: read notes root: %w", err)
	}
	m := NewMatcher(cfg.ExcludeFolders)
	var out []models.NoteRecord
	if err := s.walk(ctx, "", m, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Scanner) walk(ctx context.Context, dir string, m *Matcher, out *[]models.NoteRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	entries, err := s.store.ReadDir(dir)
	if err != nil {
		s.logger.Warn("scanner: read dir failed", slog.String("path", dir), slog.String("error", err.Error()))
		return nil
	}
	for _, e := range entries {
		rel := path.Join(dir, e.Name())
		if e.IsDir() {
			if m.Excluded(e.Name()) {
				continue
			}
			if err := s.walk(ctx, rel, m, out); err != nil {
				return err
			}
			continue
		}
		if !IsMarkdown(e.Name()) {
			continue
		}
		*out = append(*out, s.record(rel))
	}
	return nil
}

func (s *Scanner) record(rel string) models.NoteRecord {
	abs, _ := s.store.Abs(rel)
	data, err := s.store.Read(rel)
	if err != nil {
		s.logger.Warn("scanner: read failed, using fallback metadata",
			slog.String("path", rel),
			slog.String("error", err.Error()))
		return s.Fallback(rel, abs)
	}
	return s.FromContent(rel, abs, data)
}

// FromContent builds a record from already-read file content.
func (s *Scanner) FromContent(rel, abs string, data []byte) models.NoteRecord {
	res := parser.Parse(data)
	rec := models.NoteRecord{
		Path:     abs,
		RelPath:  rel,
		Title:    res.Title,
		Tags:     res.Tags,
		Checksum: res.Checksum,
		Content:  data,
	}
	if rec.Title == "" {
		rec.Title = models.Stem(rel)
	}
	if res.HasDate {
		rec.Date, rec.DateFromFrontMatter = res.Date, true
	} else {
		rec.Date = s.birthTime(rel)
	}
	return rec
}

// Fallback is the record used when a file cannot be read: title from the
// file stem, no tags, birth time as date.
func (s *Scanner) Fallback(rel, abs string) models.NoteRecord {
	return models.NoteRecord{
		Path:    abs,
		RelPath: rel,
		Title:   models.Stem(rel),
		Tags:    []string{},
		Date:    s.birthTime(rel),
	}
}

func (s *Scanner) birthTime(rel string) time.Time {
	info, err := s.store.Stat(rel)
	if err != nil {
		s.logger.Debug("scanner: stat failed", slog.String("path", rel), slog.String("error", err.Error()))
		return time.Time{}
	}
	return info.BirthTime
}

// IsMarkdown reports whether name has a .md extension in any letter case.
func IsMarkdown(name string) bool {
	return strings.EqualFold(path.Ext(name), ".md")
}

// Matcher decides whether a directory name is excluded from scans.
type Matcher struct {
	exact    map[string]struct{}
	patterns []*regexp.Regexp
}

// NewMatcher compiles exclusion patterns. A pattern without '*' matches the
// name exactly; '*' matches any run of characters and the whole name must match.
func NewMatcher(patterns []string) *Matcher {
	m := &Matcher{exact: make(map[string]struct{})}
	for _, p := range patterns {
		if !strings.Contains(p, "*") {
			m.exact[p] = struct{}{}
			continue
		}
		parts := strings.Split(p, "*")
		for i := range parts {
			parts[i] = regexp.QuoteMeta(parts[i])
		}
		m.patterns = append(m.patterns, regexp.MustCompile("^"+strings.Join(parts, ".*")+"$"))
	}
	return m
}

// Excluded reports whether a directory named name is skipped. Names starting
// with '.' are always skipped.
func (m *Matcher) Excluded(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	if _, ok := m.exact[name]; ok {
		return true
	}
	for _, re := range m.patterns {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

// IsExcluded is a convenience wrapper for one-off checks.
func IsExcluded(name string, patterns []string) bool {
	return NewMatcher(patterns).Excluded(name)
}
