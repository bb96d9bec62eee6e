// Package models defines the domain types for memento.
package models

import (
	"path/filepath"
	"strings"
	"time"
)

// NoteRecord represents one Markdown file found by a scan.
type NoteRecord struct {
	Path     string    `json:"path"`
	RelPath  string    `json:"rel_path"`
	Date     time.Time `json:"date"`
	Title    string    `json:"title"`
	Tags     []string  `json:"tags"`
	Checksum string    `json:"checksum,omitempty"`

	// DateFromFrontMatter is true when Date came from a parseable
	// front-matter date rather than the file's birth time.
	DateFromFrontMatter bool `json:"date_from_front_matter"`

	// Content is the raw text read during the scan. Empty for fallback records.
	Content []byte `json:"-"`
}

// Stem returns the file name without directory and extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
