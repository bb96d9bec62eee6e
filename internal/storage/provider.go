// Package storage defines the file-system port the indexing core reads notes through.
package storage

import (
	"io/fs"
	"time"
)

// DirEntry is a directory listing entry.
type DirEntry = fs.DirEntry

// FileInfo is the subset of file metadata the core needs.
type FileInfo struct {
	IsDir     bool
	BirthTime time.Time
	ModTime   time.Time
}

// Provider is the interface for note-tree file operations.
// All paths are relative to the notes root and use forward slashes.
type Provider interface {
	// Root returns the absolute notes root.
	Root() string
	// Abs resolves path against the root, rejecting traversal outside it.
	Abs(path string) (string, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path, creating parent directories.
	Write(path string, content []byte) error
	// ReadDir lists the entries of the directory at path.
	ReadDir(path string) ([]DirEntry, error)
	// Stat reports whether path is a directory and its birth time.
	Stat(path string) (FileInfo, error)
	// MkdirAll creates path and any missing parents.
	MkdirAll(path string) error
	// Exists reports whether path exists.
	Exists(path string) bool
}
