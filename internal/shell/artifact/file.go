// Package artifact provides the file-backed package collaborator. Building
// the zip itself is out of scope; this package only exposes an already
// packaged artifact as a byte stream.
package artifact

import (
	"io"
	"os"
)

// File exposes a packaged artifact on disk.
type File struct {
	path string
}

// NewFile creates a file-backed package for the given path. An empty path
// means the package step was skipped.
func NewFile(path string) *File {
	return &File{path: path}
}

// Exists reports whether the packaged artifact is present on disk.
func (f *File) Exists() bool {
	if f.path == "" {
		return false
	}
	info, err := os.Stat(f.path)
	return err == nil && !info.IsDir()
}

// Open returns the artifact byte stream. os.File is seekable, so the
// transport can rewind it on retry.
func (f *File) Open() (io.ReadSeekCloser, error) {
	return os.Open(f.path)
}
