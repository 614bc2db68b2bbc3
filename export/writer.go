// Package export writes the generated metadata and hints documents to the
// export tree as gzip-compressed files, using a write-to-temp-then-rename
// pattern so readers never observe a partially written file.
package export

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
)

// Writer writes one gzip-compressed export file. Data is streamed into
// "<path>.new" and atomically moved to the final path on Close.
type Writer struct {
	f         *os.File
	gz        *gzip.Writer
	tmpPath   string
	finalPath string
	closed    bool
}

// NewWriter creates a Writer for the given final path, creating parent
// directories as needed.
func NewWriter(path string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating export directory: %w", err)
	}

	tmpPath := path + ".new"
	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("creating export file: %w", err)
	}

	return &Writer{
		f:         f,
		gz:        gzip.NewWriter(f),
		tmpPath:   tmpPath,
		finalPath: path,
	}, nil
}

// Write writes uncompressed data into the file.
func (w *Writer) Write(p []byte) (int, error) {
	return w.gz.Write(p)
}

// WriteString writes a string into the file.
func (w *Writer) WriteString(s string) (int, error) {
	return w.gz.Write([]byte(s))
}

// Close flushes the compressor, syncs the file and moves it into place.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.gz.Close(); err != nil {
		_ = w.f.Close()
		_ = os.Remove(w.tmpPath)
		return fmt.Errorf("flushing export file: %w", err)
	}
	if err := w.f.Sync(); err != nil {
		_ = w.f.Close()
		_ = os.Remove(w.tmpPath)
		return fmt.Errorf("syncing export file: %w", err)
	}
	if err := w.f.Close(); err != nil {
		_ = os.Remove(w.tmpPath)
		return fmt.Errorf("closing export file: %w", err)
	}
	if err := os.Rename(w.tmpPath, w.finalPath); err != nil {
		_ = os.Remove(w.tmpPath)
		return fmt.Errorf("renaming export file: %w", err)
	}
	return nil
}

// Abort discards the file without moving it into place.
func (w *Writer) Abort() {
	if w.closed {
		return
	}
	w.closed = true
	_ = w.gz.Close()
	_ = w.f.Close()
	_ = os.Remove(w.tmpPath)
}
