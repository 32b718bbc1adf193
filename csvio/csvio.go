// Package csvio provides the gzip-wrapped, buffered CSV readers and
// writers shared by the grouper and reconstruct packages. Both stages
// read/write the same family of files — per-ticker, gzip-compressed,
// comma-space-separated — so the I/O plumbing lives in one place.
package csvio

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"os"
	"path/filepath"
)

// Writer appends gzip-compressed text rows to one file, buffering in
// memory and flushing to disk only when asked — mirroring the
// teacher's journal.Append/Flush split so a caller controls the I/O
// cost of each write explicitly.
type Writer struct {
	path    string
	f       *os.File
	gz      *gzip.Writer
	buf     *bufio.Writer
	retries int
}

// OpenWriter opens path for appending (creating parent directories and
// the file if needed) and wraps it in a gzip+buffered writer. Pass
// truncate=true to start the file fresh (used when writing a header).
func OpenWriter(path string, truncate bool) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("csvio: mkdir for %s: %w", path, err)
	}

	flags := os.O_WRONLY | os.O_CREATE
	if truncate {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_APPEND
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("csvio: open %s: %w", path, err)
	}

	gz := gzip.NewWriter(f)
	return &Writer{path: path, f: f, gz: gz, buf: bufio.NewWriterSize(gz, 64*1024)}, nil
}

// WriteString appends s to the buffered stream. Per spec.md §7's I/O
// error taxonomy, a transient write failure is retried once before
// propagating.
func (w *Writer) WriteString(s string) error {
	if _, err := w.buf.WriteString(s); err != nil {
		w.retries++
		if _, err := w.buf.WriteString(s); err != nil {
			return fmt.Errorf("csvio: write %s: %w", w.path, err)
		}
	}
	return nil
}

// Flush pushes buffered bytes through gzip to the file, and syncs the
// file so a crash immediately after Flush does not lose the write. The
// whole flush/sync sequence is retried once on failure before
// propagating, the same single-bounded-retry policy as WriteString.
func (w *Writer) Flush() error {
	flush := func() error {
		if err := w.buf.Flush(); err != nil {
			return err
		}
		if err := w.gz.Flush(); err != nil {
			return err
		}
		return w.f.Sync()
	}
	if err := flush(); err != nil {
		w.retries++
		if err := flush(); err != nil {
			return fmt.Errorf("csvio: flush %s: %w", w.path, err)
		}
	}
	return nil
}

// Retries reports how many times WriteString or Flush needed their
// single bounded retry since the writer was opened.
func (w *Writer) Retries() int { return w.retries }

// Close flushes and closes the underlying gzip writer and file.
func (w *Writer) Close() error {
	if err := w.buf.Flush(); err != nil {
		return err
	}
	if err := w.gz.Close(); err != nil {
		return err
	}
	return w.f.Close()
}

// ReadAllRows reads every line of a gzip-compressed CSV file at path,
// including (and not stripping) any header row — callers that care
// about the header decide whether to skip line 0.
func ReadAllRows(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("csvio: open %s: %w", path, err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("csvio: gzip reader for %s: %w", path, err)
	}
	defer gz.Close()

	var rows []string
	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		rows = append(rows, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("csvio: scan %s: %w", path, err)
	}
	return rows, nil
}
