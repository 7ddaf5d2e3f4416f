// Package datalog appends diagnostic and reading lines to removable storage.
package datalog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Logger appends one line per call.
type Logger interface {
	Log(line string) error
}

// File is a Logger appending timestamped lines to a file.
type File struct {
	path string
	now  func() time.Time

	mu sync.Mutex
	f  *os.File
}

var _ Logger = (*File)(nil)

// Open opens path for appending, creating it and its directory if needed.
func Open(path string) (*File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create datalog directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open datalog %s: %w", path, err)
	}
	return &File{path: path, now: time.Now, f: f}, nil
}

// Log writes "<RFC3339 timestamp>,<line>\n". Embedded newlines are flattened.
func (l *File) Log(line string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.f == nil {
		return fmt.Errorf("datalog %s is closed", l.path)
	}
	line = strings.ReplaceAll(strings.TrimRight(line, "\r\n"), "\n", " ")
	if _, err := fmt.Fprintf(l.f, "%s,%s\n", l.now().UTC().Format(time.RFC3339), line); err != nil {
		return fmt.Errorf("failed to write datalog: %w", err)
	}
	return nil
}

// Close flushes and closes the file.
func (l *File) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.f == nil {
		return nil
	}
	if err := l.f.Sync(); err != nil {
		l.f.Close()
		l.f = nil
		return fmt.Errorf("failed to sync datalog: %w", err)
	}
	err := l.f.Close()
	l.f = nil
	return err
}

// Discard is a Logger that drops every line.
type Discard struct{}

func (Discard) Log(string) error { return nil }
