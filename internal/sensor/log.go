package sensor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ErrLogClosed is returned when writing to a closed log.
var ErrLogClosed = errors.New("sensor log closed")

// Log is an append-only, line-oriented sample file. Writes and Close are
// serialized so no line can land after Close returns.
type Log struct {
	path string

	mu     sync.Mutex
	file   *os.File
	lines  int
	closed bool
}

// CreateLog creates (or truncates) the file at path, creating parent
// directories as needed.
func CreateLog(path string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create sensor log: %w", err)
	}
	return &Log{path: path, file: file}, nil
}

// WriteLine appends line and a newline.
func (l *Log) WriteLine(line string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrLogClosed
	}
	if _, err := l.file.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("write %s: %w", l.path, err)
	}
	l.lines++
	return nil
}

// Close closes the file. Closing twice is a no-op.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	if err := l.file.Close(); err != nil {
		return fmt.Errorf("close %s: %w", l.path, err)
	}
	return nil
}

// Path returns the file path.
func (l *Log) Path() string {
	return l.path
}

// Lines returns how many lines were written.
func (l *Log) Lines() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lines
}
