package sinks

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/martinbechard/wslog/pkg/wireevent"
)

// FileSink appends rendered lines to a file, creating parent directories
// on first use. Safe for concurrent use.
type FileSink struct {
	mu   sync.Mutex
	path string
	f    *os.File
}

// NewFileSink opens (creating if necessary) the file at path for append.
func NewFileSink(path string) (*FileSink, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &FileSink{path: path, f: f}, nil
}

// Write renders ev and appends it to the file.
func (s *FileSink) Write(ev *wireevent.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.f.WriteString(RenderLine(ev))
	return err
}

// Close closes the underlying file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}
