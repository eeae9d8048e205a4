package sinks

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/martinbechard/wslog/pkg/wireevent"
)

// ConsoleSink writes rendered lines to an io.Writer (stdout by default),
// guarded by a mutex so concurrent emitters never interleave partial
// lines.
type ConsoleSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsoleSink builds a ConsoleSink writing to stdout.
func NewConsoleSink() *ConsoleSink {
	return &ConsoleSink{w: os.Stdout}
}

// NewConsoleSinkTo builds a ConsoleSink writing to w, for tests.
func NewConsoleSinkTo(w io.Writer) *ConsoleSink {
	return &ConsoleSink{w: w}
}

// Write renders ev and writes it to the console.
func (s *ConsoleSink) Write(ev *wireevent.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprint(s.w, RenderLine(ev))
	return err
}
