package broker

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/martinbechard/wslog/pkg/wireevent"
)

// persistedRecord is the on-disk shape for capture=full.
type persistedRecord struct {
	Timestamp time.Time        `json:"timestamp"`
	ClientID  string           `json:"clientId"`
	Route     string           `json:"route"`
	Type      string           `json:"type"`
	Data      *wireevent.Event `json:"data"`
}

// payloadOnlyRecord is the on-disk shape for capture=payloadOnly.
type payloadOnlyRecord struct {
	Timestamp time.Time        `json:"timestamp"`
	Data      *wireevent.Event `json:"data"`
}

// writer appends one JSON-lines record per call to either stdout or a
// file, per the route's configured output (§4.4 persistence).
type writer struct {
	mu   sync.Mutex
	path string // empty means console
	f    *os.File
}

func newWriter(output string) (*writer, error) {
	if output == "" || output == "console" {
		return &writer{}, nil
	}
	if dir := filepath.Dir(output); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.OpenFile(output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &writer{path: output, f: f}, nil
}

func (w *writer) writeLine(line []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.f == nil {
		_, err := fmt.Println(string(line))
		return err
	}
	_, err := w.f.Write(append(line, '\n'))
	return err
}

func (w *writer) close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return nil
	}
	return w.f.Close()
}

// persist writes one JSON-lines record for frame, shaped per rc.Capture.
// Write failures are returned for the caller to log, never to abort
// dispatch (§4.4: "Write failures are logged but do not abort dispatch").
func persist(w *writer, rc RouteConfig, clientID, route string, frameType string, ev *wireevent.Event) error {
	var (
		payload []byte
		err     error
	)

	switch rc.Capture {
	case CaptureFull:
		payload, err = json.Marshal(persistedRecord{
			Timestamp: time.Now().UTC(),
			ClientID:  clientID,
			Route:     route,
			Type:      frameType,
			Data:      ev,
		})
	case CapturePayloadOnly:
		payload, err = json.Marshal(payloadOnlyRecord{Timestamp: time.Now().UTC(), Data: ev})
	case CaptureBodyOnly:
		payload, err = json.Marshal(ev)
	default:
		return fmt.Errorf("broker: unknown capture mode %q", rc.Capture)
	}
	if err != nil {
		return err
	}
	return w.writeLine(payload)
}
