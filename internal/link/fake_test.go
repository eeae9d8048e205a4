package link

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/martinbechard/wslog/pkg/wireevent"
)

// fakeConn is an in-memory stand-in for a *websocket.Conn.
type fakeConn struct {
	mu     sync.Mutex
	sent   [][]byte
	closed bool
	readCh chan []byte
}

func newFakeConn() *fakeConn {
	return &fakeConn{readCh: make(chan []byte)}
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("fakeConn: closed")
	}
	c.sent = append(c.sent, data)
	return nil
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	data, ok := <-c.readCh
	if !ok {
		return 0, nil, errors.New("fakeConn: read on closed connection")
	}
	return 1, data, nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.readCh)
	}
	return nil
}

func (c *fakeConn) sentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

// fakeDialer always succeeds, handing out a single shared fakeConn.
type fakeDialer struct {
	conn *fakeConn
}

func (d *fakeDialer) Dial(_ context.Context, _ string) (Conn, error) {
	return d.conn, nil
}

// failingDialer fails every dial.
type failingDialer struct{}

func (failingDialer) Dial(_ context.Context, _ string) (Conn, error) {
	return nil, errors.New("dial refused")
}

func eventually(cond func() bool, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return cond()
}

func testFrame() *wireevent.Frame {
	return wireevent.NewEventFrame(wireevent.FrameLog, "id-1", "", &wireevent.Event{Message: "hi"})
}
