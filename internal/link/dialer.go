package link

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is the minimal framed-message transport the link needs. It is
// satisfied by *websocket.Conn; tests supply an in-memory fake.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

// Dialer opens a Conn to url. It is satisfied by WSDialer; tests supply a
// fake that never touches the network.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// WSDialer dials the broker over a WebSocket, per §4.3/§B (gorilla/websocket
// is the link's wire transport; the teacher itself has no peer-to-peer
// streaming dependency of its own).
type WSDialer struct {
	Header http.Header
}

// Dial opens a WebSocket connection to url.
func (d WSDialer) Dial(ctx context.Context, url string) (Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, d.Header)
	if err != nil {
		return nil, err
	}
	return conn, nil
}
