package broker

import (
	"sync"
	"time"

	"github.com/martinbechard/wslog/pkg/wireevent"
)

// Conn is the minimal framed-message transport a broker-side link needs.
// Satisfied by *websocket.Conn in production; fakes in tests.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

// subscription is one link's declared interest in a route (§3).
type subscription struct {
	route        string
	filters      *wireevent.Filters
	lastActivity time.Time
}

// link is the broker's per-connection state: identity, subscriptions, and
// the "current route" used when an inbound frame omits an explicit route.
type link struct {
	id          string
	conn        Conn
	connectedAt time.Time

	mu            sync.Mutex
	subscriptions map[string]*subscription
	currentRoute  string
	closed        bool

	sendMu sync.Mutex
}

func newLink(id string, conn Conn) *link {
	return &link{
		id:            id,
		conn:          conn,
		connectedAt:   time.Now(),
		subscriptions: make(map[string]*subscription),
	}
}

func (l *link) subscribe(route string, filters *wireevent.Filters) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.subscriptions[route] = &subscription{route: route, filters: filters, lastActivity: time.Now()}
	l.currentRoute = route
}

func (l *link) unsubscribe(route string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.subscriptions, route)
}

func (l *link) touchActivity(route string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if sub, ok := l.subscriptions[route]; ok {
		sub.lastActivity = time.Now()
	}
}

// subscriptionFor reports whether the link is subscribed to route, and its
// filters if so.
func (l *link) subscriptionFor(route string) (*subscription, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	sub, ok := l.subscriptions[route]
	return sub, ok
}

// resolveRoute applies §4.4's route-resolution precedence: an explicit
// route on the frame, else the link's last-subscribed route, else "/".
func (l *link) resolveRoute(explicit string) string {
	if explicit != "" {
		return explicit
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.currentRoute != "" {
		return l.currentRoute
	}
	return "/"
}

// send writes a frame to the link, serialized against concurrent writers
// (one goroutine reads the link, the broadcast and dispatch paths write
// to it; gorilla/websocket requires at most one writer at a time).
func (l *link) send(f *wireevent.Frame) error {
	payload, err := f.Encode()
	if err != nil {
		return err
	}
	l.sendMu.Lock()
	defer l.sendMu.Unlock()
	return l.conn.WriteMessage(1, payload) // websocket.TextMessage
}

func (l *link) close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()
	return l.conn.Close()
}
