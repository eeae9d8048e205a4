package link

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/martinbechard/wslog/pkg/observability"
	"github.com/martinbechard/wslog/pkg/wireevent"
)

// Config configures a Link.
type Config struct {
	URL string
	// MaxRetries bounds consecutive reconnect failures before the link
	// transitions to gaveUp. -1 means unlimited.
	MaxRetries int
}

// Link is the producer-side transport: it owns the connection, the FIFO
// send queue, and the reconnect state machine (§4.3/§4.5). A zero-value
// Link is not usable; build one with New.
type Link struct {
	config  Config
	dialer  Dialer
	logger  observability.Logger
	backoff *fixedExponential

	mu    sync.Mutex
	state State
	conn  Conn
	queue []*wireevent.Frame

	closeCh chan struct{}
	once    sync.Once

	// onFrame, if set, is invoked for every frame read back from the
	// broker (status/error acknowledgements).
	onFrame func(*wireevent.Frame)
	// onGaveUp, if set, is invoked once when the link transitions to
	// StateGaveUp.
	onGaveUp func()
}

// New builds a Link in the disconnected state. Call Start to begin
// dialing.
func New(config Config, dialer Dialer, logger observability.Logger) *Link {
	return &Link{
		config:  config,
		dialer:  dialer,
		logger:  logger,
		backoff: newFixedExponential(config.MaxRetries),
		state:   StateDisconnected,
		closeCh: make(chan struct{}),
	}
}

// OnFrame registers a callback invoked for every frame received from the
// broker. Must be called before Start.
func (l *Link) OnFrame(fn func(*wireevent.Frame)) { l.onFrame = fn }

// OnGaveUp registers a callback invoked once reconnects are exhausted.
// Must be called before Start.
func (l *Link) OnGaveUp(fn func()) { l.onGaveUp = fn }

// State returns the link's current lifecycle state.
func (l *Link) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Start begins the connect/reconnect loop in the background. It returns
// immediately; connection progress is observable via State().
func (l *Link) Start(ctx context.Context) {
	go l.connectLoop(ctx)
}

// Enqueue offers frame for delivery. If connected, it is appended to the
// queue and a drain is triggered inline; the frame is otherwise held in
// the unbounded FIFO until the link reconnects. Enqueue never blocks on
// network I/O. Satisfies tracecontext.Transport.
func (l *Link) Enqueue(frame *wireevent.Frame) error {
	l.mu.Lock()
	if l.state == StateClosed {
		l.mu.Unlock()
		return ErrClosed
	}
	l.queue = append(l.queue, frame)
	connected := l.state == StateConnected
	l.mu.Unlock()

	if connected {
		l.drain()
	}
	return nil
}

// drain writes every queued frame in order. The first write failure
// leaves the remainder queued and triggers a reconnect.
func (l *Link) drain() {
	for {
		l.mu.Lock()
		if len(l.queue) == 0 || l.state != StateConnected {
			l.mu.Unlock()
			return
		}
		frame := l.queue[0]
		conn := l.conn
		l.mu.Unlock()

		payload, err := frame.Encode()
		if err == nil {
			err = conn.WriteMessage(websocket.TextMessage, payload)
		}

		l.mu.Lock()
		if err != nil {
			l.mu.Unlock()
			l.handleDisconnect()
			return
		}
		// Only pop on success, and only if nothing else already drained
		// ahead of us (queue is FIFO, single drain loop per connection).
		if len(l.queue) > 0 {
			l.queue = l.queue[1:]
		}
		l.mu.Unlock()
	}
}

func (l *Link) connectLoop(ctx context.Context) {
	for {
		select {
		case <-l.closeCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		l.setState(StateConnecting)
		conn, err := l.dialer.Dial(ctx, l.config.URL)
		if err != nil {
			l.logger.Warn(ctx, "link dial failed", observability.Error(err))
			if !l.scheduleRetry(ctx) {
				return
			}
			continue
		}

		l.mu.Lock()
		l.conn = conn
		l.state = StateConnected
		l.mu.Unlock()
		l.backoff.Reset()
		l.logger.Info(ctx, "link connected")

		l.drain()
		l.readLoop(ctx, conn)

		l.mu.Lock()
		if l.state == StateClosed {
			l.mu.Unlock()
			return
		}
		l.state = StateDisconnected
		l.mu.Unlock()

		if !l.scheduleRetry(ctx) {
			return
		}
	}
}

// scheduleRetry sleeps for the next backoff delay, or transitions to
// gaveUp and returns false if retries are exhausted or the link is
// closing.
func (l *Link) scheduleRetry(ctx context.Context) bool {
	delay := l.backoff.NextBackOff()
	if delay < 0 {
		l.setState(StateGaveUp)
		if l.onGaveUp != nil {
			l.onGaveUp()
		}
		return false
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-l.closeCh:
		return false
	case <-ctx.Done():
		return false
	}
}

func (l *Link) readLoop(ctx context.Context, conn Conn) {
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			l.logger.Warn(ctx, "link read failed", observability.Error(err))
			return
		}
		frame, err := wireevent.Decode(payload)
		if err != nil {
			l.logger.Warn(ctx, "link received malformed frame", observability.Error(err))
			continue
		}
		if l.onFrame != nil {
			l.onFrame(frame)
		}
	}
}

// handleDisconnect is called from drain() on a write failure; it closes
// the stale connection and lets connectLoop's readLoop exit drive the
// reconnect transition.
func (l *Link) handleDisconnect() {
	l.mu.Lock()
	conn := l.conn
	l.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

func (l *Link) setState(s State) {
	l.mu.Lock()
	l.state = s
	l.mu.Unlock()
}

// Close cancels the reconnect loop and drops the pending queue; queued
// frames are lost (§9 terminal link close).
func (l *Link) Close() error {
	var err error
	l.once.Do(func() {
		l.mu.Lock()
		l.state = StateClosed
		conn := l.conn
		l.queue = nil
		close(l.closeCh)
		l.mu.Unlock()
		if conn != nil {
			err = conn.Close()
		}
	})
	return err
}
