package broker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"

	"github.com/martinbechard/wslog/pkg/observability"
	"github.com/martinbechard/wslog/pkg/wireevent"
)

// Broker is the concurrent, in-memory fan-out server (§4.4). Build one
// with New and feed it inbound connections via AcceptLink.
type Broker struct {
	config     Config
	routes     *routeTable
	logger     observability.Logger
	stats      *stats
	errorDepth int

	mu      sync.RWMutex
	links   map[string]*link
	writers map[string]*writer // keyed by RouteConfig.Output

	cron *cron.Cron
}

// New builds a Broker from a validated Config. registerer may be nil
// (e.g. in tests) to skip Prometheus registration.
func New(config Config, logger observability.Logger, registerer prometheus.Registerer) *Broker {
	return &Broker{
		config:     config,
		routes:     newRouteTable(config.Routes),
		logger:     logger,
		stats:      newStats(registerer),
		errorDepth: config.ErrorStackDepth,
		links:      make(map[string]*link),
		writers:    make(map[string]*writer),
		cron:       cron.New(cron.WithSeconds()),
	}
}

// StartHeartbeat schedules the periodic link probe (§4.4 "Heartbeat"),
// adapted from pkg/cron_worker's scheduler wiring onto robfig/cron/v3.
func (b *Broker) StartHeartbeat() error {
	spec := "@every " + b.config.HeartbeatInterval.String()
	if _, err := b.cron.AddFunc(spec, b.probeLinks); err != nil {
		return err
	}
	b.cron.Start()
	return nil
}

// StopHeartbeat stops the heartbeat scheduler and blocks until the
// running job, if any, finishes.
func (b *Broker) StopHeartbeat() {
	if b.cron == nil {
		return
	}
	ctx := b.cron.Stop()
	<-ctx.Done()
}

func (b *Broker) probeLinks() {
	b.mu.RLock()
	links := make([]*link, 0, len(b.links))
	for _, l := range b.links {
		links = append(links, l)
	}
	b.mu.RUnlock()

	for _, l := range links {
		if err := l.send(wireevent.NewStatusFrame(wireevent.StatusOK, "", nil)); err != nil {
			b.logger.Warn(context.Background(), "heartbeat probe failed, dropping link",
				observability.String("linkId", l.id), observability.Error(err))
			b.removeLink(l.id)
			continue
		}
		l.mu.Lock()
		for _, sub := range l.subscriptions {
			sub.lastActivity = time.Now()
		}
		l.mu.Unlock()
	}
}

// AcceptLink registers a newly opened connection, sends the connected
// acknowledgement, and reads frames from it until the connection closes.
// Blocks for the lifetime of the link; call it from its own goroutine.
func (b *Broker) AcceptLink(ctx context.Context, conn Conn) {
	id := uuid.NewString()
	l := newLink(id, conn)

	b.mu.Lock()
	b.links[id] = l
	b.mu.Unlock()
	b.stats.linkConnected()

	b.logger.Info(ctx, "link connected", observability.String("linkId", id))

	if err := l.send(wireevent.NewStatusFrame(wireevent.StatusConnected, "", nil)); err != nil {
		b.logger.Warn(ctx, "failed to send connected ack", observability.Error(err))
	}

	defer func() {
		b.removeLink(id)
		b.logger.Info(ctx, "link disconnected", observability.String("linkId", id))
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}
		frame, err := wireevent.Decode(payload)
		if err != nil {
			_ = l.send(wireevent.NewErrorFrame("malformed frame"))
			continue
		}
		b.dispatch(ctx, l, frame)
	}
}

func (b *Broker) removeLink(id string) {
	b.mu.Lock()
	l, ok := b.links[id]
	if ok {
		delete(b.links, id)
	}
	b.mu.Unlock()
	if ok {
		_ = l.close()
		b.stats.linkDisconnected()
	}
}

// dispatch handles one inbound frame per §4.4 "Frame dispatch".
func (b *Broker) dispatch(ctx context.Context, l *link, f *wireevent.Frame) {
	switch f.Type {
	case wireevent.FrameLog, wireevent.FrameTrace:
		b.dispatchEvent(ctx, l, f)
	case wireevent.FrameSubscribe:
		filters := f.Filters
		l.subscribe(f.Route, filters)
		_ = l.send(wireevent.NewStatusFrame(wireevent.StatusSubscribed, f.ID, nil))
	case wireevent.FrameUnsubscribe:
		l.unsubscribe(f.Route)
		_ = l.send(wireevent.NewStatusFrame(wireevent.StatusUnsubscribe, f.ID, nil))
	case wireevent.FramePing:
		_ = l.send(&wireevent.Frame{Type: wireevent.FramePong})
	default:
		_ = l.send(wireevent.NewErrorFrame("Unknown message type"))
	}
}

func (b *Broker) dispatchEvent(ctx context.Context, l *link, f *wireevent.Frame) {
	route := l.resolveRoute(f.Route)
	rc, ok := b.routes.match(route)
	if !ok {
		_ = l.send(wireevent.NewErrorFrame("Unknown route"))
		return
	}

	if err := b.persistEvent(l.id, route, rc, string(f.Type), f.Data); err != nil {
		b.logger.Warn(ctx, "persistence failed", observability.Error(err))
		b.stats.dispatchError()
	}

	b.broadcast(route, f.Data)
	b.stats.messageDispatched()

	_ = l.send(wireevent.NewStatusFrame(wireevent.StatusOK, f.ID, nil))
}

func (b *Broker) persistEvent(clientID, route string, rc RouteConfig, frameType string, ev *wireevent.Event) error {
	w, err := b.writerFor(rc)
	if err != nil {
		return err
	}
	return persist(w, rc, clientID, route, frameType, ev)
}

func (b *Broker) writerFor(rc RouteConfig) (*writer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if w, ok := b.writers[rc.Output]; ok {
		return w, nil
	}
	w, err := newWriter(rc.Output)
	if err != nil {
		return nil, err
	}
	b.writers[rc.Output] = w
	return w, nil
}

// broadcast sends ev to every link subscribed to route whose filters pass
// (§4.4 "Broadcast"). A link whose send fails is dropped from the active
// set; the broadcast continues for the rest.
func (b *Broker) broadcast(route string, ev *wireevent.Event) {
	b.mu.RLock()
	targets := make([]*link, 0, len(b.links))
	for _, l := range b.links {
		targets = append(targets, l)
	}
	b.mu.RUnlock()

	for _, l := range targets {
		sub, ok := l.subscriptionFor(route)
		if !ok {
			continue
		}
		if !passesFilter(sub.filters, ev) {
			continue
		}
		if err := l.send(wireevent.NewEventFrame(frameTypeForEvent(ev), ev.ID, route, ev)); err != nil {
			b.stats.dispatchError()
			b.removeLink(l.id)
			continue
		}
		l.touchActivity(route)
	}
}

// Snapshot returns the broker's current stats (§4.4 "Stats").
func (b *Broker) Snapshot() Snapshot {
	return b.stats.snapshot()
}

// Shutdown closes every active link and stops the heartbeat scheduler.
func (b *Broker) Shutdown(ctx context.Context) error {
	b.StopHeartbeat()

	b.mu.Lock()
	links := make([]*link, 0, len(b.links))
	for _, l := range b.links {
		links = append(links, l)
	}
	b.links = make(map[string]*link)
	writers := make([]*writer, 0, len(b.writers))
	for _, w := range b.writers {
		writers = append(writers, w)
	}
	b.writers = make(map[string]*writer)
	b.mu.Unlock()

	for _, l := range links {
		_ = l.close()
	}
	for _, w := range writers {
		_ = w.close()
	}
	return nil
}

func frameTypeForEvent(ev *wireevent.Event) wireevent.FrameType {
	if ev != nil && ev.IsTrace() {
		return wireevent.FrameTrace
	}
	return wireevent.FrameLog
}
