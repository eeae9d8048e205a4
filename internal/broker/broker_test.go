package broker

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martinbechard/wslog/pkg/observability/fake"
	"github.com/martinbechard/wslog/pkg/wireevent"
)

// fakeConn is an in-memory stand-in for a *websocket.Conn, letting the
// test drive frames in and capture frames out without a network.
type fakeConn struct {
	mu      sync.Mutex
	out     []*wireevent.Frame
	inbox   chan []byte
	closed  bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{inbox: make(chan []byte, 16)}
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	f, err := wireevent.Decode(data)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.out = append(c.out, f)
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	data, ok := <-c.inbox
	if !ok {
		return 0, nil, context.Canceled
	}
	return 1, data, nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.inbox)
	}
	return nil
}

func (c *fakeConn) send(t *testing.T, f *wireevent.Frame) {
	t.Helper()
	payload, err := f.Encode()
	require.NoError(t, err)
	c.inbox <- payload
}

func (c *fakeConn) received() []*wireevent.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*wireevent.Frame, len(c.out))
	copy(out, c.out)
	return out
}

func lastOfType(frames []*wireevent.Frame, t wireevent.FrameType) *wireevent.Frame {
	for i := len(frames) - 1; i >= 0; i-- {
		if frames[i].Type == t {
			return frames[i]
		}
	}
	return nil
}

func testBroker(t *testing.T, routes []RouteConfig) *Broker {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Routes = routes
	require.NoError(t, cfg.Validate())
	return New(cfg, fake.NewProvider().Logger(), nil)
}

// TestScenario5_LongestPrefixMatch matches spec §8 scenario 5.
func TestScenario5_LongestPrefixMatch(t *testing.T) {
	rt := newRouteTable([]RouteConfig{
		{RoutePrefix: "/", Capture: CaptureFull},
		{RoutePrefix: "/trace", Capture: CaptureFull},
		{RoutePrefix: "/trace/deep", Capture: CaptureFull},
	})

	rc, ok := rt.match("/trace/deep/x")
	require.True(t, ok)
	assert.Equal(t, "/trace/deep", rc.RoutePrefix)

	rc, ok = rt.match("/trace/y")
	require.True(t, ok)
	assert.Equal(t, "/trace", rc.RoutePrefix)

	rc, ok = rt.match("/other")
	require.True(t, ok)
	assert.Equal(t, "/", rc.RoutePrefix)
}

func TestDispatch_UnknownRouteRepliesError(t *testing.T) {
	b := testBroker(t, []RouteConfig{{RoutePrefix: "/known", Output: "console", Capture: CaptureFull}})
	conn := newFakeConn()

	done := make(chan struct{})
	go func() { b.AcceptLink(context.Background(), conn); close(done) }()

	conn.send(t, wireevent.NewEventFrame(wireevent.FrameLog, "id-1", "/unknown", &wireevent.Event{Message: "hi"}))
	require.Eventually(t, func() bool { return lastOfType(conn.received(), wireevent.FrameError) != nil }, time.Second, time.Millisecond)

	errFrame := lastOfType(conn.received(), wireevent.FrameError)
	assert.Equal(t, "Unknown route", errFrame.Error)

	conn.Close()
	<-done
}

func TestDispatch_UnknownFrameTypeRepliesError(t *testing.T) {
	b := testBroker(t, []RouteConfig{{RoutePrefix: "/", Output: "console", Capture: CaptureFull}})
	conn := newFakeConn()

	done := make(chan struct{})
	go func() { b.AcceptLink(context.Background(), conn); close(done) }()

	conn.send(t, &wireevent.Frame{Type: "bogus"})
	require.Eventually(t, func() bool { return lastOfType(conn.received(), wireevent.FrameError) != nil }, time.Second, time.Millisecond)

	conn.Close()
	<-done
}

func TestSubscribeAndBroadcast_ConjunctiveFilter(t *testing.T) {
	b := testBroker(t, []RouteConfig{{RoutePrefix: "/", Output: "console", Capture: CaptureFull}})

	producer := newFakeConn()
	consumer := newFakeConn()

	doneP := make(chan struct{})
	doneC := make(chan struct{})
	go func() { b.AcceptLink(context.Background(), producer); close(doneP) }()
	go func() { b.AcceptLink(context.Background(), consumer); close(doneC) }()

	// Consumer subscribes with an include pattern AND an exclude pattern
	// that both match the same message: broker's conjunctive rule means
	// the exclude should block delivery even though include matches.
	consumer.send(t, wireevent.NewSubscribeFrame("/", &wireevent.Filters{
		IncludePatterns: []string{".*important.*"},
		ExcludePatterns: []string{".*message.*"},
	}))
	require.Eventually(t, func() bool { return lastOfType(consumer.received(), wireevent.FrameStatus) != nil }, time.Second, time.Millisecond)

	producer.send(t, wireevent.NewEventFrame(wireevent.FrameLog, "id-1", "/", &wireevent.Event{
		Message: "an important message",
		Level:   wireevent.LevelInfo,
	}))

	// Give broadcast a moment, then assert no trace/log frame reached the
	// consumer (conjunctive rule: exclude match vetoes despite include).
	time.Sleep(50 * time.Millisecond)
	assert.Nil(t, lastOfType(consumer.received(), wireevent.FrameLog))

	producer.Close()
	consumer.Close()
	<-doneP
	<-doneC
}

func TestSubscribeAndBroadcast_PassingFilterDelivers(t *testing.T) {
	b := testBroker(t, []RouteConfig{{RoutePrefix: "/", Output: "console", Capture: CaptureFull}})

	producer := newFakeConn()
	consumer := newFakeConn()

	doneP := make(chan struct{})
	doneC := make(chan struct{})
	go func() { b.AcceptLink(context.Background(), producer); close(doneP) }()
	go func() { b.AcceptLink(context.Background(), consumer); close(doneC) }()

	consumer.send(t, wireevent.NewSubscribeFrame("/", &wireevent.Filters{Levels: []wireevent.Level{wireevent.LevelInfo}}))
	require.Eventually(t, func() bool { return lastOfType(consumer.received(), wireevent.FrameStatus) != nil }, time.Second, time.Millisecond)

	producer.send(t, wireevent.NewEventFrame(wireevent.FrameLog, "id-1", "/", &wireevent.Event{
		Message: "hello",
		Level:   wireevent.LevelInfo,
	}))

	require.Eventually(t, func() bool { return lastOfType(consumer.received(), wireevent.FrameLog) != nil }, time.Second, time.Millisecond)
	ev := lastOfType(consumer.received(), wireevent.FrameLog)
	assert.Equal(t, "hello", ev.Data.Message)

	producer.Close()
	consumer.Close()
	<-doneP
	<-doneC
}

func TestPersist_CaptureFullRecord(t *testing.T) {
	dir := t.TempDir()

	w, err := newWriter(dir + "/full.jsonl")
	require.NoError(t, err)
	ev := &wireevent.Event{ID: "e1", Message: "hi", Level: wireevent.LevelInfo}

	require.NoError(t, persist(w, RouteConfig{Capture: CaptureFull}, "client-1", "/", "log", ev))
	require.NoError(t, w.close())

	data, err := os.ReadFile(dir + "/full.jsonl")
	require.NoError(t, err)

	var rec persistedRecord
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(string(data))), &rec))
	assert.Equal(t, "client-1", rec.ClientID)
	assert.Equal(t, "/", rec.Route)
	assert.Equal(t, "hi", rec.Data.Message)
}

func TestStats_SnapshotReflectsDispatch(t *testing.T) {
	s := newStats(nil)
	s.linkConnected()
	s.messageDispatched()
	s.messageDispatched()

	snap := s.snapshot()
	assert.Equal(t, 1, snap.LinkCount)
	assert.Equal(t, int64(2), snap.MessageCount)
}
