package broker

import (
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const rateWindowSeconds = 60

// stats tracks uptime, link count, message throughput, and a 60-second
// rolling per-second rate (§4.4 "Stats"), alongside Prometheus gauges and
// counters for the /metrics surface (SPEC_FULL.md §B).
type stats struct {
	startedAt time.Time

	mu          sync.Mutex
	linkCount   int
	messageCount int64
	buckets     [rateWindowSeconds]int64 // messages received during second i%60
	bucketSec   int64                    // unix second the buckets array is centered on

	linkGauge    prometheus.Gauge
	messageTotal prometheus.Counter
	dispatchErrs prometheus.Counter
}

func newStats(registerer prometheus.Registerer) *stats {
	s := &stats{
		startedAt: time.Now(),
		linkGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wslog_broker_links",
			Help: "Number of currently connected links.",
		}),
		messageTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wslog_broker_messages_total",
			Help: "Total log/trace messages dispatched.",
		}),
		dispatchErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wslog_broker_dispatch_errors_total",
			Help: "Total dispatch errors (persistence or broadcast failures).",
		}),
	}
	if registerer != nil {
		registerer.MustRegister(s.linkGauge, s.messageTotal, s.dispatchErrs)
	}
	return s
}

func (s *stats) linkConnected() {
	s.mu.Lock()
	s.linkCount++
	s.mu.Unlock()
	s.linkGauge.Inc()
}

func (s *stats) linkDisconnected() {
	s.mu.Lock()
	if s.linkCount > 0 {
		s.linkCount--
	}
	s.mu.Unlock()
	s.linkGauge.Dec()
}

func (s *stats) messageDispatched() {
	now := time.Now().Unix()
	s.mu.Lock()
	s.messageCount++
	idx := now % rateWindowSeconds
	if s.bucketSec != now {
		// Clear every bucket between the last observed second and now so
		// a quiet period doesn't leave stale counts in the window.
		s.clearBucketsBetween(s.bucketSec, now)
		s.bucketSec = now
	}
	s.buckets[idx]++
	s.mu.Unlock()
	s.messageTotal.Inc()
}

func (s *stats) dispatchError() {
	s.dispatchErrs.Inc()
}

// clearBucketsBetween zeroes bucket slots for seconds strictly after
// `from` up to and including `to`, bounded to one full window pass.
func (s *stats) clearBucketsBetween(from, to int64) {
	span := to - from
	if span > rateWindowSeconds || from == 0 {
		span = rateWindowSeconds
	}
	for i := int64(1); i <= span; i++ {
		s.buckets[(from+i)%rateWindowSeconds] = 0
	}
}

// Snapshot is the point-in-time view returned by the broker's /status API.
type Snapshot struct {
	Uptime        time.Duration `json:"uptime"`
	LinkCount     int           `json:"linkCount"`
	MessageCount  int64         `json:"messageCount"`
	RatePerSecond float64       `json:"ratePerSecond"`
	AllocBytes    uint64        `json:"allocBytes"`
	SysBytes      uint64        `json:"sysBytes"`
}

func (s *stats) snapshot() Snapshot {
	s.mu.Lock()
	now := time.Now().Unix()
	s.clearBucketsBetween(s.bucketSec, now)
	s.bucketSec = now
	var total int64
	for _, v := range s.buckets {
		total += v
	}
	snap := Snapshot{
		Uptime:        time.Since(s.startedAt),
		LinkCount:     s.linkCount,
		MessageCount:  s.messageCount,
		RatePerSecond: float64(total) / rateWindowSeconds,
	}
	s.mu.Unlock()

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	snap.AllocBytes = mem.Alloc
	snap.SysBytes = mem.Sys
	return snap
}
