package obs

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"venuetrader/internal/schema"
)

// Metrics collects venue traffic counters, book gauges and dispatch latency.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	received      *prometheus.CounterVec
	sent          *prometheus.CounterVec
	orders        *prometheus.CounterVec
	venueFaults   *prometheus.CounterVec
	disconnects   *prometheus.CounterVec
	trackedOrders prometheus.Gauge
	netPosition   prometheus.Gauge

	queueDrops      uint64
	dispatchLatency LatencyStats
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
}

// Snapshot captures the non-prometheus values.
type Snapshot struct {
	QueueDrops      uint64
	DispatchLatency LatencySnapshot
}

// NewMetrics allocates a metrics container with its own registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		received: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "venue_envelopes_received_total", Help: "Envelopes received from the venue"},
			[]string{"session", "kind"},
		),
		sent: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "venue_envelopes_sent_total", Help: "Envelopes sent to the venue"},
			[]string{"session", "kind"},
		),
		orders: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "orders_submitted_total", Help: "Order adds submitted"},
			[]string{"product", "tag"},
		),
		venueFaults: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "venue_faults_total", Help: "Order failures and errors reported by the venue"},
			[]string{"kind"},
		),
		disconnects: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "session_disconnects_total", Help: "Session teardowns"},
			[]string{"session"},
		),
		trackedOrders: prometheus.NewGauge(
			prometheus.GaugeOpts{Name: "tracked_orders", Help: "Orders in the active order map"},
		),
		netPosition: prometheus.NewGauge(
			prometheus.GaugeOpts{Name: "net_position", Help: "Sum of all tracked positions"},
		),
	}
	m.registry.MustRegister(m.received, m.sent, m.orders, m.venueFaults, m.disconnects, m.trackedOrders, m.netPosition)
	return m
}

// Registry exposes the underlying prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveReceived counts one inbound envelope.
func (m *Metrics) ObserveReceived(session string, t schema.MsgType) {
	if m == nil {
		return
	}
	m.received.WithLabelValues(session, t.String()).Inc()
}

// ObserveSent counts one outbound envelope.
func (m *Metrics) ObserveSent(session string, t schema.MsgType) {
	if m == nil {
		return
	}
	m.sent.WithLabelValues(session, t.String()).Inc()
}

// IncOrder counts one submitted order add.
func (m *Metrics) IncOrder(product, tag string) {
	if m == nil {
		return
	}
	m.orders.WithLabelValues(product, tag).Inc()
}

// IncVenueFault counts one venue-reported fault.
func (m *Metrics) IncVenueFault(t schema.MsgType) {
	if m == nil {
		return
	}
	m.venueFaults.WithLabelValues(t.String()).Inc()
}

// IncDisconnect counts one session teardown.
func (m *Metrics) IncDisconnect(session string) {
	if m == nil {
		return
	}
	m.disconnects.WithLabelValues(session).Inc()
}

// SetBook publishes the order count and net position.
func (m *Metrics) SetBook(orders int, net int64) {
	if m == nil {
		return
	}
	m.trackedOrders.Set(float64(orders))
	m.netPosition.Set(float64(net))
}

// IncQueueDrop records an envelope dropped by the dispatch queue.
func (m *Metrics) IncQueueDrop() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.queueDrops, 1)
}

// ObserveDispatch measures receive-to-handled latency.
func (m *Metrics) ObserveDispatch(d time.Duration) {
	if m == nil {
		return
	}
	m.dispatchLatency.Observe(d)
}

// Snapshot returns a copy of the non-prometheus values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	return Snapshot{
		QueueDrops:      atomic.LoadUint64(&m.queueDrops),
		DispatchLatency: m.dispatchLatency.Snapshot(),
	}
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr in the background.
func Serve(addr string, m *Metrics) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}

// Observe records a duration sample.
func (l *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	nanos := uint64(d)
	atomic.AddUint64(&l.count, 1)
	atomic.AddUint64(&l.sum, nanos)

	for {
		min := atomic.LoadUint64(&l.min)
		if min != 0 && nanos >= min {
			break
		}
		if atomic.CompareAndSwapUint64(&l.min, min, nanos) {
			break
		}
	}

	for {
		max := atomic.LoadUint64(&l.max)
		if nanos <= max {
			break
		}
		if atomic.CompareAndSwapUint64(&l.max, max, nanos) {
			break
		}
	}
}

// Snapshot returns the aggregated latency stats.
func (l *LatencyStats) Snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&l.count)
	if count == 0 {
		return LatencySnapshot{}
	}
	sum := atomic.LoadUint64(&l.sum)
	min := atomic.LoadUint64(&l.min)
	max := atomic.LoadUint64(&l.max)
	return LatencySnapshot{
		Count: count,
		Min:   time.Duration(min),
		Max:   time.Duration(max),
		Avg:   time.Duration(sum / count),
	}
}
