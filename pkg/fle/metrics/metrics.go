// Package metrics instruments the election loop so operators can see
// drop rates and round activity without FLE owning a full metrics
// subsystem of its own: only the handful of counters and gauges the
// Receive Worker and Election Core already know how to update as they
// run.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Collector bundles every metric FLE emits. A nil *Collector is valid
// everywhere it's used (all methods are nil-receiver safe), so callers
// that don't want metrics can simply not construct one.
type Collector struct {
	roundsStarted          prometheus.Counter
	quorumReached          prometheus.Gauge
	logicalClock           prometheus.Gauge
	notificationsSent      prometheus.Counter
	notificationsReceived  prometheus.Counter
	framesDropped          *prometheus.CounterVec
	notificationsDiscarded *prometheus.CounterVec
}

// NewCollector registers every FLE metric against reg and returns the
// bundle. Pass prometheus.NewRegistry() in tests to avoid colliding
// with the global default registry across parallel election instances.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		roundsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fle",
			Name:      "election_rounds_started_total",
			Help:      "Number of times lookForLeader has been entered.",
		}),
		quorumReached: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "fle",
			Name:      "quorum_reached",
			Help:      "1 while the local peer is in the finalization window, 0 otherwise.",
		}),
		logicalClock: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "fle",
			Name:      "logical_clock",
			Help:      "Current value of the local electionEpoch counter.",
		}),
		notificationsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fle",
			Name:      "notifications_sent_total",
			Help:      "Notifications the Send Worker handed to the Transport without error.",
		}),
		notificationsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fle",
			Name:      "notifications_received_total",
			Help:      "Notifications from voting members decoded by the Receive Worker.",
		}),
		framesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fle",
			Name:      "frames_dropped_total",
			Help:      "Frames dropped, by reason: undecodable inbound frames, a full outbox, or a failed send.",
		}, []string{"reason"}),
		notificationsDiscarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fle",
			Name:      "notifications_discarded_total",
			Help:      "Decoded notifications discarded by the Receive Worker or the Election Core, by reason.",
		}, []string{"reason"}),
	}

	if reg != nil {
		reg.MustRegister(
			c.roundsStarted,
			c.quorumReached,
			c.logicalClock,
			c.notificationsSent,
			c.notificationsReceived,
			c.framesDropped,
			c.notificationsDiscarded,
		)
	}

	return c
}

func (c *Collector) RoundStarted() {
	if c == nil {
		return
	}
	c.roundsStarted.Inc()
}

func (c *Collector) SetQuorumReached(reached bool) {
	if c == nil {
		return
	}
	if reached {
		c.quorumReached.Set(1)
	} else {
		c.quorumReached.Set(0)
	}
}

func (c *Collector) SetLogicalClock(v int64) {
	if c == nil {
		return
	}
	c.logicalClock.Set(float64(v))
}

func (c *Collector) NotificationSent() {
	if c == nil {
		return
	}
	c.notificationsSent.Inc()
}

func (c *Collector) NotificationReceived() {
	if c == nil {
		return
	}
	c.notificationsReceived.Inc()
}

func (c *Collector) FrameDropped(reason string) {
	if c == nil {
		return
	}
	c.framesDropped.WithLabelValues(reason).Inc()
}

func (c *Collector) NotificationDiscarded(reason string) {
	if c == nil {
		return
	}
	c.notificationsDiscarded.WithLabelValues(reason).Inc()
}
