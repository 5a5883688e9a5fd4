// Service layer of the internal package metrics.
// Counters describing how the realtime layer of Agora behaves, exported through prometheus.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Reasons an inbound event can be dropped.
const (
	ReasonMalformed = "malformed"
	ReasonInvalid   = "invalid"
	ReasonNoHandler = "no_handler"
)

// Outcomes of an outbound emit.
const (
	ResultSent         = "sent"
	ResultNotConnected = "not_connected"
	ResultFailed       = "failed"
	ResultThrottled    = "throttled"
)

// Service layer of internal package metrics which records realtime activity of Agora.
type Service interface {
	// count an inbound event handed to its handler
	EventReceived(event string)
	// count an inbound event discarded before or by its handler
	EventDropped(event, reason string)
	// count an event-driven cache write
	CacheWritten(event string)
	// count an outbound emit by outcome
	Emitted(event, result string)
	// count a room join sent to the channel
	RoomJoined()
	// count a room leave sent to the channel
	RoomLeft()
	// count a transport (re)connection
	Connected()
}

// Object of this will be passed around from main to every realtime component.
type service struct {
	received *prometheus.CounterVec
	dropped  *prometheus.CounterVec
	written  *prometheus.CounterVec
	emitted  *prometheus.CounterVec
	joins    prometheus.Counter
	leaves   prometheus.Counter
	connects prometheus.Counter
}

// Creates the collectors and registers them on reg.
// Tests pass their own prometheus.NewRegistry() to stay isolated.
func NewService(reg prometheus.Registerer) Service {
	s := service{
		received: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agora", Subsystem: "realtime", Name: "events_received_total",
			Help: "Inbound events dispatched to a handler.",
		}, []string{"event"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agora", Subsystem: "realtime", Name: "events_dropped_total",
			Help: "Inbound events discarded without touching the cache.",
		}, []string{"event", "reason"}),
		written: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agora", Subsystem: "cache", Name: "event_writes_total",
			Help: "Cache entries replaced by event handlers.",
		}, []string{"event"}),
		emitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agora", Subsystem: "realtime", Name: "emits_total",
			Help: "Outbound events by outcome.",
		}, []string{"event", "result"}),
		joins: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "agora", Subsystem: "room", Name: "joins_total",
			Help: "Room joins sent.",
		}),
		leaves: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "agora", Subsystem: "room", Name: "leaves_total",
			Help: "Room leaves sent.",
		}),
		connects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "agora", Subsystem: "channel", Name: "connects_total",
			Help: "Successful transport connections.",
		}),
	}
	if reg != nil {
		reg.MustRegister(s.received, s.dropped, s.written, s.emitted, s.joins, s.leaves, s.connects)
	}
	return s
}

func (s service) EventReceived(event string) {
	s.received.WithLabelValues(event).Inc()
}

func (s service) EventDropped(event, reason string) {
	s.dropped.WithLabelValues(event, reason).Inc()
}

func (s service) CacheWritten(event string) {
	s.written.WithLabelValues(event).Inc()
}

func (s service) Emitted(event, result string) {
	s.emitted.WithLabelValues(event, result).Inc()
}

func (s service) RoomJoined() {
	s.joins.Inc()
}

func (s service) RoomLeft() {
	s.leaves.Inc()
}

func (s service) Connected() {
	s.connects.Inc()
}
