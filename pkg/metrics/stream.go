package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// StreamMetrics records notification stream client activity.
type StreamMetrics struct {
	delivered  *prometheus.CounterVec
	malformed  prometheus.Counter
	reconnects prometheus.Counter
	terminal   prometheus.Counter
}

// NewStreamMetrics registers the stream metrics on the provided registerer.
func NewStreamMetrics(reg prometheus.Registerer) *StreamMetrics {
	if reg == nil {
		return &StreamMetrics{}
	}
	delivered := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stream_notifications_delivered",
		Help: "Notifications delivered to subscribers.",
	}, []string{"severity"})
	malformed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stream_frames_malformed",
		Help: "Frames that failed JSON decoding and were wrapped.",
	})
	reconnects := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stream_reconnect_attempts",
		Help: "Reconnect attempts scheduled after connection failures.",
	})
	terminal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stream_terminal_failures",
		Help: "Subscriptions terminated after exhausting reconnect attempts.",
	})
	reg.MustRegister(delivered, malformed, reconnects, terminal)
	return &StreamMetrics{
		delivered:  delivered,
		malformed:  malformed,
		reconnects: reconnects,
		terminal:   terminal,
	}
}

// IncDelivered increments the delivered counter for the given severity.
func (s *StreamMetrics) IncDelivered(severity string) {
	if s == nil || s.delivered == nil {
		return
	}
	if severity == "" {
		severity = "unknown"
	}
	s.delivered.WithLabelValues(severity).Inc()
}

// IncMalformed increments the malformed-frame counter.
func (s *StreamMetrics) IncMalformed() {
	if s == nil || s.malformed == nil {
		return
	}
	s.malformed.Inc()
}

// IncReconnect increments the reconnect-attempt counter.
func (s *StreamMetrics) IncReconnect() {
	if s == nil || s.reconnects == nil {
		return
	}
	s.reconnects.Inc()
}

// IncTerminal increments the terminal-failure counter.
func (s *StreamMetrics) IncTerminal() {
	if s == nil || s.terminal == nil {
		return
	}
	s.terminal.Inc()
}
