package observability

import (
	"club-chat/domain/chat"

	"github.com/prometheus/client_golang/prometheus"
)

// SessionMetrics is safe to use on a nil receiver, in which case nothing is recorded.
type SessionMetrics struct {
	ActiveSessions    prometheus.Gauge
	PhaseTransitions  *prometheus.CounterVec
	ReconnectAttempts prometheus.Counter
	SendFailures      prometheus.Counter
	MessagesSent      prometheus.Counter
	ClubSubscribers   *prometheus.GaugeVec
	WorkerRestarts    *prometheus.CounterVec
}

func NewSessionMetrics(reg prometheus.Registerer) *SessionMetrics {
	m := &SessionMetrics{
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "club_chat",
			Name:      "active_sessions",
			Help:      "Number of running chat sessions.",
		}),
		PhaseTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "club_chat",
			Name:      "session_phase_transitions_total",
			Help:      "Chat session phase transitions by target phase.",
		}, []string{"phase"}),
		ReconnectAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "club_chat",
			Name:      "reconnect_attempts_total",
			Help:      "Scheduled resubscriptions after a stream error.",
		}),
		SendFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "club_chat",
			Name:      "send_failures_total",
			Help:      "Messages rejected by the store.",
		}),
		MessagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "club_chat",
			Name:      "messages_sent_total",
			Help:      "Messages accepted by the store.",
		}),
		ClubSubscribers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "club_chat",
			Name:      "club_subscribers",
			Help:      "Live snapshot subscriptions per club, sampled.",
		}, []string{"club_id"}),
		WorkerRestarts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "club_chat",
			Name:      "worker_restarts_total",
			Help:      "Background worker restarts after an error or a panic.",
		}, []string{"worker"}),
	}
	reg.MustRegister(m.ActiveSessions, m.PhaseTransitions, m.ReconnectAttempts, m.SendFailures, m.MessagesSent,
		m.ClubSubscribers, m.WorkerRestarts)
	return m
}

func (m *SessionMetrics) SessionStarted() {
	if m != nil {
		m.ActiveSessions.Inc()
	}
}

func (m *SessionMetrics) SessionEnded() {
	if m != nil {
		m.ActiveSessions.Dec()
	}
}

func (m *SessionMetrics) PhaseChanged(phase string) {
	if m != nil {
		m.PhaseTransitions.WithLabelValues(phase).Inc()
	}
}

func (m *SessionMetrics) Reconnect() {
	if m != nil {
		m.ReconnectAttempts.Inc()
	}
}

func (m *SessionMetrics) SendFailed() {
	if m != nil {
		m.SendFailures.Inc()
	}
}

func (m *SessionMetrics) Sent() {
	if m != nil {
		m.MessagesSent.Inc()
	}
}

// SetSubscribers replaces the sampled counts, clubs without subscribers disappear.
func (m *SessionMetrics) SetSubscribers(counts map[chat.ClubID]int) {
	if m == nil {
		return
	}
	m.ClubSubscribers.Reset()
	for clubID, count := range counts {
		m.ClubSubscribers.WithLabelValues(string(clubID)).Set(float64(count))
	}
}

func (m *SessionMetrics) WorkerRestarted(name string) {
	if m != nil {
		m.WorkerRestarts.WithLabelValues(name).Inc()
	}
}
