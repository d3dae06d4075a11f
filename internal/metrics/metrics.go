package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	ParticipantsRegistered prometheus.Counter
	MessagesPosted         prometheus.Counter
	MessagesDeleted        prometheus.Counter
	ParticipantsEvicted    prometheus.Counter
	PublishFailures        prometheus.Counter
}

// New registers the chat counters on reg. Each test can pass its own registry.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ParticipantsRegistered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chat_participants_registered_total",
			Help: "Participants that joined the room.",
		}),
		MessagesPosted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chat_messages_posted_total",
			Help: "Messages posted by participants.",
		}),
		MessagesDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chat_messages_deleted_total",
			Help: "Messages deleted by their sender.",
		}),
		ParticipantsEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chat_participants_evicted_total",
			Help: "Participants removed by the idle sweep.",
		}),
		PublishFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chat_events_publish_failures_total",
			Help: "Events that could not be published.",
		}),
	}
	reg.MustRegister(
		m.ParticipantsRegistered,
		m.MessagesPosted,
		m.MessagesDeleted,
		m.ParticipantsEvicted,
		m.PublishFailures,
	)
	return m
}

// Handler returns an http.Handler for Prometheus scraping
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
