// Package metrics exposes the chat engine's Prometheus collectors.
package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Tyrowin/roomchat/internal/chat"
)

const namespace = "roomchat"

// Collector implements chat.Metrics on a private Prometheus registry.
type Collector struct {
	registry *prometheus.Registry

	sessions   *prometheus.GaugeVec
	rejected   *prometheus.CounterVec
	broadcasts *prometheus.CounterVec
	dropped    *prometheus.CounterVec
}

var _ chat.Metrics = (*Collector)(nil)

// New builds and registers all collectors.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		sessions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Sessions currently joined, by room.",
		}, []string{"room"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "joins_rejected_total",
			Help:      "Join attempts refused, by reason.",
		}, []string{"reason"}),
		broadcasts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcasts_total",
			Help:      "Room broadcasts dispatched, by room and kind.",
		}, []string{"room", "kind"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_dropped_total",
			Help:      "Events dropped because a recipient queue was full, by room.",
		}, []string{"room"}),
	}

	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.sessions,
		c.rejected,
		c.broadcasts,
		c.dropped,
	)
	return c
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) SessionOpened(room string) { c.sessions.WithLabelValues(room).Inc() }

func (c *Collector) SessionClosed(room string) { c.sessions.WithLabelValues(room).Dec() }

func (c *Collector) JoinRejected(reason error) {
	c.rejected.WithLabelValues(reasonLabel(reason)).Inc()
}

func (c *Collector) Broadcast(room, kind string) { c.broadcasts.WithLabelValues(room, kind).Inc() }

func (c *Collector) Dropped(room string) { c.dropped.WithLabelValues(room).Inc() }

func reasonLabel(err error) string {
	switch {
	case errors.Is(err, chat.ErrUnknownRoom):
		return "unknown_room"
	case errors.Is(err, chat.ErrRoomFull):
		return "room_full"
	case errors.Is(err, chat.ErrNameOccupied):
		return "name_occupied"
	case errors.Is(err, chat.ErrInvalidName):
		return "invalid_name"
	default:
		return "other"
	}
}
