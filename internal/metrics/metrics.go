package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// WSConnections is advisory only: it is reset on process restart and
	// must never be consulted for correctness decisions.
	WSConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "messaging_ws_active_connections",
		Help: "Currently joined websocket clients",
	})

	MessagesCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "messaging_messages_created_total",
		Help: "Messages durably persisted",
	})

	MessagesDelivered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "messaging_messages_delivered_total",
		Help: "Messages pushed to a connected recipient",
	})
)

func Init() {
	prometheus.MustRegister(WSConnections, MessagesCreated, MessagesDelivered)
}

// Handler returns an http.Handler for Prometheus scraping
func Handler() http.Handler {
	return promhttp.Handler()
}
