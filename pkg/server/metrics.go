package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	metricWSClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "openchamber",
		Name:      "websocket_clients",
		Help:      "Connected WebSocket clients.",
	})
	metricSSEStreams = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "openchamber",
		Name:      "sse_streams",
		Help:      "Open SSE event relay connections.",
	})
	metricMessagesPosted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "openchamber",
		Name:      "messages_posted_total",
		Help:      "User messages submitted through the web API.",
	})
)

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}
