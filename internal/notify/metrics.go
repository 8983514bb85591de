package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pushClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "filecat_push_clients",
		Help: "Number of connected push clients.",
	})

	pushEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "filecat_push_events_total",
		Help: "Events queued for push clients.",
	}, []string{"event"})

	pushDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "filecat_push_dropped_total",
		Help: "Events dropped because a client buffer was full.",
	}, []string{"event"})
)
