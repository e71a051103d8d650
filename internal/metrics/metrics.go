package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LayoutTicks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gridscope_layout_ticks_total",
		Help: "Total number of layout simulation steps taken.",
	})

	FramesPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gridscope_frames_published_total",
		Help: "Total number of frames projected and published to subscribers.",
	})

	FramesCoalesced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gridscope_frames_coalesced_total",
		Help: "Total number of pending frame requests replaced by a newer one.",
	})

	Gestures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gridscope_gestures_total",
		Help: "Total number of operator gestures, labelled by kind and result.",
	}, []string{"kind", "result"})

	StoreNodes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gridscope_store_nodes",
		Help: "Current number of nodes in the topology store.",
	})

	StoreLinks = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gridscope_store_links",
		Help: "Current number of links in the topology store.",
	})

	BackendRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gridscope_backend_request_seconds",
		Help:    "Computation backend request latency in seconds, labelled by operation and status.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"op", "status"})

	SSEClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gridscope_sse_clients",
		Help: "Current number of connected event stream clients.",
	})
)
