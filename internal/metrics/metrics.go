// Package metrics holds the gateway's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kafgate",
		Name:      "requests_total",
		Help:      "Requests handled, by API name and error outcome.",
	}, []string{"api", "outcome"})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "kafgate",
		Name:      "request_duration_seconds",
		Help:      "Request handling latency, by API name.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"api"})

	ConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "kafgate",
		Name:      "connections_active",
		Help:      "Open client connections.",
	})

	BatchesAppended = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "kafgate",
		Name:      "batches_appended_total",
		Help:      "Record batches accepted by produce requests.",
	})

	BytesFetched = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "kafgate",
		Name:      "bytes_fetched_total",
		Help:      "Batch bytes returned by fetch requests.",
	})

	OffsetsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "kafgate",
		Name:      "offsets_expired_total",
		Help:      "Committed offsets removed by the retention sweeper.",
	})
)
