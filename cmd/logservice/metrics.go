package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingestion metrics
	ingestedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logservice_ingested_records_total",
			Help: "Total number of records stored, by log type",
		},
		[]string{"type"},
	)

	rateLimitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "logservice_rate_limited_requests_total",
			Help: "Total number of ingest requests rejected by the per-IP limiter",
		},
	)

	// Live feed metrics
	publishedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "logservice_live_events_published_total",
			Help: "Total number of access events fanned out to live subscribers",
		},
	)

	droppedSubscribersTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "logservice_live_slow_subscribers_dropped_total",
			Help: "Total number of live subscribers disconnected for falling behind",
		},
	)

	streamSubscribers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "logservice_live_subscribers",
			Help: "Current number of live subscribers, by transport",
		},
		[]string{"transport"},
	)

	// Retention
	cleanupDeletedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "logservice_cleanup_deleted_records_total",
			Help: "Total number of records removed by retention cleanup",
		},
	)
)
