package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	messagesPersisted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "messages_persisted_total",
		Help: "Total number of messages durably persisted",
	})

	liveDeliveries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "messages_delivered_live_total",
		Help: "Total number of messages delivered over a live session",
	})

	pushFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "messages_push_fallback_total",
		Help: "Total number of push notification fallback attempts",
	})

	seenUpdates = promauto.NewCounter(prometheus.CounterOpts{
		Name: "messages_seen_updates_total",
		Help: "Total number of applied seen acknowledgments",
	})
)
