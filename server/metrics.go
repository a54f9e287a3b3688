package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricSessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "safechat_sessions_active",
		Help: "Currently open socket sessions.",
	})
	metricLocationUpdates = promauto.NewCounter(prometheus.CounterOpts{
		Name: "safechat_location_updates_total",
		Help: "Accepted location updates.",
	})
	metricLocationRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "safechat_location_rejected_total",
		Help: "Location updates rejected at validation.",
	})
	metricMessagesRelayed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "safechat_messages_relayed_total",
		Help: "Messages delivered to a live recipient session.",
	})
	metricAlertsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "safechat_alerts_dispatched_total",
		Help: "Proximity alert records created.",
	}, []string{"classification"})
	metricAlertsSuppressed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "safechat_alerts_suppressed_total",
		Help: "Alert notifications throttled by per-pair cooldown.",
	})
	metricPushesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "safechat_pushes_dropped_total",
		Help: "Events dropped against stale or saturated sessions.",
	})
)
