// internal/telemetry/telemetry.go

package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	swipesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cafemeetups_swipes_total",
			Help: "Total number of swipes by action",
		},
		[]string{"action"},
	)

	matchesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cafemeetups_matches_total",
			Help: "Total number of confirmed matches",
		},
	)

	transientErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cafemeetups_transient_errors_total",
			Help: "Operations that failed on the wire but proceeded locally",
		},
		[]string{"op"},
	)

	feedLoadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cafemeetups_feed_loads_total",
			Help: "Feed load attempts by outcome",
		},
		[]string{"status"},
	)

	messagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cafemeetups_messages_total",
			Help: "Chat messages by direction",
		},
		[]string{"direction"},
	)

	reconnectsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cafemeetups_channel_reconnects_total",
			Help: "Real-time channel reconnect attempts",
		},
	)
)

func RecordSwipe(action string) {
	swipesTotal.WithLabelValues(action).Inc()
}

func RecordMatch() {
	matchesTotal.Inc()
}

func RecordTransient(op string) {
	transientErrorsTotal.WithLabelValues(op).Inc()
}

func RecordFeedLoad(status string) {
	feedLoadsTotal.WithLabelValues(status).Inc()
}

func RecordMessage(direction string) {
	messagesTotal.WithLabelValues(direction).Inc()
}

func RecordReconnect() {
	reconnectsTotal.Inc()
}
