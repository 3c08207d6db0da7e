package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CommandsTotal tracks !liq commands by outcome
	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "liqnotify_commands_total",
			Help: "Total number of !liq commands handled",
		},
		[]string{"outcome"},
	)

	// NotificationsTotal tracks broadcast deliveries per sink
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "liqnotify_notifications_total",
			Help: "Total number of liquidity notifications sent",
		},
		[]string{"sink", "result"},
	)

	// LiquidityEventsTotal counts fired token watchers
	LiquidityEventsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "liqnotify_liquidity_events_total",
			Help: "Total number of liquidity events received",
		},
	)

	// WatchErrorsTotal counts watchers that ended with an upstream error
	WatchErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "liqnotify_watch_errors_total",
			Help: "Total number of token watchers that ended before firing",
		},
	)

	// ArmedWatchers is the number of tokens currently being watched
	ArmedWatchers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "liqnotify_armed_watchers",
			Help: "Number of token watchers currently armed",
		},
	)

	// SymbolLookupSeconds tracks symbol() call latency
	SymbolLookupSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "liqnotify_symbol_lookup_seconds",
			Help:    "Token symbol lookup latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"result"},
	)
)
