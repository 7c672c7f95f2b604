package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	Decisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gosizer_decisions_total",
			Help: "Sizing decisions by instrument and binding constraint.",
		},
		[]string{"instrument", "constraint"},
	)

	LotsSized = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gosizer_lots_sized",
			Help:    "Lot count of non-zero sizing decisions.",
			Buckets: []float64{1, 2, 3, 5, 8, 13, 21, 34, 55, 100},
		},
		[]string{"instrument", "type"},
	)

	OpenLegs = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "gosizer_open_legs",
			Help: "Open legs (base + pyramids) per instrument.",
		},
		[]string{"instrument"},
	)

	RealizedEquity = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gosizer_realized_equity",
			Help: "Initial capital plus closed-trade P&L.",
		},
	)

	CurrentEquity = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gosizer_current_equity",
			Help: "Realized equity plus open mark-to-market.",
		},
	)

	HighWaterMark = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gosizer_high_water_mark",
			Help: "Highest realized equity reached.",
		},
	)
)

func init() {
	prometheus.MustRegister(Decisions, LotsSized, OpenLegs, RealizedEquity, CurrentEquity, HighWaterMark)
}
