package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tokex"

// Metrics are the engine's prometheus collectors.
type Metrics struct {
	Instructions        *prometheus.CounterVec
	InstructionDuration *prometheus.HistogramVec
	InvariantViolations prometheus.Counter

	Trades         prometheus.Counter
	TradedQuantity prometheus.Counter
	TradedNotional prometheus.Counter
	FeesCollected  prometheus.Counter
	RestingOrders  prometheus.Gauge

	OutboxPublished *prometheus.CounterVec
	OutboxPending   prometheus.Gauge

	Snapshots *prometheus.CounterVec
}

// New builds the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Instructions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "instructions_total",
			Help:      "Instructions processed, by instruction and outcome class.",
		}, []string{"instruction", "class"}),
		InstructionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "instruction_duration_seconds",
			Help:      "Time to execute and commit one instruction.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		}, []string{"instruction"}),
		InvariantViolations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "escrow_invariant_violations_total",
			Help:      "Instructions aborted because escrow drifted from its order.",
		}),

		Trades: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "market",
			Name:      "trades_total",
			Help:      "Executed trades.",
		}),
		TradedQuantity: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "market",
			Name:      "traded_quantity_total",
			Help:      "Company tokens exchanged.",
		}),
		TradedNotional: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "market",
			Name:      "traded_notional_total",
			Help:      "Payment units exchanged, before fees.",
		}),
		FeesCollected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "market",
			Name:      "fees_collected_total",
			Help:      "Platform fees collected in payment units.",
		}),
		RestingOrders: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "market",
			Name:      "resting_orders",
			Help:      "Orders resting across all books.",
		}),

		OutboxPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "published_total",
			Help:      "Outbox delivery attempts, by result.",
		}, []string{"result"}),
		OutboxPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "pending",
			Help:      "Events found waiting on the last relay pass.",
		}),

		Snapshots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "maintenance",
			Name:      "snapshots_total",
			Help:      "Depth snapshots written, by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(
		m.Instructions,
		m.InstructionDuration,
		m.InvariantViolations,
		m.Trades,
		m.TradedQuantity,
		m.TradedNotional,
		m.FeesCollected,
		m.RestingOrders,
		m.OutboxPublished,
		m.OutboxPending,
		m.Snapshots,
	)
	return m
}

// Nop returns collectors bound to a throwaway registry.
func Nop() *Metrics {
	return New(prometheus.NewRegistry())
}
