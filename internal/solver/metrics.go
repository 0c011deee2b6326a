package solver

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"intent-solver/pkg/types"
)

// Prometheus mirrors of the engine counters, served on /metrics.
var (
	promProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "solver_intents_processed_total",
		Help: "Intents whose pipeline ran past the open-status check",
	})
	promExecuted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "solver_intents_executed_total",
		Help: "Intents settled successfully",
	})
	promSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "solver_intents_skipped_total",
		Help: "Intents skipped as unprofitable or unquotable",
	})
	promGasSpent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "solver_gas_spent_total",
		Help: "Cumulative gas units spent on settlements",
	})
	promProfit = promauto.NewCounter(prometheus.CounterOpts{
		Name: "solver_profit_raw_total",
		Help: "Cumulative profit in raw output-asset units",
	})
)

// Metrics holds the engine's monotonic counters. Increments are atomic;
// readers get a recent consistent-enough snapshot, no total ordering.
type Metrics struct {
	processed atomic.Uint64
	executed  atomic.Uint64
	skipped   atomic.Uint64
	gasSpent  atomic.Uint64
	profitRaw atomic.Uint64
}

func (m *Metrics) incProcessed() {
	m.processed.Add(1)
	promProcessed.Inc()
}

func (m *Metrics) incExecuted() {
	m.executed.Add(1)
	promExecuted.Inc()
}

func (m *Metrics) incSkipped() {
	m.skipped.Add(1)
	promSkipped.Inc()
}

func (m *Metrics) addGas(units uint64) {
	m.gasSpent.Add(units)
	promGasSpent.Add(float64(units))
}

func (m *Metrics) addProfit(raw uint64) {
	m.profitRaw.Add(raw)
	promProfit.Add(float64(raw))
}

// Snapshot returns the current counter values.
func (m *Metrics) Snapshot() types.MetricsSnapshot {
	return types.MetricsSnapshot{
		Processed: m.processed.Load(),
		Executed:  m.executed.Load(),
		Skipped:   m.skipped.Load(),
		GasSpent:  m.gasSpent.Load(),
		ProfitRaw: m.profitRaw.Load(),
	}
}
