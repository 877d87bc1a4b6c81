package monitor

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"backtest-core/internal/events"
)

// Collector keeps per-run counters on a private registry so concurrent sweeps
// never collide on the global one.
type Collector struct {
	registry *prometheus.Registry

	signals       *prometheus.CounterVec
	rejected      *prometheus.CounterVec
	opened        *prometheus.CounterVec
	closed        *prometheus.CounterVec
	realized      *prometheus.GaugeVec
	tradeDuration prometheus.Histogram
	setupsArmed   *prometheus.CounterVec
	setupsCleared *prometheus.CounterVec
	finalBalance  prometheus.Gauge
	maxDrawdown   prometheus.Gauge
	eventsDropped prometheus.Gauge
	barsProcessed prometheus.Counter
}

// NewCollector registers the backtest metrics on a fresh registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		signals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "backtest_signal_evaluations_total",
			Help: "Agent evaluations by outcome",
		}, []string{"agent", "outcome"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "backtest_signals_rejected_total",
			Help: "Signals refused before or at the broker",
		}, []string{"agent", "reason"}),
		opened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "backtest_positions_opened_total",
			Help: "Positions opened by the virtual broker",
		}, []string{"symbol", "side"}),
		closed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "backtest_positions_closed_total",
			Help: "Positions closed by exit reason",
		}, []string{"symbol", "exit_reason"}),
		realized: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "backtest_realized_pnl",
			Help: "Sum of net profit of closed trades",
		}, []string{"symbol"}),
		tradeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "backtest_trade_duration_seconds",
			Help:    "Holding time of closed trades",
			Buckets: prometheus.ExponentialBuckets(60, 4, 8),
		}),
		setupsArmed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "backtest_setups_armed_total",
			Help: "Wait-state setups started",
		}, []string{"agent"}),
		setupsCleared: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "backtest_setups_cleared_total",
			Help: "Wait-state setups ended",
		}, []string{"agent", "outcome"}),
		finalBalance: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "backtest_final_balance",
			Help: "Balance at the end of the run",
		}),
		maxDrawdown: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "backtest_max_drawdown_percent",
			Help: "High-water-mark drawdown of the run",
		}),
		eventsDropped: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "backtest_events_dropped",
			Help: "Bus payloads discarded because a listener was full",
		}),
		barsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "backtest_bars_processed_total",
			Help: "Lower-timeframe bars replayed",
		}),
	}
	c.registry.MustRegister(
		c.signals, c.rejected, c.opened, c.closed, c.realized, c.tradeDuration,
		c.setupsArmed, c.setupsCleared, c.finalBalance, c.maxDrawdown,
		c.eventsDropped, c.barsProcessed,
	)
	return c
}

// Registry exposes the private registry, e.g. for a textfile export.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Observe folds one bus payload into the metrics. Unknown payloads are ignored.
func (c *Collector) Observe(payload any) {
	switch ev := payload.(type) {
	case events.SignalEvaluated:
		c.signals.WithLabelValues(ev.Agent, ev.Outcome).Inc()
		c.barsProcessed.Inc()
	case events.SignalRejected:
		c.rejected.WithLabelValues(ev.Agent, ev.Reason).Inc()
	case events.PositionOpened:
		c.opened.WithLabelValues(ev.Symbol, ev.Side).Inc()
	case events.PositionClosed:
		c.closed.WithLabelValues(ev.Symbol, ev.ExitReason).Inc()
		c.realized.WithLabelValues(ev.Symbol).Add(ev.NetProfit)
		c.tradeDuration.Observe(ev.Duration.Seconds())
	case events.SetupChanged:
		if ev.Outcome == "armed" {
			c.setupsArmed.WithLabelValues(ev.Agent).Inc()
		} else {
			c.setupsCleared.WithLabelValues(ev.Agent, ev.Outcome).Inc()
		}
	case events.RunCompleted:
		c.finalBalance.Set(ev.FinalBalance)
		c.maxDrawdown.Set(ev.MaxDrawdown)
	}
}

// SetDropped records the bus drop count.
func (c *Collector) SetDropped(n int64) {
	c.eventsDropped.Set(float64(n))
}

// WriteTextfile writes the registry in the node_exporter textfile format.
func (c *Collector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
