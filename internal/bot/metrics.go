package bot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ============================================================
// Prometheus метрики торгового ядра
// ============================================================

// MonitorTicks - количество завершённых тиков мониторинга
var MonitorTicks = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "arbitrage",
		Subsystem: "monitor",
		Name:      "ticks_total",
		Help:      "Total number of completed monitor ticks",
	},
)

// GapObserved - наблюдаемые гэпы по символам и парам
var GapObserved = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "arbitrage",
		Subsystem: "monitor",
		Name:      "gap_observed_percent",
		Help:      "Observed gap values in percent",
		Buckets:   []float64{-0.5, -0.2, -0.1, -0.06, -0.02, 0, 0.02, 0.05, 0.1, 0.2, 0.5},
	},
	[]string{"symbol", "pair"},
)

// SignalsEmitted - сигналы по классам: notify, trade
var SignalsEmitted = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "arbitrage",
		Subsystem: "monitor",
		Name:      "signals_emitted_total",
		Help:      "Number of emitted signals by class",
	},
	[]string{"symbol", "class"},
)

// AlertsSuppressed - алерты, подавленные dedup окном
var AlertsSuppressed = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "arbitrage",
		Subsystem: "monitor",
		Name:      "alerts_suppressed_total",
		Help:      "Number of alerts suppressed by the dedup window",
	},
	[]string{"symbol"},
)

// FetchErrors - ошибки запросов рыночных данных по биржам
var FetchErrors = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "arbitrage",
		Subsystem: "monitor",
		Name:      "fetch_errors_total",
		Help:      "Number of market data fetch failures",
	},
	[]string{"exchange"},
)

// TradesTotal - исходы сделок: success, failed, compensated
var TradesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "arbitrage",
		Subsystem: "executor",
		Name:      "trades_total",
		Help:      "Total number of trade attempts by result",
	},
	[]string{"symbol", "result"},
)

// LegLatency - латентность размещения одной ноги
var LegLatency = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "arbitrage",
		Subsystem: "executor",
		Name:      "leg_latency_ms",
		Help:      "Per-leg order submission latency in milliseconds",
		Buckets:   []float64{50, 100, 200, 300, 500, 1000, 2000, 5000},
	},
	[]string{"exchange", "side"},
)

// MonitorRunning - состояние монитора (1 = running)
var MonitorRunning = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "arbitrage",
		Subsystem: "monitor",
		Name:      "running",
		Help:      "Monitor state (1=running, 0=stopped)",
	},
)

// VenueUp - готовность бирж (1 = initialized)
var VenueUp = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "arbitrage",
		Subsystem: "exchange",
		Name:      "venue_up",
		Help:      "Venue initialization status (1=initialized, 0=not)",
	},
	[]string{"exchange"},
)

// RecordGap записывает наблюдаемый гэп
func RecordGap(sample GapSample, pair string) {
	GapObserved.WithLabelValues(sample.Symbol, pair).Observe(sample.GapPct)
}

// RecordSignal записывает эмиссию сигнала
func RecordSignal(symbol, class string) {
	SignalsEmitted.WithLabelValues(symbol, class).Inc()
}

// RecordTrade записывает исход сделки
func RecordTrade(symbol, result string) {
	TradesTotal.WithLabelValues(symbol, result).Inc()
}

// RecordLegLatency записывает латентность ноги
func RecordLegLatency(venue, side string, latencyMs int64) {
	LegLatency.WithLabelValues(venue, side).Observe(float64(latencyMs))
}
