package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BusinessMetrics 定义业务监控指标
type BusinessMetrics struct {
	ConnectAttemptsTotal *prometheus.CounterVec
	TxSubmittedTotal     *prometheus.CounterVec
	TxOutcomeTotal       *prometheus.CounterVec
	GasEstimate          *prometheus.HistogramVec
	SessionGeneration    prometheus.Gauge
	ProjectionDuration   prometheus.Histogram
}

// Global Metrics Instance，未初始化时为 nil，下面的方法都允许 nil 接收者
var Business *BusinessMetrics

// InitBusinessMetrics 初始化业务指标
func InitBusinessMetrics() {
	Business = &BusinessMetrics{
		ConnectAttemptsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dapp_wallet_connect_total",
			Help: "Wallet connect attempts by result",
		}, []string{"result"}),
		TxSubmittedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dapp_tx_submitted_total",
			Help: "Accepted transaction submissions",
		}, []string{"kind"}),
		TxOutcomeTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dapp_tx_outcome_total",
			Help: "Terminal transaction outcomes",
		}, []string{"kind", "state"}),
		GasEstimate: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dapp_tx_gas_estimate",
			Help:    "Raw gas estimates before the safety buffer",
			Buckets: prometheus.ExponentialBuckets(21000, 2, 8),
		}, []string{"kind"}),
		SessionGeneration: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "dapp_session_generation",
			Help: "Current session generation counter",
		}),
		ProjectionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "dapp_projection_refresh_duration_seconds",
			Help:    "Duration of projection refreshes",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (b *BusinessMetrics) ConnectAttempt(result string) {
	if b == nil {
		return
	}
	b.ConnectAttemptsTotal.WithLabelValues(result).Inc()
}

func (b *BusinessMetrics) TxSubmitted(kind string) {
	if b == nil {
		return
	}
	b.TxSubmittedTotal.WithLabelValues(kind).Inc()
}

func (b *BusinessMetrics) TxOutcome(kind, state string) {
	if b == nil {
		return
	}
	b.TxOutcomeTotal.WithLabelValues(kind, state).Inc()
}

func (b *BusinessMetrics) ObserveGas(kind string, gas uint64) {
	if b == nil {
		return
	}
	b.GasEstimate.WithLabelValues(kind).Observe(float64(gas))
}

func (b *BusinessMetrics) SetGeneration(gen uint64) {
	if b == nil {
		return
	}
	b.SessionGeneration.Set(float64(gen))
}

// ProjectionTimer returns a func that records the elapsed refresh time.
func (b *BusinessMetrics) ProjectionTimer() func() {
	if b == nil {
		return func() {}
	}
	timer := prometheus.NewTimer(b.ProjectionDuration)
	return func() { timer.ObserveDuration() }
}
