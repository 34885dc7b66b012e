// internal/pkg/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// OrderMetrics 汇总订单下单流程的所有 Prometheus 指标
type OrderMetrics struct {
	Submitted       *prometheus.CounterVec
	Outcomes        *prometheus.CounterVec
	CommitFailures  prometheus.Counter
	DispatchFailure prometheus.Counter
	PlacementTime   prometheus.Histogram
	QueueDepth      prometheus.Gauge
}

// NewOrderMetrics 创建指标并注册到 reg。reg 为 nil 时指标只存在于内存中（测试用）。
func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	m := &OrderMetrics{
		Submitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orders_submitted_total",
			Help: "Orders accepted by intake, by type and side.",
		}, []string{"type", "side"}),
		Outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "order_placement_outcomes_total",
			Help: "Terminal placement outcomes decided by the lifecycle engine.",
		}, []string{"status"}),
		CommitFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "order_status_commit_failures_total",
			Help: "Terminal status writes that failed; the order stays pending.",
		}),
		DispatchFailure: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "order_dispatch_failures_total",
			Help: "Orders persisted but never handed to the placement pipeline.",
		}),
		PlacementTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "order_placement_duration_seconds",
			Help:    "Latency of venue placement attempts.",
			Buckets: prometheus.DefBuckets,
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "order_dispatch_queue_depth",
			Help: "Orders waiting in the in-process placement queue.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Submitted, m.Outcomes, m.CommitFailures, m.DispatchFailure, m.PlacementTime, m.QueueDepth)
	}
	return m
}
