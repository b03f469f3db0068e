package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"resumeBuilder/internal/errcode"
)

const namespace = "resumebuilder"

var (
	storeOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "简历存储操作总数，按结果分类。",
		},
		[]string{"operation", "outcome"},
	)

	storeOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operation_duration_seconds",
			Help:      "简历存储操作耗时分布（秒）。",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	loginThrottledTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "login_throttled_total",
			Help:      "被限流或锁定拒绝的登录请求数。",
		},
		[]string{"reason"},
	)
)

// ObserveStoreOperation 记录一次存储操作的耗时与结果。
func ObserveStoreOperation(operation string, start time.Time, err error) {
	storeOperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	storeOperationsTotal.WithLabelValues(operation, outcome(err)).Inc()
}

// ObserveLoginThrottled 记录一次被拒绝的登录，reason 为 rate_limit 或 locked。
func ObserveLoginThrottled(reason string) {
	loginThrottledTotal.WithLabelValues(reason).Inc()
}

func outcome(err error) string {
	switch errcode.Code(err) {
	case errcode.OK:
		return "ok"
	case errcode.NotFound:
		return "not_found"
	case errcode.SystemError:
		return "error"
	default:
		return "rejected"
	}
}
