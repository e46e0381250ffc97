// metrics.go — Prometheus-метрики pipeline'а синхронизации.
package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// messagesTotal — количество обработанных CDC-сообщений по исходу.
	messagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "usersync_messages_total",
			Help: "Количество обработанных CDC-сообщений по исходу (applied, skipped, failed)",
		},
		[]string{"outcome"},
	)

	// processingDuration — гистограмма длительности обработки сообщения.
	processingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "usersync_processing_duration_seconds",
		Help:    "Длительность обработки одного CDC-сообщения",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms … ~20s
	})
)
