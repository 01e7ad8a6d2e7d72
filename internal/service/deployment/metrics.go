package deployment

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type pipelineMetrics struct {
	deploymentsTotal *prometheus.CounterVec
	uploadsTotal     prometheus.Counter
	dedupHitsTotal   prometheus.Counter
}

var (
	metricsOnce sync.Once
	metrics     *pipelineMetrics
)

// getMetrics lazily registers the pipeline collectors, tolerating duplicate
// registration across test binaries.
func getMetrics() *pipelineMetrics {
	metricsOnce.Do(func() {
		m := &pipelineMetrics{
			deploymentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nimbuswave",
				Subsystem: "pipeline",
				Name:      "deployments_total",
				Help:      "Count of deployment attempts by outcome",
			}, []string{"status"}),
			uploadsTotal: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "nimbuswave",
				Subsystem: "pipeline",
				Name:      "asset_uploads_total",
				Help:      "Count of asset upload calls issued to the store",
			}),
			dedupHitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "nimbuswave",
				Subsystem: "pipeline",
				Name:      "asset_dedup_hits_total",
				Help:      "Count of assets skipped because their digest was unchanged",
			}),
		}
		if err := prometheus.Register(m.deploymentsTotal); err != nil {
			if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
				m.deploymentsTotal = are.ExistingCollector.(*prometheus.CounterVec)
			}
		}
		if err := prometheus.Register(m.uploadsTotal); err != nil {
			if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
				m.uploadsTotal = are.ExistingCollector.(prometheus.Counter)
			}
		}
		if err := prometheus.Register(m.dedupHitsTotal); err != nil {
			if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
				m.dedupHitsTotal = are.ExistingCollector.(prometheus.Counter)
			}
		}
		metrics = m
	})
	return metrics
}

func (m *pipelineMetrics) observe(status string, uploads, dedupHits int) {
	m.deploymentsTotal.WithLabelValues(status).Inc()
	m.uploadsTotal.Add(float64(uploads))
	m.dedupHitsTotal.Add(float64(dedupHits))
}
