package engine

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	metricsOnce   sync.Once
	sharedMetrics *engineMetrics
)

type engineMetrics struct {
	instructions *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	oracleTime   prometheus.Gauge
}

// metrics returns the process-wide collectors, registering them with the
// default registry on first use.
func metrics() *engineMetrics {
	metricsOnce.Do(func() {
		m := &engineMetrics{
			instructions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "staking_instructions_total",
				Help: "Instructions processed by kind and result.",
			}, []string{"kind", "result"}),
			duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "staking_instruction_duration_seconds",
				Help:    "Time spent executing and committing an instruction.",
				Buckets: prometheus.DefBuckets,
			}, []string{"kind"}),
			oracleTime: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "staking_oracle_time_seconds",
				Help: "Unix time most recently supplied to the program.",
			}),
		}
		prometheus.MustRegister(m.instructions, m.duration, m.oracleTime)
		sharedMetrics = m
	})
	return sharedMetrics
}

func (m *engineMetrics) observe(kind Kind, err error, start time.Time) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	if !kind.Known() {
		kind = "unknown"
	}
	m.instructions.WithLabelValues(string(kind), result).Inc()
	m.duration.WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())
}
