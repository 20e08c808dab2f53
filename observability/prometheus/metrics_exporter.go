package prometheus

import (
	"errors"
	"fmt"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/Swind/go-async-runtime/core"
)

// ExporterOptions controls collector configuration.
type ExporterOptions struct {
	LatencyBuckets []float64
}

// MetricsExporter adapts core.Metrics to Prometheus collectors.
type MetricsExporter struct {
	pendingTasks        prom.Gauge
	spawnLatencySeconds *prom.HistogramVec
	taskPanicTotal      *prom.CounterVec
}

var _ core.Metrics = (*MetricsExporter)(nil)

// NewMetricsExporter creates and registers Prometheus collectors for core.Metrics.
func NewMetricsExporter(namespace string, reg prom.Registerer, opts ExporterOptions) (*MetricsExporter, error) {
	if namespace == "" {
		namespace = "runtime"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	buckets := opts.LatencyBuckets
	if len(buckets) == 0 {
		buckets = prom.DefBuckets
	}

	pendingGauge := prom.NewGauge(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "pending_tasks",
		Help:      "Number of spawned tasks that have not yet completed.",
	})
	latencyVec := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "spawn_latency_seconds",
		Help:      "Delay between task submission and its first poll, in seconds.",
		Buckets:   buckets,
	}, []string{"pool"})
	panicVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "task_panic_total",
		Help:      "Total number of task panics.",
	}, []string{"pool"})

	var err error
	if pendingGauge, err = registerCollector(reg, pendingGauge); err != nil {
		return nil, err
	}
	if latencyVec, err = registerCollector(reg, latencyVec); err != nil {
		return nil, err
	}
	if panicVec, err = registerCollector(reg, panicVec); err != nil {
		return nil, err
	}

	return &MetricsExporter{
		pendingTasks:        pendingGauge,
		spawnLatencySeconds: latencyVec,
		taskPanicTotal:      panicVec,
	}, nil
}

// RecordSpawnLatency records submission-to-first-poll delay.
func (m *MetricsExporter) RecordSpawnLatency(poolName string, latency time.Duration) {
	if m == nil {
		return
	}
	m.spawnLatencySeconds.WithLabelValues(normalizeLabel(poolName, "unknown")).Observe(latency.Seconds())
}

// RecordPendingTasks records the live task gauge.
func (m *MetricsExporter) RecordPendingTasks(count int64) {
	if m == nil {
		return
	}
	m.pendingTasks.Set(float64(count))
}

// RecordTaskPanic records task panic events.
func (m *MetricsExporter) RecordTaskPanic(poolName string, panicInfo any) {
	if m == nil {
		return
	}
	m.taskPanicTotal.WithLabelValues(normalizeLabel(poolName, "unknown")).Inc()
}

func normalizeLabel(v string, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		existing, ok := alreadyRegisteredErr.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}

	return collector, err
}
