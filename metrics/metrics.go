// Package metrics exposes the Prometheus instrumentation for a boss.Pool.
// Every Pool owns its own registry instead of registering against the
// global default, so multiple pools in the same process (as in tests)
// never collide on metric names.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry bundles the gauges and counters a Pool updates as it dispatches
// jobs and tracks connected workers.
type Registry struct {
	Reg *prometheus.Registry

	QueueDepth       prometheus.GaugeFunc
	WorkersConnected prometheus.Gauge
	JobsDispatched   prometheus.Counter
	JobsFailed       prometheus.Counter
	ProxyLifecycle   *prometheus.CounterVec
}

// New constructs a Registry with all metrics registered under the
// "devolve" namespace. queueDepth is sampled on every scrape rather than
// pushed on every enqueue/dequeue, so the exported value can never drift
// from the queue's actual length.
func New(queueDepth func() float64) *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{
		Reg: reg,
		QueueDepth: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "devolve",
			Name:      "queue_depth",
			Help:      "Current number of items buffered in the job queue.",
		}, queueDepth),
		WorkersConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "devolve",
			Name:      "workers_connected",
			Help:      "Current number of worker proxies with status busy.",
		}),
		JobsDispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "devolve",
			Name:      "jobs_dispatched_total",
			Help:      "Total number of jobs that received a non-nil PutResult which returned without panicking.",
		}),
		JobsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "devolve",
			Name:      "jobs_failed_total",
			Help:      "Total number of jobs that received a nil PutResult due to delivery failure, or whose PutResult panicked.",
		}),
		ProxyLifecycle: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "devolve",
			Name:      "proxy_terminations_total",
			Help:      "Total number of worker proxies that exited, labeled by terminal status.",
		}, []string{"status"}),
	}
	reg.MustRegister(r.QueueDepth, r.WorkersConnected, r.JobsDispatched, r.JobsFailed, r.ProxyLifecycle)
	return r
}
