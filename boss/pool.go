// Package boss implements the boss-side coordination engine around the
// bounded job queue of package queue: the TCP listener that admits workers,
// the per-worker proxy state machine, and the two-phase shutdown that
// drains in-flight work.
package boss

import (
	"fmt"

	"go.uber.org/atomic"

	"github.com/amberarrow/devolve/config"
	"github.com/amberarrow/devolve/devolvelog"
	"github.com/amberarrow/devolve/job"
	"github.com/amberarrow/devolve/metrics"
	"github.com/amberarrow/devolve/queue"
)

// Pool is the public façade application code drives: configure it, Start
// it, Add jobs to it, and Close/Join it for an orderly, drain-on-shutdown
// termination.
//
// Design note: the source this library was distilled from shapes Pool as a
// process-wide singleton reached through a lazy instance() accessor. That
// global is replaced here with an explicit factory — New constructs a
// fully independent Pool parameterized entirely by the Config passed in,
// with no package-level state — so tests can run any number of pools
// concurrently without interfering with each other.
type Pool struct {
	cfg     *config.Config
	q       *queue.Queue
	log     *devolvelog.Logger
	metrics *metrics.Registry

	ln     *listener
	closed atomic.Bool
}

// Option configures optional collaborators on a Pool at construction time.
type Option func(*Pool)

// WithLogger injects a logger in place of devolvelog.Default().
func WithLogger(l *devolvelog.Logger) Option { return func(p *Pool) { p.log = l } }

// WithMetrics injects a metrics registry in place of a freshly created one.
func WithMetrics(m *metrics.Registry) Option { return func(p *Pool) { p.metrics = m } }

// New constructs a Pool from a validated Config. The listening socket is
// not opened until Start is called.
func New(cfg *config.Config, opts ...Option) *Pool {
	q := queue.New(cfg.QueueSize)
	p := &Pool{
		cfg: cfg,
		q:   q,
		log: devolvelog.Default(),
	}
	p.metrics = metrics.New(func() float64 { return float64(q.Len()) })
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start binds the TCP listener and begins accepting workers. It must be
// called at most once per Pool.
func (p *Pool) Start() error {
	p.ln = newListener(
		fmt.Sprintf(":%d", p.cfg.Port),
		p.cfg.AcceptTimeout,
		p.cfg.ShutdownGrace,
		p.q,
		p.log,
		p.metrics,
		&p.closed,
	)
	if err := p.ln.start(); err != nil {
		return err
	}
	p.log.Info("boss: listening on %v", p.ln.Addr())
	return nil
}

// Addr returns the bound listen address. Valid only after Start returns
// nil.
func (p *Pool) Addr() string {
	if p.ln == nil {
		return ""
	}
	return p.ln.Addr().String()
}

// Add places job on the queue, blocking while the queue is full. Behavior
// after Close is unspecified by design (the core need not reject), but a
// successfully published QUIT token is never lost: Add never contends with
// Close over queue ordering because both call Queue.Put on the same
// channel, which Go guarantees is internally synchronized.
func (p *Pool) Add(j job.Job) {
	p.q.Put(j)
}

// Close is idempotent: the first call marks the pool closed and publishes
// the single QUIT sentinel; subsequent calls log and return. Close never
// blocks the caller: if the queue is full, the QUIT sentinel is handed to
// a background goroutine that waits for a slot to free up, since a full
// queue still drains as connected workers finish jobs.
func (p *Pool) Close() {
	if !p.closed.CompareAndSwap(false, true) {
		p.log.Warn("boss: pool already closed")
		return
	}
	if !p.q.TryPut(queue.Quit) {
		go p.q.Put(queue.Quit)
	}
}

// Join waits for the listener, and transitively every worker proxy, to
// terminate. After Join returns, no further operations on this Pool are
// valid.
func (p *Pool) Join() {
	if p.ln != nil {
		p.ln.join()
	}
}

// Workers returns a snapshot of every currently or formerly connected
// worker proxy, for observability surfaces (admin HTTP, tests). Safe to
// call at any time.
func (p *Pool) Workers() []*Proxy {
	if p.ln == nil {
		return nil
	}
	return p.ln.Snapshot()
}

// QueueDepth reports the current number of items buffered in the queue.
func (p *Pool) QueueDepth() int { return p.q.Len() }

// Closed reports whether Close has been called.
func (p *Pool) Closed() bool { return p.closed.Load() }

// MetricsRegistry exposes the Pool's private Prometheus registry so an
// admin HTTP surface can serve /metrics without reaching into package
// internals.
func (p *Pool) MetricsRegistry() *metrics.Registry { return p.metrics }
