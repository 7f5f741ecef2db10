package boss

import (
	"bufio"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/amberarrow/devolve/devolvelog"
	"github.com/amberarrow/devolve/job"
	"github.com/amberarrow/devolve/metrics"
	"github.com/amberarrow/devolve/queue"
	"github.com/amberarrow/devolve/wire"
)

// Status is the lifecycle state of a WorkerProxy.
type Status int32

const (
	// StatusBusy is set as soon as a proxy's job loop starts.
	StatusBusy Status = iota
	// StatusDone is the terminal state for a proxy that exited because it
	// observed the QUIT sentinel on the queue.
	StatusDone
	// StatusError is the terminal state for a proxy that exited because of
	// an unhandled transport, protocol, or application failure.
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusBusy:
		return "busy"
	case StatusDone:
		return "done"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Proxy is the boss-side representative of one connected worker: it drains
// the shared queue, runs jobs to completion against its worker's socket,
// and tracks lifecycle status. One Proxy per connection, owned exclusively
// by the Listener that accepted it.
type Proxy struct {
	ID         string
	Name       string
	PeerAddr   string
	RemotePID  int
	shutdownIn time.Duration

	conn net.Conn
	r    *bufio.Reader
	w    *bufio.Writer

	q       *queue.Queue
	log     *devolvelog.Logger
	metrics *metrics.Registry

	nJobs  int64
	status int32 // atomic Status
}

// newProxy takes ownership of r, the bufio.Reader the handshake was read
// from. Reusing it (instead of wrapping conn fresh) matters because the
// worker may have pipelined its first request behind the handshake lines
// in the same TCP segment; a fresh bufio.Reader would silently drop those
// already-buffered bytes.
func newProxy(conn net.Conn, r *bufio.Reader, name string, pid int, q *queue.Queue, log *devolvelog.Logger, m *metrics.Registry, shutdownGrace time.Duration) *Proxy {
	return &Proxy{
		ID:         uuid.NewString(),
		Name:       name,
		PeerAddr:   conn.RemoteAddr().String(),
		RemotePID:  pid,
		shutdownIn: shutdownGrace,
		conn:       conn,
		r:          r,
		w:          bufio.NewWriter(conn),
		q:          q,
		log:        log,
		metrics:    m,
		status:     int32(StatusBusy),
	}
}

// NJobs returns the number of jobs this proxy has completed with a non-nil
// result. Safe to call concurrently at any time.
func (p *Proxy) NJobs() int64 { return atomic.LoadInt64(&p.nJobs) }

// Status returns the current lifecycle state. Safe to call concurrently at
// any time; guaranteed stable once the proxy's goroutine has exited.
func (p *Proxy) Status() Status { return Status(atomic.LoadInt32(&p.status)) }

func (p *Proxy) setStatus(s Status) { atomic.StoreInt32(&p.status, int32(s)) }

// run is the proxy's state machine: START -> busy, then POP/SEND-RECV in a
// loop until the QUIT sentinel or an unrecoverable failure sends it to
// SHUTDOWN.
func (p *Proxy) run() {
	p.setStatus(StatusBusy)
	if p.metrics != nil {
		p.metrics.WorkersConnected.Inc()
	}
	defer func() {
		if p.metrics != nil {
			p.metrics.WorkersConnected.Dec()
			p.metrics.ProxyLifecycle.WithLabelValues(p.Status().String()).Inc()
		}
	}()

	final := StatusDone
	for {
		item := p.q.Get()
		j, ok := queue.AsJob(item)
		if !ok {
			// QUIT sentinel: hand it back so every other proxy also sees it,
			// then fall through to shutdown.
			p.q.Put(queue.Quit)
			break
		}
		if err := p.dispatch(j); err != nil {
			p.log.Warn("proxy %s (%s): job dispatch failed: %v", p.Name, p.ID, err)
			final = StatusError
			break
		}
		atomic.AddInt64(&p.nJobs, 1)
		if p.metrics != nil {
			p.metrics.JobsDispatched.Inc()
		}
	}
	p.shutdown(final)
}

// dispatch runs exactly one job end to end: get_work, send, recv,
// put_result. PutResult is called exactly once, with nil on any failure in
// between.
func (p *Proxy) dispatch(j job.Job) (err error) {
	payload, err := safeGetWork(j)
	if err != nil {
		p.failJob(j)
		return fmt.Errorf("get_work: %w", err)
	}
	if err := wire.Send(p.r, p.w, payload); err != nil {
		p.failJob(j)
		return fmt.Errorf("send: %w", err)
	}
	result, err := wire.Recv(p.r, p.w)
	if err != nil {
		p.failJob(j)
		return fmt.Errorf("recv: %w", err)
	}
	if panicked := safePutResult(p.log, j, result); panicked {
		// put_result already ran (and failed) once; per the application-error
		// design note it is not retried with a nil result.
		if p.metrics != nil {
			p.metrics.JobsFailed.Inc()
		}
		return fmt.Errorf("put_result panicked")
	}
	return nil
}

// failJob delivers the nil-result notification required on any transport,
// protocol, or application failure and records the failure metric. The
// panic return is ignored here: PutResult has already been given its one
// call for this job regardless of whether it panics.
func (p *Proxy) failJob(j job.Job) {
	safePutResult(p.log, j, nil)
	if p.metrics != nil {
		p.metrics.JobsFailed.Inc()
	}
}

// shutdown sends QUIT to the worker, waits a short grace period, closes the
// connection, and records the terminal status.
func (p *Proxy) shutdown(final Status) {
	_ = wire.SendQuit(p.w)
	time.Sleep(p.shutdownIn)
	p.conn.Close()
	p.setStatus(final)
}

// safeGetWork isolates a panicking Job.GetWork from crashing the proxy
// goroutine, per the design note that put_result (and by the same logic
// get_work) must be treated as an untrusted callback.
func safeGetWork(j job.Job) (result []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("get_work panicked: %v", r)
		}
	}()
	return j.GetWork()
}

// safePutResult isolates a panicking Job.PutResult, reporting whether it
// panicked so the caller can treat the job (and the proxy) as failed
// instead of silently counting it a success.
func safePutResult(log *devolvelog.Logger, j job.Job, result []byte) (panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("put_result panicked: %v", r)
			panicked = true
		}
	}()
	j.PutResult(result)
	return false
}
