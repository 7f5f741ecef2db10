package boss

import (
	"bufio"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/amberarrow/devolve/devolvelog"
	"github.com/amberarrow/devolve/metrics"
	"github.com/amberarrow/devolve/queue"
	"github.com/amberarrow/devolve/wire"
)

// listener is the singleton accept loop: bind, accept, handshake, spawn a
// Proxy per worker, and periodically check for shutdown until Pool.Close
// has been called.
type listener struct {
	addr          string
	acceptTimeout time.Duration
	shutdownGrace time.Duration

	q       *queue.Queue
	log     *devolvelog.Logger
	metrics *metrics.Registry
	closed  *atomic.Bool

	ln      *net.TCPListener
	boundAt net.Addr

	proxiesMu sync.Mutex
	proxies   []*Proxy

	wg  sync.WaitGroup // the single accept-loop goroutine
	pwg sync.WaitGroup // one entry per spawned proxy, joined at wrapup
}

func newListener(addr string, acceptTimeout, shutdownGrace time.Duration, q *queue.Queue, log *devolvelog.Logger, m *metrics.Registry, closed *atomic.Bool) *listener {
	return &listener{
		addr:          addr,
		acceptTimeout: acceptTimeout,
		shutdownGrace: shutdownGrace,
		q:             q,
		log:           log,
		metrics:       m,
		closed:        closed,
	}
}

// start binds the listening socket synchronously (so callers can observe a
// bind failure immediately) then runs the accept loop in a goroutine.
func (l *listener) start() error {
	tcpAddr, err := net.ResolveTCPAddr("tcp", l.addr)
	if err != nil {
		return fmt.Errorf("boss: resolving listen address: %w", err)
	}
	ln, err := net.ListenTCP("tcp", tcpAddr)
	if err != nil {
		return fmt.Errorf("boss: binding listener: %w", err)
	}
	l.ln = ln
	l.boundAt = ln.Addr()
	l.wg.Add(1)
	go l.run()
	return nil
}

// Addr returns the bound address, valid only after start returns nil.
func (l *listener) Addr() net.Addr { return l.boundAt }

func (l *listener) run() {
	defer l.wg.Done()
	for {
		l.ln.SetDeadline(time.Now().Add(l.acceptTimeout))
		conn, err := l.ln.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				if l.closed.Load() {
					break
				}
				continue
			}
			if l.closed.Load() {
				break
			}
			l.log.Error("boss: accept failed: %v", err)
			continue
		}
		l.handleConn(conn)
	}
	l.ln.Close()
	l.wrapup()
}

func (l *listener) handleConn(conn net.Conn) {
	r := bufio.NewReader(conn)
	name, pid, err := handshake(r)
	if err != nil {
		l.log.Warn("boss: handshake failed from %v: %v", conn.RemoteAddr(), err)
		conn.Close()
		return
	}
	p := newProxy(conn, r, name, pid, l.q, l.log, l.metrics, l.shutdownGrace)
	l.proxiesMu.Lock()
	l.proxies = append(l.proxies, p)
	l.proxiesMu.Unlock()

	l.pwg.Add(1)
	go func() {
		defer l.pwg.Done()
		p.run()
	}()
}

// handshake reads the two handshake lines (worker name, worker pid) per
// §4.4: name must be non-empty after trimming, pid must parse as a positive
// integer.
func handshake(r *bufio.Reader) (name string, pid int, err error) {
	nameLine, err := wire.ReadLine(r)
	if err != nil {
		return "", 0, fmt.Errorf("reading worker name: %w", err)
	}
	name = strings.TrimSpace(nameLine)
	if name == "" {
		return "", 0, fmt.Errorf("worker name is empty")
	}
	pidLine, err := wire.ReadLine(r)
	if err != nil {
		return "", 0, fmt.Errorf("reading worker pid: %w", err)
	}
	pid, err = strconv.Atoi(strings.TrimSpace(pidLine))
	if err != nil || pid <= 0 {
		return "", 0, fmt.Errorf("worker pid %q is not a positive integer", pidLine)
	}
	return name, pid, nil
}

// wrapup joins every spawned proxy, then clears the registry. A proxy that
// is still busy is simply awaited; one that ended in error is logged.
func (l *listener) wrapup() {
	l.pwg.Wait()
	l.proxiesMu.Lock()
	for _, p := range l.proxies {
		if p.Status() == StatusError {
			l.log.Error("boss: worker proxy %s exited with error", p.Name)
		}
	}
	l.proxies = nil
	l.proxiesMu.Unlock()
}

// Snapshot returns a point-in-time copy of the proxy registry, used by the
// admin HTTP surface. Safe to call concurrently with the accept loop.
func (l *listener) Snapshot() []*Proxy {
	l.proxiesMu.Lock()
	defer l.proxiesMu.Unlock()
	out := make([]*Proxy, len(l.proxies))
	copy(out, l.proxies)
	return out
}

// join blocks until the accept loop (and transitively every proxy) has
// exited.
func (l *listener) join() { l.wg.Wait() }
