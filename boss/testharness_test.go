package boss

import (
	"bufio"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/amberarrow/devolve/config"
	"github.com/stretchr/testify/require"
)

// recordingJob is a test job.Job that records the result it was given.
type recordingJob struct {
	work    []byte
	resultC chan []byte
}

func newRecordingJob(work []byte) *recordingJob {
	return &recordingJob{work: work, resultC: make(chan []byte, 1)}
}

func (j *recordingJob) GetWork() ([]byte, error) { return j.work, nil }
func (j *recordingJob) PutResult(result []byte)  { j.resultC <- result }

func (j *recordingJob) await(t *testing.T, timeout time.Duration) []byte {
	t.Helper()
	select {
	case r := <-j.resultC:
		return r
	case <-time.After(timeout):
		t.Fatal("timed out waiting for PutResult")
		return nil
	}
}

// startTestPool starts a Pool on an ephemeral port with short timeouts so
// tests run fast.
func startTestPool(t *testing.T, queueSize int) *Pool {
	t.Helper()
	cfg, err := config.Load(
		config.WithPort(freePort(t)),
		config.WithQueueSize(queueSize),
		config.WithAcceptTimeout(200*time.Millisecond),
		config.WithShutdownGrace(10*time.Millisecond),
	)
	require.NoError(t, err)
	p := New(cfg)
	require.NoError(t, p.Start())
	t.Cleanup(func() {
		p.Close()
		p.Join()
	})
	return p
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

// testWorker is a minimal, hand-rolled stand-in for the out-of-scope
// worker process: it dials in, performs the handshake, then applies
// compute to every request until it sees "quit" or the connection closes.
type testWorker struct {
	conn net.Conn
	r    *bufio.Reader
	w    *bufio.Writer
}

func dialTestWorker(t *testing.T, addr string, name string, pid int) *testWorker {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	w := &testWorker{conn: conn, r: bufio.NewReader(conn), w: bufio.NewWriter(conn)}
	fmt.Fprintf(w.w, "%s\n", name)
	fmt.Fprintf(w.w, "%d\n", pid)
	require.NoError(t, w.w.Flush())
	return w
}

// runUntilQuit applies compute to every incoming request until QUIT or EOF.
func (w *testWorker) runUntilQuit(compute func([]byte) []byte) {
	for {
		line, err := w.r.ReadString('\n')
		if err != nil {
			return
		}
		line = trimNL(line)
		if line == "quit" {
			return
		}
		n := 0
		fmt.Sscanf(line, "%d", &n)
		buf := make([]byte, n)
		if _, err := readFull(w.r, buf); err != nil {
			return
		}
		fmt.Fprintf(w.w, "ack\n")
		w.w.Flush()
		result := compute(buf)
		fmt.Fprintf(w.w, "%d\n", len(result))
		w.w.Write(result)
		w.w.Flush()
		ackLine, err := w.r.ReadString('\n')
		if err != nil || trimNL(ackLine) != "ack" {
			return
		}
	}
}

func (w *testWorker) close() { w.conn.Close() }

func trimNL(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

func readFull(r *bufio.Reader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func reverse(b []byte) []byte {
	out := make([]byte, len(b))
	for i, c := range b {
		out[len(b)-1-i] = c
	}
	return out
}
