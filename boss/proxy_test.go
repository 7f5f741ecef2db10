package boss

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Scenario 4: worker receives the dispatched job but replies with something
// other than the literal "ack" line. The boss's wire.Send call detects the
// protocol violation and the job is failed without a result ever being
// attempted.
func TestMissingAckFromWorker(t *testing.T) {
	pool := startTestPool(t, 5)
	w := dialTestWorker(t, pool.Addr(), "silent", 55)
	go func() {
		line, err := w.r.ReadString('\n')
		if err != nil {
			return
		}
		n := 0
		fmt.Sscanf(trimNL(line), "%d", &n)
		buf := make([]byte, n)
		readFull(w.r, buf)
		// A well-behaved worker would write "ack\n" here; instead it sends
		// something else, which wire.Send must reject.
		fmt.Fprintf(w.w, "nope\n")
		w.w.Flush()
	}()
	defer w.close()

	j := newRecordingJob([]byte("x"))
	pool.Add(j)
	result := j.await(t, 2*time.Second)
	require.Nil(t, result)

	require.Eventually(t, func() bool {
		for _, p := range pool.Workers() {
			if p.Name == "silent" {
				return p.Status() == StatusError
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)
}

// panickingJob panics out of PutResult, standing in for a broken
// application callback.
type panickingJob struct {
	work []byte
}

func (j *panickingJob) GetWork() ([]byte, error) { return j.work, nil }
func (j *panickingJob) PutResult(result []byte)  { panic("boom") }

// A panicking PutResult must not be counted as a successfully dispatched
// job: the proxy exits with status error and n_jobs is not incremented,
// even though the worker round trip itself succeeded.
func TestPutResultPanicMarksProxyError(t *testing.T) {
	pool := startTestPool(t, 5)
	w := dialTestWorker(t, pool.Addr(), "panicky", 77)
	go w.runUntilQuit(func(b []byte) []byte { return b })
	defer w.close()

	pool.Add(&panickingJob{work: []byte("x")})

	require.Eventually(t, func() bool {
		for _, p := range pool.Workers() {
			if p.Name == "panicky" {
				return p.Status() == StatusError
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)

	for _, p := range pool.Workers() {
		if p.Name == "panicky" {
			require.Equal(t, int64(0), p.NJobs())
		}
	}
}
