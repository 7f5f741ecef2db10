// Package job defines the contract between the boss's dispatch engine and
// the application code that owns the actual work. The core never looks
// inside a payload; it only calls GetWork and PutResult.
package job

// Job is implemented by application code and submitted to a boss.Pool. The
// core treats GetWork's return value and PutResult's argument as opaque
// bytes end to end.
type Job interface {
	// GetWork returns the payload to send to a worker. Called exactly once
	// per dispatch attempt, immediately before the payload is sent, so
	// expensive materialization can be deferred until a worker is ready.
	GetWork() ([]byte, error)

	// PutResult delivers the worker's response, or nil if the dispatch
	// failed before a response was received. Called exactly once per
	// dispatch attempt. Implementations that want at-least-once delivery
	// should re-submit the job to the pool when result is nil.
	PutResult(result []byte)
}
