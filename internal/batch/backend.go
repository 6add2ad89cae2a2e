// Package batch abstracts the external batch-compute backend that executes
// analysis jobs. The production implementation talks to AWS Batch plus
// CloudWatch Logs; tests use the Fake.
package batch

import "context"

// Terminal execution states. Anything else is non-terminal.
const (
	StateSucceeded = "SUCCEEDED"
	StateFailed    = "FAILED"
)

// IsTerminalState reports whether the backend will never change state again.
func IsTerminalState(state string) bool {
	return state == StateSucceeded || state == StateFailed
}

// JobSpec is the specification handed to the backend when submitting a job.
type JobSpec struct {
	Name       string
	Queue      string
	Definition string
	Parameters map[string]string
}

// Execution is a snapshot of a submitted job's state on the backend.
type Execution struct {
	State       string
	LogLocation string // log stream identifier, only meaningful once terminal
}

// Backend is the external batch-compute service, treated as opaque: it
// accepts a job spec, reports execution state, and exposes the execution's
// log output once finished.
type Backend interface {
	// Submit hands the job spec to the backend and returns its
	// backend-assigned execution identifier.
	Submit(ctx context.Context, spec JobSpec) (string, error)

	// Describe returns the current execution snapshot.
	Describe(ctx context.Context, executionID string) (Execution, error)

	// FetchLog returns the execution's log output as ordered lines.
	FetchLog(ctx context.Context, logLocation string) ([]string, error)

	// Ready verifies the backend is reachable.
	Ready(ctx context.Context) error
}
