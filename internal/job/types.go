// Package job implements the job-orchestration core: deterministic job
// identity, the in-process notification registry, and the poller that drives
// a submitted analysis to completion against the batch backend.
package job

import "strings"

// Analysis methods accepted by the submission API.
const (
	MethodSumstats = "sumstats"
	MethodSLDSC    = "sldsc"
)

// Terminal states reported by the batch backend.
const (
	StateSucceeded = "SUCCEEDED"
	StateFailed    = "FAILED"
)

// ValidMethod reports whether m is a known analysis method.
func ValidMethod(m string) bool {
	return m == MethodSumstats || m == MethodSLDSC
}

// RunningStatus returns the persisted status for a freshly submitted job,
// e.g. "RUNNING sumstats".
func RunningStatus(method string) string {
	return "RUNNING " + method
}

// TerminalStatus returns the persisted status for a finished job,
// e.g. "sumstats SUCCEEDED". Stream consumers detect termination by
// suffix-matching on the state, so the state must come last.
func TerminalStatus(method, state string) string {
	return method + " " + state
}

// IsTerminalStatus reports whether a status string marks a finished job.
func IsTerminalStatus(status string) bool {
	return strings.HasSuffix(status, StateSucceeded) || strings.HasSuffix(status, StateFailed)
}

// Notification is the payload published to the registry when a job reaches a
// terminal state. It is also the SSE message body seen by stream clients.
type Notification struct {
	Status  string `json:"status"`
	Dataset string `json:"dataset"`
	Method  string `json:"method,omitempty"`
}
