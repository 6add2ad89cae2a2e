package batch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// Fake is a scriptable in-memory Backend for tests: it reports a configured
// number of non-terminal describes before settling on a terminal state.
type Fake struct {
	mu sync.Mutex

	// Configuration
	FinalState     string   // state reported once PendingPolls describes have happened
	PendingPolls   int      // describes that report RUNNING before the terminal state
	LogLines       []string // lines returned by FetchLog
	SubmitErr      error    // returned by Submit when set
	DescribeErr    error    // returned by Describe when set (consumed once)
	FetchLogErr    error    // returned by FetchLog when set
	describeCalls  int
	submitted      []JobSpec
	executionSeq   atomic.Int64
}

// NewFake creates a fake backend that succeeds after pendingPolls describes.
func NewFake(finalState string, pendingPolls int, logLines []string) *Fake {
	return &Fake{
		FinalState:   finalState,
		PendingPolls: pendingPolls,
		LogLines:     logLines,
	}
}

func (f *Fake) Submit(ctx context.Context, spec JobSpec) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SubmitErr != nil {
		return "", f.SubmitErr
	}
	f.submitted = append(f.submitted, spec)
	return fmt.Sprintf("exec-%d", f.executionSeq.Add(1)), nil
}

func (f *Fake) Describe(ctx context.Context, executionID string) (Execution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.DescribeErr != nil {
		err := f.DescribeErr
		f.DescribeErr = nil
		return Execution{}, err
	}
	f.describeCalls++
	if f.describeCalls <= f.PendingPolls {
		return Execution{State: "RUNNING"}, nil
	}
	return Execution{State: f.FinalState, LogLocation: "fake/" + executionID}, nil
}

func (f *Fake) FetchLog(ctx context.Context, logLocation string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FetchLogErr != nil {
		return nil, f.FetchLogErr
	}
	return f.LogLines, nil
}

func (f *Fake) Ready(ctx context.Context) error {
	return nil
}

// DescribeCalls returns how many describes have been answered.
func (f *Fake) DescribeCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.describeCalls
}

// Submitted returns the specs handed to Submit, in order.
func (f *Fake) Submitted() []JobSpec {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]JobSpec(nil), f.submitted...)
}

// Verify Fake implements Backend
var _ Backend = (*Fake)(nil)
