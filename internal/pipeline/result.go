package pipeline

import (
	"time"

	"sjsage522/dealalert/internal/deal"
	"sjsage522/dealalert/internal/fanout"
	"sjsage522/dealalert/internal/history"
	perrors "sjsage522/dealalert/pkg/errors"
)

// State is the orchestrator's position in a run
type State string

const (
	StateIdle        State = "idle"
	StateFetching    State = "fetching"
	StateValidating  State = "validating"
	StateReconciling State = "reconciling"
	StateNotifying   State = "notifying"
)

// Rejection is a candidate dropped by validation
type Rejection struct {
	ItemID string
	Reason deal.RejectReason
}

// Outcome is what happened to one accepted observation
type Outcome struct {
	Observation deal.Observation
	Transition  deal.Transition
	Badge       history.Badge
	Fanout      *fanout.Result
}

// RunResult summarizes one pipeline run
type RunResult struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time

	Candidates int
	Accepted   int
	Rejected   []Rejection

	New       int
	Improved  int
	Unchanged int

	Broadcasts    int
	Notifications int

	Outcomes []Outcome
	Failures []*perrors.PipelineError
}

func (r *RunResult) count(t deal.Transition) {
	switch t {
	case deal.New:
		r.New++
	case deal.Improved:
		r.Improved++
	default:
		r.Unchanged++
	}
}

// FailuresOf returns the failures of the given type
func (r *RunResult) FailuresOf(t perrors.ErrorType) []*perrors.PipelineError {
	var out []*perrors.PipelineError
	for _, f := range r.Failures {
		if f.Type == t {
			out = append(out, f)
		}
	}
	return out
}
