package deployment

import (
	"time"

	"github.com/pkg/errors"

	"github.com/james-lawrence/tpm/internal/errorsx"
)

// Outcome of a step on a host.
type Outcome int

// outcomes.
const (
	Succeeded Outcome = iota
	Warned
	Failed
	Cancelled
)

func (t Outcome) String() string {
	switch t {
	case Succeeded:
		return "succeeded"
	case Warned:
		return "warned"
	case Failed:
		return "failed"
	default:
		return "cancelled"
	}
}

// Result of a single step on a single host.
type Result struct {
	Group    int
	Step     string
	Host     string
	Outcome  Outcome
	Err      error
	Help     string
	Duration time.Duration
}

// Report of an execution.
type Report struct {
	Results []Result
}

// Failure the required step failure that aborted the run, if any.
func (t Report) Failure() (Result, bool) {
	for _, r := range t.Results {
		if r.Outcome == Failed {
			return r, true
		}
	}

	return Result{}, false
}

// Committed every step ran and no required step failed.
func (t Report) Committed() bool {
	for _, r := range t.Results {
		if r.Outcome == Failed || r.Outcome == Cancelled {
			return false
		}
	}

	return true
}

// Hosts in first appearance order.
func (t Report) Hosts() (hosts []string) {
	seen := make(map[string]bool)
	for _, r := range t.Results {
		if !seen[r.Host] {
			seen[r.Host] = true
			hosts = append(hosts, r.Host)
		}
	}

	return hosts
}

// ByHost the results of each host in execution order.
func (t Report) ByHost() map[string][]Result {
	grouped := make(map[string][]Result)
	for _, r := range t.Results {
		grouped[r.Host] = append(grouped[r.Host], r)
	}

	return grouped
}

// Count the results with the outcome.
func (t Report) Count(o Outcome) (n int) {
	for _, r := range t.Results {
		if r.Outcome == o {
			n++
		}
	}

	return n
}

// Err describes the failure that prevented the plan from committing.
func (t Report) Err() error {
	if failure, ok := t.Failure(); ok {
		return errorsx.UserFriendly(errors.Wrapf(failure.Err, "%s failed on %s", failure.Step, failure.Host))
	}

	if !t.Committed() {
		return errorsx.UserFriendly(errors.New("deployment interrupted before every step ran"))
	}

	return nil
}
