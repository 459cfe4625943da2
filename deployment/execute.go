package deployment

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/james-lawrence/tpm"
	"github.com/james-lawrence/tpm/cluster"
	"github.com/james-lawrence/tpm/internal/errorsx"
	"github.com/james-lawrence/tpm/internal/x/timex"
)

// Event progress notification, Result is only populated once the step finished.
type Event struct {
	Step     Planned
	Host     cluster.Host
	Finished bool
	Result   Result
}

// Option for execution.
type Option func(*executor)

// OptionPartitioner bounds the number of hosts worked on at once.
func OptionPartitioner(p tpm.Partitioner) Option {
	return func(e *executor) {
		e.partitioner = p
	}
}

// OptionObserver receives progress events. must be safe for concurrent use.
func OptionObserver(o func(Event)) Option {
	return func(e *executor) {
		e.observe = o
	}
}

type executor struct {
	partitioner tpm.Partitioner
	observe     func(Event)
	aborted     atomic.Bool
}

// Execute the plan. groups run in order, each one a barrier. within a group
// every host runs its steps sequentially while hosts run in parallel. a
// required failure stops every step that hasn't started yet, steps already
// running on other hosts are allowed to finish.
func Execute(ctx context.Context, cctx *cluster.Context, p Plan, options ...Option) (r Report) {
	e := &executor{
		partitioner: tpm.PercentPartitioner(1.0),
		observe:     func(Event) {},
	}

	for _, opt := range options {
		opt(e)
	}

	for _, g := range p.Groups {
		r.Results = append(r.Results, e.group(ctx, cctx, g)...)
	}

	return r
}

func (t *executor) group(ctx context.Context, cctx *cluster.Context, g Group) []Result {
	hosts := g.Hosts()
	results := make([][]Result, len(hosts))

	var eg errgroup.Group
	eg.SetLimit(t.partitioner.Partition(len(hosts)))

	for i, h := range hosts {
		i, h := i, h
		eg.Go(func() error {
			results[i] = t.host(ctx, cctx, g, h)
			return nil
		})
	}

	_ = eg.Wait()

	var flattened []Result
	for _, rs := range results {
		flattened = append(flattened, rs...)
	}

	return flattened
}

func (t *executor) host(ctx context.Context, cctx *cluster.Context, g Group, h cluster.Host) (results []Result) {
	scope := Scope{
		Context: cctx,
		Host:    h,
		Logger:  log.New(cctx.Logger.Writer(), fmt.Sprintf("[%s] ", h.Alias), cctx.Logger.Flags()),
	}

	for _, s := range g.Steps {
		if !s.applies(h) {
			continue
		}

		result := Result{Group: g.ID, Step: s.Name, Host: h.Alias}

		if t.aborted.Load() || ctx.Err() != nil {
			result.Outcome = Cancelled
			results = append(results, result)
			t.observe(Event{Step: s, Host: h, Finished: true, Result: result})
			continue
		}

		t.observe(Event{Step: s, Host: h})
		scope.Logger.Println("starting", s.Name)

		started := time.Now()
		err := invoke(ctx, s, scope)
		result.Duration = time.Since(started)

		switch {
		case err == nil:
			result.Outcome = Succeeded
		case s.Required:
			result.Outcome = Failed
			t.aborted.Store(true)
		default:
			result.Outcome = Warned
		}

		if err != nil {
			result.Err = err
			result.Help = errorsx.Help(err)
			scope.Logger.Printf("%s %s: %v\n", s.Name, result.Outcome, err)
		} else {
			scope.Logger.Println("completed", s.Name, timex.Rounded(result.Duration))
		}

		results = append(results, result)
		t.observe(Event{Step: s, Host: h, Finished: true, Result: result})
	}

	return results
}

func invoke(ctx context.Context, s Planned, scope Scope) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			log.Printf("%s panicked on %s: %v\n%s", s.Name, scope.Host.Alias, recovered, debug.Stack())
			err = errors.Errorf("%s failed unexpectedly: %v", s.Name, recovered)
		}
	}()

	return s.Fn(ctx, scope)
}
