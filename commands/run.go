package commands

import (
	"log"

	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"

	"github.com/james-lawrence/tpm"
	"github.com/james-lawrence/tpm/cluster"
	"github.com/james-lawrence/tpm/deployment"
	"github.com/james-lawrence/tpm/internal/envx"
	"github.com/james-lawrence/tpm/validation"
)

// Summary of a run.
type Summary struct {
	Command    string
	Plan       deployment.Plan
	Validation validation.Report
	Execution  deployment.Report
	// Persisted the location the store was saved to, empty when nothing was saved.
	Persisted string
}

// Option for a run.
type Option func(*runner)

// OptionPersist save the store to the path once every step committed.
func OptionPersist(path string) Option {
	return func(r *runner) {
		r.persist = path
	}
}

// OptionPartitioner number of hosts worked on at once.
func OptionPartitioner(p tpm.Partitioner) Option {
	return func(r *runner) {
		r.execution = append(r.execution, deployment.OptionPartitioner(p))
	}
}

// OptionObserver step progress.
func OptionObserver(o func(deployment.Event)) Option {
	return func(r *runner) {
		r.execution = append(r.execution, deployment.OptionObserver(o))
	}
}

// OptionValidationObserver check progress.
func OptionValidationObserver(o func(validation.Bound, []validation.Entry)) Option {
	return func(r *runner) {
		r.validation = append(r.validation, validation.OptionObserver(o))
	}
}

type runner struct {
	persist    string
	validation []validation.Option
	execution  []deployment.Option
}

// Run the command: plan the steps, validate every host, execute the plan
// and persist the store when every step committed. nothing is executed when
// the plan is invalid or validation is blocked.
func Run(cctx *cluster.Context, cmd Command, options ...Option) (s Summary, err error) {
	var (
		r runner
	)

	for _, opt := range options {
		opt(&r)
	}

	s.Command = cmd.Name()

	if err = cmd.Prepare(cctx); err != nil {
		return s, errors.Wrapf(err, "unable to prepare %s", cmd.Name())
	}

	if envx.Boolean(false, tpm.EnvLogsVerbose) {
		log.Println("properties", spew.Sdump(cctx.Properties.Flatten()))
	}

	if registry := cmd.Registry(); registry != nil {
		if s.Plan, err = deployment.NewPlan(cmd.Modules(), cctx.Hosts, cctx.Coordinator, registry); err != nil {
			return s, err
		}
	}

	cctx.Logger.Printf("%s: validating %d hosts\n", cmd.Name(), len(cctx.Hosts))
	s.Validation = validation.Run(cctx, cctx, validation.Bind(cmd.Checks(), cctx.Hosts), r.validation...)
	if err = s.Validation.Err(); err != nil {
		return s, err
	}

	if len(s.Plan.Groups) == 0 {
		return s, nil
	}

	cctx.Logger.Printf("%s: executing %d steps in %d groups\n", cmd.Name(), len(s.Plan.Steps()), len(s.Plan.Groups))
	s.Execution = deployment.Execute(cctx, cctx, s.Plan, r.execution...)
	if err = s.Execution.Err(); err != nil {
		return s, err
	}

	if r.persist == "" {
		return s, nil
	}

	snapshot := cctx.Properties.Clone()
	for _, h := range cctx.Hosts {
		for _, key := range cluster.TransientKeys {
			if err = snapshot.Delete(h.Path(key)); err != nil {
				return s, err
			}
		}
	}

	if err = snapshot.Save(r.persist); err != nil {
		return s, errors.Wrap(err, "unable to persist the cluster properties")
	}

	s.Persisted = r.persist
	return s, nil
}
