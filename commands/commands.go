// Package commands the operations exposed to the operator and the run that
// plans, validates, executes and persists them.
package commands

import (
	"strconv"

	"github.com/james-lawrence/tpm/cluster"
	"github.com/james-lawrence/tpm/deployment"
	"github.com/james-lawrence/tpm/properties"
	"github.com/james-lawrence/tpm/steps"
	"github.com/james-lawrence/tpm/validation"
	"github.com/james-lawrence/tpm/validation/checks"
)

// Command a unit of work against the cluster.
type Command interface {
	Name() string
	// Checks run before anything is changed.
	Checks() []validation.Factory
	// Modules contributing steps, nil for validation only commands.
	Modules() []deployment.Module
	// Registry implementing the steps of the modules.
	Registry() *deployment.Registry
	// Prepare records the run scoped properties the steps rely on.
	Prepare(cctx *cluster.Context) error
}

// Deploy installs and starts the configured release on every host.
type Deploy struct {
	Options []steps.Option
}

// Name of the command.
func (t Deploy) Name() string {
	return "deploy"
}

// Checks implements Command.
func (t Deploy) Checks() []validation.Factory {
	return checks.Deploy()
}

// Modules implements Command.
func (t Deploy) Modules() []deployment.Module {
	return steps.Deploy()
}

// Registry implements Command.
func (t Deploy) Registry() *deployment.Registry {
	return steps.DeployRegistry(t.Options...)
}

// Prepare implements Command.
func (t Deploy) Prepare(cctx *cluster.Context) error {
	return cctx.Properties.SetString(cluster.ClusterPath(cluster.KeyRunID), cctx.RunID.String())
}

// Reset clears the replication state of an installed cluster and restarts it.
type Reset struct {
	ArchiveLogs bool
	Options     []steps.Option
}

// Name of the command.
func (t Reset) Name() string {
	return "reset"
}

// Checks implements Command.
func (t Reset) Checks() []validation.Factory {
	return checks.Reset()
}

// Modules implements Command.
func (t Reset) Modules() []deployment.Module {
	return steps.Reset()
}

// Registry implements Command.
func (t Reset) Registry() *deployment.Registry {
	return steps.ResetRegistry(t.Options...)
}

// Prepare marks every host with how its logs are rotated.
func (t Reset) Prepare(cctx *cluster.Context) error {
	return cctx.Properties.Update(func(e properties.Editor) error {
		for _, h := range cctx.Hosts {
			if err := e.SetString(h.Path(cluster.KeyResetDeleteLogs), strconv.FormatBool(!t.ArchiveLogs)); err != nil {
				return err
			}

			if err := e.SetString(h.Path(cluster.KeyResetArchiveSuffix), "run"+cctx.RunID.Short()); err != nil {
				return err
			}
		}

		return nil
	})
}

// Validate runs the deployment checks without changing anything.
type Validate struct{}

// Name of the command.
func (t Validate) Name() string {
	return "validate"
}

// Checks implements Command.
func (t Validate) Checks() []validation.Factory {
	return checks.Deploy()
}

// Modules implements Command.
func (t Validate) Modules() []deployment.Module {
	return nil
}

// Registry implements Command.
func (t Validate) Registry() *deployment.Registry {
	return nil
}

// Prepare implements Command.
func (t Validate) Prepare(*cluster.Context) error {
	return nil
}
