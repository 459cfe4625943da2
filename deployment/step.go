// Package deployment orders the steps contributed by deployment modules and
// executes them across the cluster with group barriers.
package deployment

import (
	"context"
	"fmt"
	"log"
	"math"

	"github.com/james-lawrence/tpm/cluster"
	"github.com/james-lawrence/tpm/properties"
	"github.com/james-lawrence/tpm/remote"
)

// sentinel groups and weights.
const (
	// FirstGroup runs before every other group, on the coordinator only.
	FirstGroup = math.MinInt32
	// FinalGroup runs after every other group.
	FinalGroup  = math.MaxInt32
	FirstWeight = math.MinInt32
	FinalWeight = math.MaxInt32
)

// Step an immutable unit of work.
type Step struct {
	Name     string
	Group    int
	Weight   int
	Required bool
}

func (t Step) String() string {
	return fmt.Sprintf("%s(%s, %s)", t.Name, label(t.Group, FirstGroup, FinalGroup), label(t.Weight, FirstWeight, FinalWeight))
}

// Required step, a failure aborts the run.
func Required(name string, group, weight int) Step {
	return Step{Name: name, Group: group, Weight: weight, Required: true}
}

// Optional step, a failure is reported as a warning.
func Optional(name string, group, weight int) Step {
	return Step{Name: name, Group: group, Weight: weight}
}

// Func implementation of a step for a single host.
type Func func(ctx context.Context, s Scope) error

// Scope what a step can see while running against a host.
type Scope struct {
	*cluster.Context
	Host   cluster.Host
	Logger *log.Logger
}

// Run the command on the host returning its trimmed output.
func (t Scope) Run(ctx context.Context, command string) (string, error) {
	t.Logger.Println("running", command)
	return remote.Output(ctx, t.Executor, t.Host.Target(), command)
}

// Root prefixes the command with sudo when the host requires it.
func (t Scope) Root(command string) string {
	if t.Properties.Bool(t.Host.Path(cluster.KeyRootCommandPrefix)) {
		return "sudo -n " + command
	}

	return command
}

// Property of the host.
func (t Scope) Property(key, fallback string) string {
	return t.Properties.StringOr(t.Host.Path(key), fallback)
}

// Update the shared properties. writes from every host are serialized.
func (t Scope) Update(do func(properties.Editor) error) error {
	return t.Properties.Update(do)
}

func label(v, first, final int) string {
	switch v {
	case first:
		return "first"
	case final:
		return "final"
	default:
		return fmt.Sprint(v)
	}
}
