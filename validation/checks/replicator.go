package checks

import (
	"context"
	"fmt"
	"strconv"

	"github.com/james-lawrence/tpm/cluster"
	"github.com/james-lawrence/tpm/properties"
	"github.com/james-lawrence/tpm/remote"
	"github.com/james-lawrence/tpm/validation"
)

const defaultRMIPort = 10000

func replicatorRunning(ctx context.Context, env validation.Env) (bool, error) {
	return remote.Succeeded(ctx, env.Executor, env.Host.Target(), env.Host.Script("tungsten-replicator", "replicator")+" status")
}

// fresh reports if the host has no installed release to update. an update
// stops the replicator itself before the new release is activated, so the
// running replicator and the ports it holds aren't a problem.
func fresh(env validation.Env) bool {
	return env.Property(cluster.KeyDeployedRelease, "") == ""
}

func installed(ctx context.Context, env validation.Env) (bool, error) {
	return remote.Succeeded(ctx, env.Executor, env.Host.Target(), fmt.Sprintf("test -x %s", remote.Quote(env.Host.Script("tungsten-replicator", "replicator"))))
}

// ReplicatorServiceRunning ensures the replicator being replaced is stopped.
func ReplicatorServiceRunning(h cluster.Host) validation.Check {
	return replicatorstopped{base{validation.Description{
		Name:       "ReplicatorServiceRunningCheck",
		Title:      "Replicator is running",
		Severity:   validation.Warning,
		Properties: []properties.Path{h.Path(cluster.KeyHomeDirectory)},
	}}}
}

type replicatorstopped struct {
	base
}

func (t replicatorstopped) Enabled(env validation.Env) bool {
	return roles(env, cluster.Replicator) && fresh(env)
}

func (t replicatorstopped) Validate(ctx context.Context, env validation.Env, r *validation.Recorder) error {
	if update, err := installed(ctx, env); err != nil {
		return err
	} else if update {
		r.Info("the replicator in %s will be stopped before the update", env.Host.HomeDirectory)
		return nil
	}

	running, err := replicatorRunning(ctx, env)
	if err != nil {
		return err
	}

	if running {
		r.Fatal("the replicator in %s is still running, you must stop it before installation can continue", env.Host.HomeDirectory)
		return nil
	}

	r.Info("the replicator in %s is stopped", env.Host.HomeDirectory)
	return nil
}

// ReplicatorPortAvailable ensures the replicator's rmi ports are free.
func ReplicatorPortAvailable(h cluster.Host) validation.Check {
	return replicatorports{base{validation.Description{
		Name:       "ReplicatorPortAvailableCheck",
		Title:      "Replicator RMI port is available",
		Severity:   validation.Warning,
		Properties: []properties.Path{h.Path(cluster.KeyRMIPort)},
	}}}
}

type replicatorports struct {
	base
}

func (t replicatorports) Enabled(env validation.Env) bool {
	return roles(env, cluster.Replicator) && fresh(env)
}

func (t replicatorports) Validate(ctx context.Context, env validation.Env, r *validation.Recorder) error {
	if update, err := installed(ctx, env); err != nil || update {
		return err
	}

	port, err := strconv.Atoi(env.Property(cluster.KeyRMIPort, strconv.Itoa(defaultRMIPort)))
	if err != nil {
		return err
	}

	failed := false
	for _, p := range []int{port, port + 1} {
		inuse, err := remote.Succeeded(ctx, env.Executor, env.Host.Target(), fmt.Sprintf("bash -c 'echo > /dev/tcp/127.0.0.1/%d' 2>/dev/null", p))
		if err != nil {
			return err
		}

		if inuse {
			r.Fatal("the replicator rmi port %d is already in use on %s", p, env.Host.Name)
			failed = true
		}
	}

	if !failed {
		r.Info("the replicator rmi ports are available")
		return nil
	}

	r.Help(fmt.Sprintf("the replicator requires both %d and %d to run", port, port+1))
	if running, err := replicatorRunning(ctx, env); err == nil && running {
		r.Help(fmt.Sprintf("the replicator in %s is running and may be the process using port %d", env.Host.HomeDirectory, port))
	}

	return nil
}

// CurrentTopology reports the live topology of the host's dataservice.
// purely informational.
func CurrentTopology(h cluster.Host) validation.Check {
	return currenttopology{base{validation.Description{
		Name:       "CurrentTopologyCheck",
		Title:      "Current topology",
		Severity:   validation.Info,
		Weight:     10,
		Properties: []properties.Path{h.Path(cluster.KeyDataservice)},
	}}}
}

type currenttopology struct {
	base
}

func (t currenttopology) Enabled(env validation.Env) bool {
	return env.Topology != nil && env.Host.Alias == env.Coordinator.Alias && env.Property(cluster.KeyDataservice, "") != ""
}

func (t currenttopology) Validate(ctx context.Context, env validation.Env, r *validation.Recorder) error {
	service := env.Property(cluster.KeyDataservice, "")
	s, err := env.Topology.Status(ctx, service)
	if err != nil {
		r.Warning("unable to determine the topology of %s: %v", service, err)
		return nil
	}

	r.Info("%s is a %s service coordinated by %s in %s mode", service, s.Type, s.Coordinator.Host, s.Coordinator.Mode)
	for _, name := range s.ReplicatorNames() {
		m := s.Replicators[name]
		r.Info("replicator %s is %s (%s) with %.3fs latency", name, m.State, m.Role, m.Latency)
	}

	return nil
}
