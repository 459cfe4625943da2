package steps

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/pkg/errors"

	"github.com/james-lawrence/tpm/backoff"
	"github.com/james-lawrence/tpm/cluster"
	"github.com/james-lawrence/tpm/deployment"
	"github.com/james-lawrence/tpm/internal/errorsx"
	"github.com/james-lawrence/tpm/internal/logx"
	"github.com/james-lawrence/tpm/properties"
	"github.com/james-lawrence/tpm/remote"
)

// policies of the manager.
const (
	PolicyMaintenance = "maintenance"
	PolicyAutomatic   = "automatic"
)

var coordinatorPolicy = regexp.MustCompile(`COORDINATOR\[([^:\]]+):([A-Za-z]+)`)

// ParsePolicy extracts the policy from the output of the manager's ls command.
func ParsePolicy(output string) (string, bool) {
	match := coordinatorPolicy.FindStringSubmatch(output)
	if match == nil {
		return "", false
	}

	return strings.ToLower(match[2]), true
}

func cctrl(ctx context.Context, s deployment.Scope, command string) (string, error) {
	return s.Run(ctx, fmt.Sprintf("echo %s | %s", remote.Quote(command), remote.Quote(s.Host.Script(manager.dir, "cctrl"))))
}

func policy(ctx context.Context, s deployment.Scope, mode string) error {
	s.Logger.Println("setting the policy to", mode)
	_, err := cctrl(ctx, s, "set policy "+mode)
	return errors.Wrapf(err, "unable to set the %s policy", mode)
}

func originalPolicy(s deployment.Scope) string {
	return s.Properties.StringOr(cluster.ClusterPath(cluster.KeyPolicyOriginal), "")
}

// setMaintenancePolicy records the coordinator's current policy so it can be
// restored once the services are back and switches it to maintenance.
func setMaintenancePolicy(ctx context.Context, s deployment.Scope) error {
	running, err := manager.running(ctx, s)
	if err != nil {
		return err
	}

	if !running {
		s.Logger.Println("no manager running on the coordinator, the policy is unchanged")
		return nil
	}

	out, err := cctrl(ctx, s, "ls")
	if err != nil {
		return errors.Wrap(err, "unable to read the current policy")
	}

	current, ok := ParsePolicy(out)
	if !ok {
		return errorsx.WithHelp(
			errors.Errorf("unable to determine the current policy on %s", s.Host.Alias),
			"ensure the manager on the coordinator is online",
		)
	}

	if err = s.Update(func(e properties.Editor) error {
		return e.SetString(cluster.ClusterPath(cluster.KeyPolicyOriginal), current)
	}); err != nil {
		return err
	}

	if current == PolicyMaintenance {
		return nil
	}

	return policy(ctx, s, PolicyMaintenance)
}

// setAutomaticPolicy lets the managers recover the restarted services.
func setAutomaticPolicy(ctx context.Context, s deployment.Scope) error {
	if !coordinator(s) || originalPolicy(s) == "" || !s.Host.Roles.Has(cluster.Manager) {
		return nil
	}

	return policy(ctx, s, PolicyAutomatic)
}

// setOriginalPolicy restores the policy recorded before the services were stopped.
func setOriginalPolicy(ctx context.Context, s deployment.Scope) error {
	original := originalPolicy(s)
	if !coordinator(s) || original == "" || !s.Host.Roles.Has(cluster.Manager) {
		return nil
	}

	if err := policy(ctx, s, original); err != nil {
		return err
	}

	return s.Update(func(e properties.Editor) error {
		return e.Delete(cluster.ClusterPath(cluster.KeyPolicyOriginal))
	})
}

// waitForManager polls the manager until it reports a coordinator.
func waitForManager(c config, always bool) deployment.Func {
	return func(ctx context.Context, s deployment.Scope) error {
		if !s.Host.Roles.Has(cluster.Manager) || (!always && !started(s)) {
			return nil
		}

		s.Logger.Println("waiting for the manager to come online")
		err := backoff.Poll(ctx, c.poll, c.attempts, func(ctx context.Context, attempt int) (bool, error) {
			out, err := cctrl(ctx, s, "ls")
			if remote.IsCommand(err) {
				return false, nil
			} else if err != nil {
				return false, err
			}

			_, ok := ParsePolicy(out)
			return ok, nil
		})

		if errors.Is(err, backoff.ErrExhausted) {
			return errorsx.WithHelp(
				errors.Errorf("the manager on %s did not come online", s.Host.Alias),
				fmt.Sprintf("review %s/%s/log on %s", s.Host.Current(), manager.dir, s.Host.Name),
			)
		}

		return err
	}
}

// reportServices logs the state of the dataservice from the coordinator,
// falling back to the local replicator services.
func reportServices(ctx context.Context, s deployment.Scope) error {
	service := s.Property(cluster.KeyDataservice, "")
	if coordinator(s) && s.Topology != nil && service != "" {
		status, err := s.Topology.Status(ctx, service)
		if err != nil {
			return errors.Wrapf(err, "unable to report the %s dataservice", service)
		}

		s.Logger.Printf("dataservice %s (%s) coordinator %s %s\n", service, status.Type, status.Coordinator.Host, status.Coordinator.Mode)
		for _, name := range status.DataSourceNames() {
			m := status.DataSources[name]
			s.Logger.Printf("datasource %s %s %s\n", name, m.Role, m.State)
		}

		for _, name := range status.ReplicatorNames() {
			m := status.Replicators[name]
			s.Logger.Printf("replicator %s %s %s latency %.3f\n", name, m.Role, m.State, m.Latency)
		}

		return nil
	}

	running, err := replicator.running(ctx, s)
	if err != nil || !running {
		return err
	}

	out, err := s.Run(ctx, fmt.Sprintf("%s services", remote.Quote(s.Host.Script(replicator.dir, "trepctl"))))
	if err != nil {
		return errors.Wrap(err, "unable to report the replication services")
	}

	logx.Lines(s.Logger, out)
	return nil
}
