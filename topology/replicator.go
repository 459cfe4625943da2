package topology

import (
	"bufio"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/james-lawrence/tpm/remote"
)

// NewReplicator resolver that inspects the replicator running on the target.
func NewReplicator(exec remote.Executor, target remote.Target, home string) Replicator {
	return Replicator{
		exec:    exec,
		target:  target,
		trepctl: filepath.Join(home, "tungsten", "tungsten-replicator", "bin", "trepctl"),
	}
}

// Replicator resolves the topology from the replicator's status output.
// only the local replicator is reported.
type Replicator struct {
	exec    remote.Executor
	target  remote.Target
	trepctl string
}

// Status implements Resolver.
func (t Replicator) Status(ctx context.Context, service string) (s Status, err error) {
	var (
		out string
	)

	cmd := fmt.Sprintf("%s -service %s status | grep :", t.trepctl, remote.Quote(service))
	if out, err = remote.Output(ctx, t.exec, t.target, cmd); err != nil {
		return s, errors.Wrapf(err, "unable to read replicator status on %s", t.target.Host)
	}

	props := ParseReplicatorStatus(out)

	return Status{
		Service: service,
		Type:    Replication,
		Replicators: map[string]Member{
			t.target.Host: {
				Role:       props["role"],
				State:      props["state"],
				Latency:    latency(props["appliedLatency"]),
				Properties: props,
			},
		},
	}, nil
}

// ParseReplicatorStatus parses 'key : value' lines. values may contain colons.
func ParseReplicatorStatus(output string) map[string]string {
	props := make(map[string]string)
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}

		props[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}

	return props
}
