package commands

import (
	"context"

	"github.com/pkg/errors"

	"github.com/james-lawrence/tpm"
	"github.com/james-lawrence/tpm/cluster"
	"github.com/james-lawrence/tpm/internal/errorsx"
	"github.com/james-lawrence/tpm/properties"
	"github.com/james-lawrence/tpm/remote"
	"github.com/james-lawrence/tpm/topology"
)

// Resolver reports the topology through the coordinator: its manager api
// when it runs a manager, falling back to its replicator.
func Resolver(r properties.Reader, exec remote.Executor, coordinator cluster.Host, options ...topology.ManagerOption) topology.Resolver {
	replicator := topology.NewReplicator(exec, coordinator.Target(), coordinator.HomeDirectory)
	if !coordinator.Roles.Has(cluster.Manager) {
		return replicator
	}

	port, err := r.Int(coordinator.Path(cluster.KeyManagerAPIPort))
	if err != nil {
		port = tpm.DefaultManagerAPIPort
	}

	return topology.Fallback(topology.NewManager(coordinator.Name, port, options...), replicator)
}

// Status of the dataservice. an empty service reports the coordinator's dataservice.
func Status(ctx context.Context, cctx *cluster.Context, service string) (s topology.Status, err error) {
	if service == "" {
		service = cctx.Properties.StringOr(cctx.Coordinator.Path(cluster.KeyDataservice), "")
	}

	if service == "" {
		return s, errorsx.WithHelp(
			errorsx.UserFriendly(errors.New("no dataservice specified")),
			"pass the dataservice name or set "+cctx.Coordinator.Path(cluster.KeyDataservice).String(),
		)
	}

	resolver := cctx.Topology
	if resolver == nil {
		resolver = Resolver(cctx.Properties, cctx.Executor, cctx.Coordinator)
	}

	if s, err = resolver.Status(ctx, service); err != nil {
		return s, errors.Wrapf(err, "unable to determine the status of %s", service)
	}

	return s, nil
}
