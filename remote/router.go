package remote

import (
	"context"

	"github.com/james-lawrence/tpm/internal/systemx"
)

// NewRouter dispatches commands targeting this machine to the local executor
// and everything else to the remote executor.
func NewRouter(local, remote Executor) Router {
	return Router{
		Local:   local,
		Remote:  remote,
		IsLocal: systemx.IsLocalhost,
	}
}

// Router selects an executor per target.
type Router struct {
	Local   Executor
	Remote  Executor
	IsLocal func(host string) bool
}

// Execute implements Executor.
func (t Router) Execute(ctx context.Context, target Target, command string) (Result, error) {
	if t.IsLocal != nil && t.IsLocal(target.Host) {
		return t.Local.Execute(ctx, target, command)
	}

	return t.Remote.Execute(ctx, target, command)
}
