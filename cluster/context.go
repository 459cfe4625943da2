package cluster

import (
	"context"
	"log"

	"github.com/james-lawrence/tpm"
	"github.com/james-lawrence/tpm/properties"
	"github.com/james-lawrence/tpm/remote"
	"github.com/james-lawrence/tpm/topology"
)

// ContextOption options for the orchestration context.
type ContextOption func(*Context)

// ContextOptionLogger logger for the run.
func ContextOptionLogger(l *log.Logger) ContextOption {
	return func(c *Context) {
		c.Logger = l
	}
}

// ContextOptionTopology resolver used for reporting.
func ContextOptionTopology(r topology.Resolver) ContextOption {
	return func(c *Context) {
		c.Topology = r
	}
}

// ContextOptionRunID override the generated run id.
func ContextOptionRunID(id tpm.RandomID) ContextOption {
	return func(c *Context) {
		c.RunID = id
	}
}

// NewContext builds the orchestration context for a single run.
func NewContext(ctx context.Context, store *properties.Store, exec remote.Executor, options ...ContextOption) (c *Context, err error) {
	c = &Context{
		Context:    ctx,
		Properties: store,
		Executor:   exec,
		Logger:     log.Default(),
	}

	for _, opt := range options {
		opt(c)
	}

	if c.RunID == "" {
		if c.RunID, err = tpm.GenerateID(); err != nil {
			return nil, err
		}
	}

	if c.Hosts, err = Hosts(store); err != nil {
		return nil, err
	}

	if c.Coordinator, err = Coordinator(store, c.Hosts); err != nil {
		return nil, err
	}

	return c, nil
}

// Context everything a run needs. constructed once per run and passed
// explicitly to validation and scheduling.
type Context struct {
	context.Context
	RunID       tpm.RandomID
	Properties  *properties.Store
	Executor    remote.Executor
	Logger      *log.Logger
	Topology    topology.Resolver
	Hosts       []Host
	Coordinator Host
}

// Run the command on the host.
func (t *Context) Run(ctx context.Context, h Host, command string) (string, error) {
	return remote.Output(ctx, t.Executor, h.Target(), command)
}
