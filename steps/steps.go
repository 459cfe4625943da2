// Package steps the deployment modules contributed by the deploy and reset
// commands and the implementations of their steps.
package steps

import (
	"context"
	"fmt"
	"time"

	"github.com/james-lawrence/tpm/backoff"
	"github.com/james-lawrence/tpm/cluster"
	"github.com/james-lawrence/tpm/deployment"
	"github.com/james-lawrence/tpm/remote"
)

// step names.
const (
	CreateRelease            = "create_release"
	DeployConfigFiles        = "deploy_config_files"
	ApplyConfigServices      = "apply_config_services"
	SetMaintenancePolicy     = "set_maintenance_policy"
	StopReplicationServices  = "stop_replication_services"
	UpdateMetadata           = "update_metadata"
	DeployServices           = "deploy_services"
	StartReplicationServices = "start_replication_services"
	WaitForManager           = "wait_for_manager"
	SetAutomaticPolicy       = "set_automatic_policy"
	StartConnector           = "start_connector"
	SetOriginalPolicy        = "set_original_policy"
	ReportServices           = "report_services"
	CheckPing                = "check_ping"
	ClearDynamicProperties   = "clear_dynamic_properties"
	RotateLogs               = "rotate_logs"
)

// Deploy the modules contributing to a deployment.
func Deploy() []deployment.Module {
	return []deployment.Module{
		{
			Name: "release",
			Steps: []deployment.Step{
				deployment.Required(CreateRelease, 0, -40),
				deployment.Required(DeployConfigFiles, 0, -20),
			},
		},
		{
			Name: "services",
			Steps: []deployment.Step{
				deployment.Required(ApplyConfigServices, 0, deployment.FinalWeight),
				deployment.Required(SetMaintenancePolicy, deployment.FirstGroup, deployment.FirstWeight),
				deployment.Required(StopReplicationServices, -1, 0),
				deployment.Required(UpdateMetadata, 1, 0),
				deployment.Required(DeployServices, 1, 1),
				deployment.Required(StartReplicationServices, 1, deployment.FinalWeight),
				deployment.Required(WaitForManager, 2, -1),
				deployment.Required(SetAutomaticPolicy, 3, 0),
				deployment.Optional(StartConnector, 4, 1),
				deployment.Required(SetOriginalPolicy, 4, 2),
				deployment.Optional(ReportServices, deployment.FinalGroup, deployment.FinalWeight-1),
				deployment.Required(CheckPing, deployment.FinalGroup, deployment.FinalWeight),
			},
		},
	}
}

// Reset the modules contributing to a reset of an installed cluster.
func Reset() []deployment.Module {
	return []deployment.Module{
		{
			Name: "reset",
			Steps: []deployment.Step{
				deployment.Required(SetMaintenancePolicy, deployment.FirstGroup, 0),
				deployment.Required(StopReplicationServices, -1, 0),
				deployment.Required(ClearDynamicProperties, 0, 0),
				deployment.Required(RotateLogs, 0, 0),
				deployment.Required(StartReplicationServices, 1, deployment.FinalWeight),
				deployment.Required(WaitForManager, 2, -1),
				deployment.Required(SetOriginalPolicy, 4, 2),
				deployment.Optional(ReportServices, deployment.FinalGroup, deployment.FinalWeight),
			},
		},
	}
}

// Option tunes the step implementations.
type Option func(*config)

// OptionManagerPoll how long to wait for a manager to come online.
func OptionManagerPoll(s backoff.Strategy, attempts int) Option {
	return func(c *config) {
		c.poll = s
		c.attempts = attempts
	}
}

type config struct {
	poll     backoff.Strategy
	attempts int
}

func newConfig(options ...Option) config {
	c := config{
		poll:     backoff.New(backoff.Exponential(time.Second), backoff.Maximum(10*time.Second), backoff.Jitter(0.1)),
		attempts: 30,
	}

	for _, opt := range options {
		opt(&c)
	}

	return c
}

// DeployRegistry the step implementations used by a deployment. services
// are only started on hosts configured to start them.
func DeployRegistry(options ...Option) *deployment.Registry {
	c := newConfig(options...)
	return deployment.NewRegistry().
		MustRegister(CreateRelease, createRelease).
		MustRegister(DeployConfigFiles, deployConfigFiles).
		MustRegister(ApplyConfigServices, applyConfigServices).
		MustRegister(SetMaintenancePolicy, setMaintenancePolicy).
		MustRegister(StopReplicationServices, stopReplicationServices).
		MustRegister(UpdateMetadata, updateMetadata).
		MustRegister(DeployServices, deployServices).
		MustRegister(StartReplicationServices, startReplicationServices(false)).
		MustRegister(WaitForManager, waitForManager(c, false)).
		MustRegister(SetAutomaticPolicy, setAutomaticPolicy).
		MustRegister(StartConnector, startConnector).
		MustRegister(SetOriginalPolicy, setOriginalPolicy).
		MustRegister(ReportServices, reportServices).
		MustRegister(CheckPing, checkPing)
}

// ResetRegistry the step implementations used by a reset. services are
// always restarted.
func ResetRegistry(options ...Option) *deployment.Registry {
	c := newConfig(options...)
	return deployment.NewRegistry().
		MustRegister(SetMaintenancePolicy, setMaintenancePolicy).
		MustRegister(StopReplicationServices, stopReplicationServices).
		MustRegister(ClearDynamicProperties, clearDynamicProperties).
		MustRegister(RotateLogs, rotateLogs).
		MustRegister(StartReplicationServices, startReplicationServices(true)).
		MustRegister(WaitForManager, waitForManager(c, true)).
		MustRegister(SetOriginalPolicy, setOriginalPolicy).
		MustRegister(ReportServices, reportServices)
}

// component of the release managed through its service script.
type component struct {
	dir    string
	script string
	role   cluster.Role
}

var (
	replicator = component{dir: "tungsten-replicator", script: "replicator", role: cluster.Replicator}
	manager    = component{dir: "tungsten-manager", script: "manager", role: cluster.Manager}
	connector  = component{dir: "tungsten-connector", script: "connector", role: cluster.Connector}
)

func (t component) path(h cluster.Host) string {
	return h.Script(t.dir, t.script)
}

func (t component) installed(ctx context.Context, s deployment.Scope) (bool, error) {
	if !s.Host.Roles.Has(t.role) {
		return false, nil
	}

	return remote.Succeeded(ctx, s.Executor, s.Host.Target(), fmt.Sprintf("test -x %s", remote.Quote(t.path(s.Host))))
}

func (t component) running(ctx context.Context, s deployment.Scope) (bool, error) {
	if !s.Host.Roles.Has(t.role) {
		return false, nil
	}

	return remote.Succeeded(ctx, s.Executor, s.Host.Target(), fmt.Sprintf("%s status", remote.Quote(t.path(s.Host))))
}

func (t component) do(ctx context.Context, s deployment.Scope, action string) error {
	out, err := s.Run(ctx, fmt.Sprintf("%s %s", remote.Quote(t.path(s.Host)), action))
	if out != "" {
		s.Logger.Println(out)
	}

	return err
}

func started(s deployment.Scope) bool {
	return s.Properties.Bool(s.Host.Path(cluster.KeyStartServices))
}

func coordinator(s deployment.Scope) bool {
	return s.Host.Alias == s.Coordinator.Alias
}
