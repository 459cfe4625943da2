package main

import (
	"context"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/james-lawrence/tpm"
	"github.com/james-lawrence/tpm/cluster"
	"github.com/james-lawrence/tpm/commands"
	"github.com/james-lawrence/tpm/internal/envx"
	"github.com/james-lawrence/tpm/internal/errorsx"
	"github.com/james-lawrence/tpm/internal/sshx"
	"github.com/james-lawrence/tpm/internal/x/timex"
	"github.com/james-lawrence/tpm/properties"
	"github.com/james-lawrence/tpm/remote"
	"github.com/james-lawrence/tpm/ux"
)

// Global flags shared by every command.
type Global struct {
	Verbosity   int                `help:"increase verbosity of logging" short:"v" type:"counter" default:"0"`
	Config      string             `help:"cluster property file" env:"${env_tpm_config}" default:"${vars_tpm_default_config}"`
	Properties  []string           `name:"property" short:"p" help:"override a property for this run, path=value" placeholder:"PATH=VALUE"`
	Timeout     time.Duration      `help:"maximum duration of a single remote command" env:"${env_tpm_timeout}" default:"${vars_tpm_default_timeout}"`
	Concurrency float64            `help:"number (>= 1) or ratio (0 < x < 1) of hosts worked on at once, 0 for every host" env:"${env_tpm_concurrency}" default:"0"`
	Insecure    bool               `help:"skip host key verification" env:"${env_tpm_ssh_insecure}"`
	Identity    []string           `help:"private keys used to authenticate" env:"${env_tpm_ssh_identity}"`
	KnownHosts  []string           `name:"known-hosts" help:"known_hosts files used to verify hosts" env:"${env_tpm_ssh_known_hosts}"`
	Context     context.Context    `kong:"-"`
	Shutdown    context.CancelFunc `kong:"-"`
	Cleanup     *sync.WaitGroup    `kong:"-"`
}

// BeforeApply configures logging before the command runs.
func (t Global) BeforeApply() error {
	LogEnv(t.Verbosity)
	return nil
}

// Store loads the property file and applies the overrides.
func (t Global) Store() (s *properties.Store, err error) {
	if s, err = properties.Load(t.Config); err != nil {
		return nil, err
	}

	if len(s.Members(cluster.GroupHosts)) == 0 {
		return nil, errorsx.WithHelp(
			errorsx.UserFriendly(errors.Errorf("no hosts configured in %s", t.Config)),
			"run 'tpm configure <definition>' to create the configuration",
		)
	}

	if err = properties.ApplyOverrides(s, t.Properties...); err != nil {
		return nil, err
	}

	return s, nil
}

// Executor local commands run directly, everything else over ssh.
func (t Global) Executor() (_ remote.Executor, err error) {
	var (
		ssh *remote.SSH
	)

	options := []remote.SSHOption{
		remote.SSHOptionAgent(os.Getenv("SSH_AUTH_SOCK")),
		remote.SSHOptionDialTimeout(envx.Duration(tpm.DefaultSSHDialTimeout, tpm.EnvSSHDialTimeout)),
	}

	if identities := t.identities(); len(identities) > 0 {
		options = append(options, remote.SSHOptionIdentity(identities...))
	}

	if t.Insecure {
		options = append(options, remote.SSHOptionInsecure)
	} else {
		options = append(options, remote.SSHOptionKnownHosts(t.knownhosts()...))
	}

	if ssh, err = remote.NewSSH(options...); err != nil {
		return nil, errorsx.WithHelp(err, "use --identity to provide a private key and --known-hosts or --insecure to configure host verification")
	}

	t.Cleanup.Add(1)
	go func() {
		defer t.Cleanup.Done()
		<-t.Context.Done()
		errorsx.MaybeLog(ssh.Close())
	}()

	local := remote.NewLocal(remote.LocalOptionEnvironFile(envx.String("", tpm.EnvEnvironFile)))

	return remote.Timeout(remote.NewRouter(local, ssh), timex.DurationOrDefault(t.Timeout, tpm.DefaultTimeout)), nil
}

func (t Global) identities() []string {
	if len(t.Identity) > 0 {
		return t.Identity
	}

	return sshx.DefaultIdentities()
}

func (t Global) knownhosts() []string {
	if len(t.KnownHosts) > 0 {
		return t.KnownHosts
	}

	return sshx.DefaultKnownHosts()
}

// Cluster builds the context for a run against the configured hosts.
func (t Global) Cluster() (cctx *cluster.Context, printer ux.Printer, err error) {
	var (
		store *properties.Store
		exec  remote.Executor
	)

	printer = ux.New()

	if store, err = t.Store(); err != nil {
		return nil, printer, err
	}

	if exec, err = t.Executor(); err != nil {
		return nil, printer, err
	}

	if cctx, err = cluster.NewContext(t.Context, store, exec, cluster.ContextOptionLogger(printer.Logger)); err != nil {
		return nil, printer, err
	}

	cctx.Topology = commands.Resolver(store, exec, cctx.Coordinator)

	return cctx, printer, nil
}

// Options for a run reporting through the printer.
func (t Global) Options(printer ux.Printer) []commands.Option {
	return []commands.Option{
		commands.OptionPartitioner(tpm.PartitionFromFloat64(t.Concurrency)),
		commands.OptionObserver(printer.Observer()),
		commands.OptionValidationObserver(printer.ValidationObserver()),
	}
}

// LogEnv configures logging for the verbosity and reports the tpm environment.
func LogEnv(verbosity int) {
	if verbosity > 0 {
		os.Setenv(tpm.EnvLogsVerbose, "1")
	}

	if !envx.Boolean(false, tpm.EnvLogsVerbose) {
		return
	}

	environ := []string{}
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, "TPM_") {
			environ = append(environ, kv)
		}
	}
	sort.Strings(environ)

	log.Println("environment", strings.Join(environ, " "))
}

// LogCause logs the error along with any help. the stack is included when
// verbose logging is enabled.
func LogCause(err error) error {
	if err == nil {
		return nil
	}

	if envx.Boolean(false, tpm.EnvLogsVerbose) {
		log.Printf("%+v\n", err)
	} else {
		log.Println(err)
	}

	if help := errorsx.Help(err); help != "" {
		log.Println(help)
	}

	return err
}
