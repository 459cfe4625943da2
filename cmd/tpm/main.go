// Package main the operator frontend for deploying and resetting replication clusters.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/posener/complete"
	"github.com/willabides/kongplete"

	"github.com/james-lawrence/tpm"
	"github.com/james-lawrence/tpm/cmd/autocomplete"
	"github.com/james-lawrence/tpm/internal/debugx"
)

func main() {
	var shellCli struct {
		Global
		Version            cmdVersion                   `cmd:"" help:"display versioning information"`
		Configure          cmdConfigure                 `cmd:"" help:"merge a yaml cluster definition into the property file"`
		Validate           cmdValidate                  `cmd:"" help:"run the deployment checks without changing anything"`
		Deploy             cmdDeploy                    `cmd:"" help:"install the configured release on every host"`
		Reset              cmdReset                     `cmd:"" help:"clear the replication state of the cluster and restart it"`
		Status             cmdStatus                    `cmd:"" help:"report the topology of a dataservice"`
		InstallCompletions kongplete.InstallCompletions `cmd:"" help:"install shell completions"`
	}

	var (
		err error
		ctx *kong.Context
	)

	shellCli.Context, shellCli.Shutdown = context.WithCancel(context.Background())
	shellCli.Cleanup = &sync.WaitGroup{}

	log.SetFlags(log.Flags() | log.Lshortfile)
	go debugx.DumpOnSignal(shellCli.Context, syscall.SIGUSR2)
	go cleanup(shellCli.Context, shellCli.Shutdown, os.Interrupt, syscall.SIGTERM)

	parser := kong.Must(
		&shellCli,
		kong.Name("tpm"),
		kong.Description("deploy and reset multi host replication clusters"),
		kong.Vars{
			"vars_tpm_default_config":  tpm.DefaultWorkingConfig(),
			"vars_tpm_default_timeout": tpm.DefaultTimeout.String(),
			"env_tpm_config":           tpm.EnvConfig,
			"env_tpm_timeout":          tpm.EnvTimeout,
			"env_tpm_concurrency":      tpm.EnvConcurrency,
			"env_tpm_ssh_identity":     tpm.EnvSSHIdentity,
			"env_tpm_ssh_insecure":     tpm.EnvSSHInsecure,
			"env_tpm_ssh_known_hosts":  tpm.EnvSSHKnownHosts,
		},
		kong.UsageOnError(),
		kong.Bind(&shellCli.Global),
	)

	kongplete.Complete(parser,
		kongplete.WithPredictor("tpm.dataservice", complete.PredictFunc(autocomplete.Dataservices)),
	)

	if ctx, err = parser.Parse(os.Args[1:]); err != nil {
		LogCause(err)
		os.Exit(1)
	}

	err = LogCause(ctx.Run())
	shellCli.Shutdown()
	shellCli.Cleanup.Wait()

	if err != nil {
		os.Exit(1)
	}
}

// cleanup cancels the context on the first signal, a second signal exits immediately.
func cleanup(ctx context.Context, shutdown context.CancelFunc, sigs ...os.Signal) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, sigs...)

	select {
	case <-ctx.Done():
		return
	case s := <-signals:
		log.Println("received", s, "waiting for in flight steps to finish")
		shutdown()
	}

	<-signals
	os.Exit(1)
}
