// Package checks the built-in pre-flight checks. only SSHLogin stops the
// pipeline; the remaining checks record blocking problems with Fatal and
// keep going so the operator sees every problem at once.
package checks

import (
	"github.com/james-lawrence/tpm/cluster"
	"github.com/james-lawrence/tpm/validation"
)

type base struct {
	d validation.Description
}

func (t base) Describe() validation.Description {
	return t.d
}

func (t base) Enabled(validation.Env) bool {
	return true
}

func roles(env validation.Env, r ...cluster.Role) bool {
	return env.Host.Roles.Any(r...)
}

// Deploy the checks run before a deployment.
func Deploy() []validation.Factory {
	return []validation.Factory{
		SSHLogin,
		Hostname,
		WriteableTempDirectory,
		WriteableHomeDirectory,
		Sudo,
		JavaVersion,
		InstallServices,
		PackageDownload,
		TransferredLogStorage,
		ReplicatorServiceRunning,
		ReplicatorPortAvailable,
		CurrentTopology,
	}
}

// Reset the checks run before resetting an installed cluster.
func Reset() []validation.Factory {
	return []validation.Factory{
		SSHLogin,
		Sudo,
		ActiveDirectoryIsRunning,
		LogStorage,
		CurrentTopology,
	}
}
