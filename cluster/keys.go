package cluster

import "github.com/james-lawrence/tpm/properties"

// property groups.
const (
	GroupHosts        = "hosts"
	GroupServices     = "replication-services"
	GroupDataservices = "dataservices"
	GroupDatasources  = "datasources"
	// GroupCluster run scoped values shared between hosts.
	GroupCluster = "cluster"
)

// host keys.
const (
	KeyHost               = "host"
	KeyUser               = "user"
	KeyHomeDirectory      = "home-directory"
	KeyRoles              = "roles"
	KeySSHPort            = "ssh-port"
	KeyTempDirectory      = "temp-directory"
	KeyRootCommandPrefix  = "root-command-prefix"
	KeyDataservice        = "dataservice"
	KeyPackage            = "package"
	KeyRMIPort            = "rmi-port"
	KeyManagerAPIPort     = "manager-api-port"
	KeyThlDirectory       = "thl-directory"
	KeyLogDirectory       = "log-directory"
	KeyJavaVersion        = "java-version-minimum"
	KeyInstallServices    = "install-services"
	KeyStartServices      = "start"
	KeySkipChecks         = "skip-validation-checks"
	KeyResetDeleteLogs    = "reset-delete-logs"
	KeyResetArchiveSuffix = "reset-archive-suffix"
	KeyDeployedRelease    = "deployed-release"
	KeyDynamicProperties  = "dynamic-properties"
)

// run scoped keys.
const (
	KeyCoordinator    = "coordinator"
	KeyPolicyOriginal = "policy-original"
	KeyRunID          = "run-id"
)

// DeployOnlyKeys host keys meaningful to the deployment run only, they're
// removed from the configuration written to the hosts.
var DeployOnlyKeys = []string{
	KeyPackage,
	KeyResetDeleteLogs,
	KeyResetArchiveSuffix,
	KeySkipChecks,
}

// TransientKeys host keys describing a single run, they're never persisted.
var TransientKeys = []string{
	KeyResetDeleteLogs,
	KeyResetArchiveSuffix,
}

// HostPath the path of a host property.
func HostPath(alias string, keys ...string) properties.Path {
	return properties.P(GroupHosts, alias).Append(keys...)
}

// ServicePath the path of a replication service property.
func ServicePath(service string, keys ...string) properties.Path {
	return properties.P(GroupServices, service).Append(keys...)
}

// ClusterPath the path of a run scoped property.
func ClusterPath(keys ...string) properties.Path {
	return properties.P(GroupCluster).Append(keys...)
}
