package tpm

// defines available environment variables for configuration
const (
	EnvLogsVerbose    = "TPM_LOGS_VERBOSE"     // enable verbose logging. boolean, see strconv.ParseBool for valid values.
	EnvConfig         = "TPM_CONFIG"           // location of the cluster property file.
	EnvTimeout        = "TPM_TIMEOUT"          // maximum duration of a single remote command, see time.ParseDuration.
	EnvConcurrency    = "TPM_CONCURRENCY"      // number (>= 1) or ratio (0 < x <= 1) of hosts to process simultaneously.
	EnvSSHIdentity    = "TPM_SSH_IDENTITY"     // private key used to authenticate against hosts.
	EnvSSHInsecure    = "TPM_SSH_INSECURE"     // skip known_hosts verification. boolean.
	EnvSSHKnownHosts  = "TPM_SSH_KNOWN_HOSTS"  // known_hosts file used to verify hosts.
	EnvEnvironFile    = "TPM_ENVIRON"          // environment file loaded for locally executed commands.
	EnvSSHDialTimeout = "TPM_SSH_DIAL_TIMEOUT" // maximum duration of establishing an ssh connection, see time.ParseDuration.
)
