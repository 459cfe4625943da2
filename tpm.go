package tpm

import (
	"path/filepath"
	"time"

	"github.com/gofrs/uuid"
	"github.com/pkg/errors"

	"github.com/james-lawrence/tpm/internal/systemx"
)

const (
	// DefaultDir the directory, relative to the working directory, holding the cluster state.
	DefaultDir = ".tpm"
	// DefaultConfigFile name of the persisted property file.
	DefaultConfigFile = "cluster.properties"
	// DefaultHostConfigFile name of the per host property snapshot written during deploys.
	DefaultHostConfigFile = "deployed.properties"
	// DefaultTimeout upper bound for a single remote command.
	DefaultTimeout = 10 * time.Minute
	// DefaultSSHDialTimeout upper bound for establishing an ssh connection.
	DefaultSSHDialTimeout = 10 * time.Second
	// DefaultSSHPort port used when a host doesn't specify one.
	DefaultSSHPort = 22
	// DefaultManagerAPIPort port the manager exposes its status api on.
	DefaultManagerAPIPort = 8090
	// DefaultReleaseDirectory name of the symlink pointing at the active release.
	DefaultReleaseDirectory = "tungsten"
)

// DefaultConfigLocation the location of the property file for the provided directory.
func DefaultConfigLocation(dir string) string {
	return filepath.Join(dir, DefaultDir, DefaultConfigFile)
}

// DefaultWorkingConfig the property file location within the current working directory.
func DefaultWorkingConfig() string {
	return DefaultConfigLocation(systemx.WorkingDirectoryOrDefault("."))
}

// RandomID a random identifier.
type RandomID string

func (t RandomID) String() string {
	return string(t)
}

// Short returns an abbreviated form of the identifier suitable for file suffixes.
func (t RandomID) Short() string {
	if len(t) <= 8 {
		return string(t)
	}

	return string(t[:8])
}

// GenerateID generates a random ID.
func GenerateID() (_ignored RandomID, err error) {
	var (
		id uuid.UUID
	)

	if id, err = uuid.NewV4(); err != nil {
		return _ignored, errors.Wrap(err, "failed generating run id")
	}

	return RandomID(id.String()), nil
}

// MustGenerateID panics if unable to generate an id.
func MustGenerateID() RandomID {
	id, err := GenerateID()
	if err != nil {
		panic(err)
	}

	return id
}
