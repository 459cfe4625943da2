package cluster

import (
	"fmt"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/james-lawrence/tpm"
	"github.com/james-lawrence/tpm/internal/errorsx"
	"github.com/james-lawrence/tpm/internal/systemx"
	"github.com/james-lawrence/tpm/properties"
	"github.com/james-lawrence/tpm/remote"
)

// DefaultHomeDirectory used when neither the host nor the defaults specify one.
const DefaultHomeDirectory = "/opt/continuent"

// Host a machine participating in the cluster.
type Host struct {
	Alias         string
	Name          string
	User          string
	HomeDirectory string
	Port          int
	Roles         Roles
}

func (t Host) String() string {
	return t.Alias
}

// Path of a property belonging to the host.
func (t Host) Path(keys ...string) properties.Path {
	return HostPath(t.Alias, keys...)
}

// Target the remote target for the host.
func (t Host) Target() remote.Target {
	return remote.Target{Host: t.Name, User: t.User, Port: t.Port}
}

// HostsOption filter applied to hosts.
type HostsOption func(Host) bool

// HostsWithRole only hosts having any of the roles.
func HostsWithRole(roles ...Role) HostsOption {
	return func(h Host) bool {
		return h.Roles.Any(roles...)
	}
}

// ReadHost the host stored under the alias.
func ReadHost(r properties.Reader, alias string) (h Host, err error) {
	var (
		roles []string
	)

	h = Host{
		Alias:         alias,
		Name:          r.StringOr(HostPath(alias, KeyHost), alias),
		User:          r.StringOr(HostPath(alias, KeyUser), systemx.CurrentUserOrDefault(user.User{Username: "root"}).Username),
		HomeDirectory: r.StringOr(HostPath(alias, KeyHomeDirectory), DefaultHomeDirectory),
		Port:          tpm.DefaultSSHPort,
	}

	if port, err := r.Int(HostPath(alias, KeySSHPort)); err == nil {
		h.Port = port
	} else if !properties.IsMissing(err) {
		return h, err
	}

	if roles, err = r.Strings(HostPath(alias, KeyRoles)); properties.IsMissing(err) {
		return h, nil
	} else if err != nil {
		return h, err
	}

	if h.Roles, err = ParseRoles(roles...); err != nil {
		return h, errors.Wrapf(err, "host %s", alias)
	}

	return h, nil
}

// Hosts every host configured in the store in insertion order.
func Hosts(r properties.Reader, filters ...HostsOption) (hosts []Host, err error) {
outer:
	for _, alias := range r.Members(GroupHosts) {
		h, err := ReadHost(r, alias)
		if err != nil {
			return nil, err
		}

		for _, f := range filters {
			if !f(h) {
				continue outer
			}
		}

		hosts = append(hosts, h)
	}

	return hosts, nil
}

// Find the host by alias.
func Find(hosts []Host, alias string) (Host, bool) {
	for _, h := range hosts {
		if h.Alias == alias {
			return h, true
		}
	}

	return Host{}, false
}

// Coordinator selects the host responsible for cluster wide work: the
// configured coordinator, otherwise the first manager, otherwise the first host.
func Coordinator(r properties.Reader, hosts []Host) (Host, error) {
	if len(hosts) == 0 {
		return Host{}, errors.New("no hosts configured")
	}

	if alias := r.StringOr(ClusterPath(KeyCoordinator), ""); alias != "" {
		if h, ok := Find(hosts, alias); ok {
			return h, nil
		}

		return Host{}, errors.Errorf("coordinator %s is not a configured host", alias)
	}

	for _, h := range hosts {
		if h.Roles.Has(Manager) {
			return h, nil
		}
	}

	return hosts[0], nil
}

// Current the symlink pointing at the active release.
func (t Host) Current() string {
	return filepath.Join(t.HomeDirectory, tpm.DefaultReleaseDirectory)
}

// Releases the directory holding every unpacked release.
func (t Host) Releases() string {
	return filepath.Join(t.HomeDirectory, "releases")
}

// Script the path of a service script within the active release.
// e.g. Script("tungsten-replicator", "replicator").
func (t Host) Script(component, name string) string {
	return filepath.Join(t.Current(), component, "bin", name)
}

// ThlDirectory where the replicator stores the transferred logs.
func (t Host) ThlDirectory(r properties.Reader) (string, error) {
	return t.Directory(r, KeyThlDirectory, filepath.Join(t.HomeDirectory, "thl"))
}

// RelayDirectory where the replicator stores the relay logs.
func (t Host) RelayDirectory(r properties.Reader) (string, error) {
	return t.Directory(r, KeyLogDirectory, filepath.Join(t.HomeDirectory, "relay"))
}

// Directory a directory property of the host. a missing property resolves
// to the fallback; whichever is used must pass SafeDirectory.
func (t Host) Directory(r properties.Reader, key, fallback string) (dir string, err error) {
	if dir, err = r.String(t.Path(key)); properties.IsMissing(err) {
		dir = fallback
	} else if err != nil {
		return "", err
	}

	if err = SafeDirectory(dir); err != nil {
		return dir, errorsx.WithHelp(
			errors.Wrapf(err, "%s", t.Path(key)),
			fmt.Sprintf("set %s to an absolute directory or remove it to use %s", t.Path(key), fallback),
		)
	}

	return dir, nil
}

// SafeDirectory rejects directories the services' data can't live in: empty,
// relative, or the filesystem root.
func SafeDirectory(dir string) error {
	switch {
	case strings.TrimSpace(dir) == "":
		return errors.New("directory is empty")
	case !filepath.IsAbs(dir):
		return errors.Errorf("directory %s is not absolute", dir)
	case filepath.Clean(dir) == "/":
		return errors.New("directory is the filesystem root")
	default:
		return nil
	}
}
