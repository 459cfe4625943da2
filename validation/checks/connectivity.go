package checks

import (
	"context"
	"strings"

	"github.com/james-lawrence/tpm/cluster"
	"github.com/james-lawrence/tpm/properties"
	"github.com/james-lawrence/tpm/remote"
	"github.com/james-lawrence/tpm/validation"
)

// SSHLogin ensures the host accepts logins as the configured user.
func SSHLogin(h cluster.Host) validation.Check {
	return sshlogin{base{validation.Description{
		Name:       "SSHLoginCheck",
		Title:      "SSH login",
		Severity:   validation.Fatal,
		Weight:     -5,
		Properties: []properties.Path{h.Path(cluster.KeyUser), h.Path(cluster.KeyHost)},
	}}}
}

type sshlogin struct {
	base
}

func (t sshlogin) Validate(ctx context.Context, env validation.Env, r *validation.Recorder) error {
	out, err := env.Run(ctx, "whoami")
	if err == nil && out == env.Host.User {
		return nil
	}

	r.Error("unable to SSH to %s as %s", env.Host.Name, env.Host.User)
	if remote.IsConnection(err) {
		r.Help("ensure the host is running and that you can login via SSH using key authentication")
	} else if err == nil {
		r.Help("the login succeeded as '" + out + "', check the user configured for the host")
	}

	return nil
}

// Hostname ensures the host reports the configured name.
func Hostname(h cluster.Host) validation.Check {
	return hostname{base{validation.Description{
		Name:       "HostnameCheck",
		Title:      "Hostname",
		Severity:   validation.Warning,
		Properties: []properties.Path{h.Path(cluster.KeyHost)},
	}}}
}

type hostname struct {
	base
}

func (t hostname) Validate(ctx context.Context, env validation.Env, r *validation.Recorder) error {
	out, err := env.Run(ctx, "hostname")
	if err != nil {
		return err
	}

	short, _, _ := strings.Cut(env.Host.Name, ".")
	if out == env.Host.Name || out == short {
		return nil
	}

	r.Error("hostname is %s but the host is configured as %s", out, env.Host.Name)
	return nil
}
