package checks

import (
	"context"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/james-lawrence/tpm/cluster"
	"github.com/james-lawrence/tpm/internal/httputilx"
	"github.com/james-lawrence/tpm/internal/systemx"
	"github.com/james-lawrence/tpm/properties"
	"github.com/james-lawrence/tpm/remote"
	"github.com/james-lawrence/tpm/validation"
)

// Sudo ensures password-less sudo is available when commands are prefixed
// with sudo.
func Sudo(h cluster.Host) validation.Check {
	return sudo{base{validation.Description{
		Name:       "SudoCheck",
		Title:      "Sudo",
		Severity:   validation.Warning,
		Properties: []properties.Path{h.Path(cluster.KeyRootCommandPrefix)},
	}}}
}

type sudo struct {
	base
}

func (t sudo) Enabled(env validation.Env) bool {
	return env.Properties.Bool(env.Host.Path(cluster.KeyRootCommandPrefix))
}

func (t sudo) Validate(ctx context.Context, env validation.Env, r *validation.Recorder) error {
	help := func() {
		r.Help(
			"Add \""+env.Host.User+"        ALL=(ALL)       NOPASSWD: ALL\" to the /etc/sudoers file.",
			"Comment out or remove the requiretty line in the /etc/sudoers file.",
		)
	}

	if _, err := env.Run(ctx, "sudo -n ls"); remote.IsCommand(err) {
		r.Fatal("sudo is not setup correctly")
		help()
		return nil
	} else if err != nil {
		return err
	}

	out, err := env.Run(ctx, "sudo -n -l")
	if err != nil {
		return err
	}

	failed := false
	if strings.Contains(out, "requiretty") {
		r.Fatal("sudo has the requiretty option enabled")
		failed = true
	}

	if !strings.Contains(out, "NOPASSWD: ALL") {
		r.Fatal("the user does not have access to sudo all commands")
		failed = true
	}

	if failed {
		help()
	}

	return nil
}

const defaultJavaVersion = 8

var javaVersion = regexp.MustCompile(`version "(\d+)(?:\.(\d+))?`)

// ParseJavaVersion extracts the major version from 'java -version' output.
// legacy 1.x versions report x.
func ParseJavaVersion(output string) (int, bool) {
	m := javaVersion.FindStringSubmatch(output)
	if m == nil {
		return 0, false
	}

	major, _ := strconv.Atoi(m[1])
	if major == 1 && m[2] != "" {
		major, _ = strconv.Atoi(m[2])
	}

	return major, true
}

// JavaVersion ensures a supported java runtime is on the path.
func JavaVersion(h cluster.Host) validation.Check {
	return java{base{validation.Description{
		Name:       "JavaVersionCheck",
		Title:      "Java version",
		Severity:   validation.Warning,
		Properties: []properties.Path{h.Path(cluster.KeyJavaVersion)},
	}}}
}

type java struct {
	base
}

func (t java) Enabled(env validation.Env) bool {
	return roles(env, cluster.Replicator, cluster.Manager, cluster.Connector)
}

func (t java) Validate(ctx context.Context, env validation.Env, r *validation.Recorder) error {
	minimum, err := strconv.Atoi(env.Property(cluster.KeyJavaVersion, strconv.Itoa(defaultJavaVersion)))
	if err != nil {
		return err
	}

	out, err := env.Run(ctx, "java -version 2>&1")
	if remote.IsCommand(err) {
		r.Fatal("java binary not found in path")
		return nil
	} else if err != nil {
		return err
	}

	major, ok := ParseJavaVersion(out)
	if !ok {
		r.Fatal("unknown java version: %s", firstLine(out))
		return nil
	}

	if major < minimum {
		r.Fatal("java %d or greater is required, found %d", minimum, major)
	}

	return nil
}

// InstallServices ensures the operating system supports installing the
// services into the init system.
func InstallServices(h cluster.Host) validation.Check {
	return installservices{base{validation.Description{
		Name:       "InstallServicesCheck",
		Title:      "Install services",
		Severity:   validation.Warning,
		Properties: []properties.Path{h.Path(cluster.KeyInstallServices)},
	}}}
}

type installservices struct {
	base
}

func (t installservices) Enabled(env validation.Env) bool {
	return env.Properties.Bool(env.Host.Path(cluster.KeyInstallServices))
}

func (t installservices) Validate(ctx context.Context, env validation.Env, r *validation.Recorder) error {
	ok, err := remote.Succeeded(ctx, env.Executor, env.Host.Target(), "test -f /etc/redhat-release -o -f /etc/debian_version")
	if err != nil {
		return err
	}

	if ok {
		r.Info("operating system supports service installation")
	} else {
		r.Fatal("operating system is unable to support service installation")
	}

	return nil
}

// PackageDownload ensures the release package is reachable.
func PackageDownload(h cluster.Host) validation.Check {
	return download{
		base: base{validation.Description{
			Name:       "PackageDownloadCheck",
			Title:      "Package download",
			Severity:   validation.Warning,
			Properties: []properties.Path{h.Path(cluster.KeyPackage)},
		}},
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type download struct {
	base
	client *http.Client
}

func (t download) Enabled(env validation.Env) bool {
	return env.Property(cluster.KeyPackage, "") != ""
}

func (t download) Validate(ctx context.Context, env validation.Env, r *validation.Recorder) error {
	location := env.Property(cluster.KeyPackage, "")
	u, err := url.Parse(location)
	if err != nil {
		r.Fatal("invalid package location %s: %v", location, err)
		return nil
	}

	switch u.Scheme {
	case "http", "https":
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, location, nil)
		if err != nil {
			return err
		}

		resp, err := t.client.Do(req)
		if err != nil {
			r.Fatal("the package download link is not accessible: %v", err)
			return nil
		}
		resp.Body.Close()

		if !httputilx.IsSuccess(resp.StatusCode) {
			r.Fatal("the package download link is not accessible: %s", resp.Status)
			return nil
		}

		r.Info("the package download link is accessible")
	case "", "file":
		if !systemx.FileExists(u.Path) {
			r.Fatal("the package %s does not exist", u.Path)
		}
	default:
		r.Fatal("unsupported package location %s", location)
	}

	return nil
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
