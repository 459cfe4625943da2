package steps

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/james-lawrence/tpm"
	"github.com/james-lawrence/tpm/cluster"
	"github.com/james-lawrence/tpm/deployment"
	"github.com/james-lawrence/tpm/internal/errorsx"
	"github.com/james-lawrence/tpm/remote"
)

const defaultTempDirectory = "/tmp"

// release the unpacked location of a package.
type release struct {
	name    string
	archive string
	unpack  string
}

// locate determines how the package reaches the host. http(s) packages are
// fetched into the temp directory, anything else is a path on the host.
func locate(pkg, tmpdir, releases string) (r release, err error) {
	base := path.Base(pkg)
	if u, err := url.Parse(pkg); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		if !strings.HasSuffix(u.Path, ".tar.gz") {
			return r, errors.Errorf("only .tar.gz packages can be fetched over %s: %s", u.Scheme, pkg)
		}

		base = path.Base(u.Path)
		archive := filepath.Join(tmpdir, base)
		r.archive = archive
		r.name = strings.TrimSuffix(base, ".tar.gz")
		r.unpack = fmt.Sprintf(
			"(test -f %[1]s || curl -fsSL -o %[1]s %[2]s) && tar zxf %[1]s -C %[3]s",
			remote.Quote(archive), remote.Quote(pkg), remote.Quote(releases),
		)
		return r, nil
	}

	pkg = strings.TrimPrefix(pkg, "file://")
	switch {
	case strings.HasSuffix(base, ".tar.gz"):
		r.name = strings.TrimSuffix(base, ".tar.gz")
		r.unpack = fmt.Sprintf("tar zxf %s -C %s", remote.Quote(pkg), remote.Quote(releases))
	case strings.HasSuffix(base, ".tar"):
		r.name = strings.TrimSuffix(base, ".tar")
		r.unpack = fmt.Sprintf("tar xf %s -C %s", remote.Quote(pkg), remote.Quote(releases))
	default:
		r.name = base
		r.unpack = fmt.Sprintf("test -d %[1]s && cp -rf %[1]s %[2]s", remote.Quote(pkg), remote.Quote(releases))
	}

	return r, nil
}

// createRelease unpacks the package into the releases directory and points
// the current symlink at it.
func createRelease(ctx context.Context, s deployment.Scope) (err error) {
	var (
		r   release
		out string
	)

	pkg := s.Property(cluster.KeyPackage, "")
	if pkg == "" {
		return errorsx.WithHelp(
			errors.Errorf("no package configured for %s", s.Host.Alias),
			fmt.Sprintf("set %s to the release archive or directory", s.Host.Path(cluster.KeyPackage)),
		)
	}

	home := s.Host.HomeDirectory
	if r, err = locate(pkg, s.Property(cluster.KeyTempDirectory, defaultTempDirectory), s.Host.Releases()); err != nil {
		return err
	}

	dirs := []string{s.Host.Releases(), filepath.Join(home, "service-logs"), filepath.Join(home, "share")}
	for i, d := range dirs {
		dirs[i] = remote.Quote(d)
	}

	if _, err = s.Run(ctx, "mkdir -p "+strings.Join(dirs, " ")); err != nil {
		return errors.Wrap(err, "unable to create the home directory tree")
	}

	if out, err = s.Run(ctx, r.unpack); err != nil {
		return errors.Wrapf(err, "unable to unpack %s", pkg)
	} else if out != "" {
		s.Logger.Println(out)
	}

	current := s.Host.Current()
	if ok, err := remote.Succeeded(ctx, s.Executor, s.Host.Target(), fmt.Sprintf("test ! -e %[1]s -o -L %[1]s", remote.Quote(current))); err != nil {
		return err
	} else if !ok {
		return errorsx.WithHelp(
			errors.Errorf("unable to create the release directory because %s is not a symlink", current),
			fmt.Sprintf("move %s out of the way and retry", current),
		)
	}

	link := fmt.Sprintf("rm -f %[1]s && ln -s %[2]s %[1]s", remote.Quote(current), remote.Quote(filepath.Join(s.Host.Releases(), r.name)))
	if _, err = s.Run(ctx, link); err != nil {
		return errors.Wrap(err, "unable to link the release")
	}

	env := fmt.Sprintf(
		"# Source this file to set your environment.\nexport TUNGSTEN_HOME=%s\nexport PATH=$TUNGSTEN_HOME/%s/%s/bin:$TUNGSTEN_HOME/%s/%s/bin:$PATH\n",
		home, tpm.DefaultReleaseDirectory, manager.dir, tpm.DefaultReleaseDirectory, replicator.dir,
	)

	return remote.WriteFile(ctx, s.Executor, s.Host.Target(), filepath.Join(home, "share", "env.sh"), []byte(env), 0755)
}

// deployConfigFiles writes the host's copy of the configuration without the
// values that only matter to this run.
func deployConfigFiles(ctx context.Context, s deployment.Scope) (err error) {
	var (
		buf bytes.Buffer
	)

	snapshot := s.Properties.Clone()
	for _, alias := range snapshot.Members(cluster.GroupHosts) {
		for _, key := range cluster.DeployOnlyKeys {
			if err = snapshot.Delete(cluster.HostPath(alias, key)); err != nil {
				return err
			}
		}
	}

	if err = snapshot.Delete(cluster.ClusterPath(cluster.KeyRunID)); err != nil {
		return err
	}

	if err = snapshot.Encode(&buf); err != nil {
		return err
	}

	dst := filepath.Join(s.Host.HomeDirectory, tpm.DefaultHostConfigFile)
	s.Logger.Println("writing", dst)

	return remote.WriteFile(ctx, s.Executor, s.Host.Target(), dst, buf.Bytes(), 0600)
}
