package checks

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/james-lawrence/tpm/cluster"
	"github.com/james-lawrence/tpm/properties"
	"github.com/james-lawrence/tpm/remote"
	"github.com/james-lawrence/tpm/validation"
)

const defaultTempDirectory = "/tmp"

func writeable(ctx context.Context, env validation.Env, r *validation.Recorder, dir string) error {
	if _, err := env.Run(ctx, fmt.Sprintf("mkdir -p %s", remote.Quote(dir))); remote.IsCommand(err) {
		r.Fatal("unable to create the directory %s", dir)
		return nil
	} else if err != nil {
		return err
	}

	if ok, err := remote.Succeeded(ctx, env.Executor, env.Host.Target(), fmt.Sprintf("test -d %s", remote.Quote(dir))); err != nil {
		return err
	} else if !ok {
		r.Fatal("%s is not a directory", dir)
	}

	if ok, err := remote.Succeeded(ctx, env.Executor, env.Host.Target(), fmt.Sprintf("test -w %s", remote.Quote(dir))); err != nil {
		return err
	} else if !ok {
		r.Fatal("%s is not writeable", dir)
	}

	return nil
}

// WriteableTempDirectory ensures a unique directory can be created within the
// temp directory.
func WriteableTempDirectory(h cluster.Host) validation.Check {
	return tempdir{base{validation.Description{
		Name:       "WriteableTempDirectoryCheck",
		Title:      "Writeable temp directory",
		Severity:   validation.Warning,
		Properties: []properties.Path{h.Path(cluster.KeyTempDirectory)},
	}}}
}

type tempdir struct {
	base
}

func (t tempdir) Validate(ctx context.Context, env validation.Env, r *validation.Recorder) error {
	dir := filepath.Join(env.Property(cluster.KeyTempDirectory, defaultTempDirectory), "tpm-"+env.RunID.Short())
	if err := writeable(ctx, env, r, dir); err != nil {
		return err
	}

	_, err := env.Run(ctx, fmt.Sprintf("rmdir %s", remote.Quote(dir)))
	return err
}

// WriteableHomeDirectory ensures the home directory can be written and the
// active release is a symlink when present.
func WriteableHomeDirectory(h cluster.Host) validation.Check {
	return homedir{base{validation.Description{
		Name:       "WriteableHomeDirectoryCheck",
		Title:      "Writeable home directory",
		Severity:   validation.Warning,
		Properties: []properties.Path{h.Path(cluster.KeyHomeDirectory)},
	}}}
}

type homedir struct {
	base
}

func (t homedir) Validate(ctx context.Context, env validation.Env, r *validation.Recorder) error {
	if err := writeable(ctx, env, r, env.Host.HomeDirectory); err != nil {
		return err
	}

	current := remote.Quote(env.Host.Current())
	ok, err := remote.Succeeded(ctx, env.Executor, env.Host.Target(), fmt.Sprintf("test ! -e %s -o -L %s", current, current))
	if err != nil {
		return err
	}

	if !ok {
		r.Fatal("%s already exists but is not a symlink", env.Host.Current())
		r.Help("move the directory out of the way, it will be replaced by a link to the deployed release")
	}

	return nil
}

// TransferredLogStorage ensures the transaction log directory isn't a file.
func TransferredLogStorage(h cluster.Host) validation.Check {
	return thlstorage{base{validation.Description{
		Name:       "TransferredLogStorageCheck",
		Title:      "Transferred log storage",
		Severity:   validation.Warning,
		Properties: []properties.Path{h.Path(cluster.KeyThlDirectory)},
	}}}
}

type thlstorage struct {
	base
}

func (t thlstorage) Enabled(env validation.Env) bool {
	return roles(env, cluster.Replicator) && env.Property(cluster.KeyThlDirectory, "") != ""
}

func (t thlstorage) Validate(ctx context.Context, env validation.Env, r *validation.Recorder) error {
	dir := remote.Quote(env.Property(cluster.KeyThlDirectory, ""))
	conflict, err := remote.Succeeded(ctx, env.Executor, env.Host.Target(), fmt.Sprintf("test -e %s -a ! -d %s", dir, dir))
	if err != nil {
		return err
	}

	if conflict {
		r.Fatal("transferred log directory %s already exists as a file", env.Property(cluster.KeyThlDirectory, ""))
	}

	return nil
}

// ActiveDirectoryIsRunning ensures an installation exists to operate on and
// reports whether its services are running.
func ActiveDirectoryIsRunning(h cluster.Host) validation.Check {
	return activedir{base{validation.Description{
		Name:       "ActiveDirectoryIsRunningCheck",
		Title:      "Active directory",
		Severity:   validation.Warning,
		Weight:     -1,
		Properties: []properties.Path{h.Path(cluster.KeyHomeDirectory)},
	}}}
}

type activedir struct {
	base
}

func (t activedir) Validate(ctx context.Context, env validation.Env, r *validation.Recorder) error {
	exists, err := remote.Succeeded(ctx, env.Executor, env.Host.Target(), fmt.Sprintf("test -d %s", remote.Quote(env.Host.Current())))
	if err != nil {
		return err
	}

	if !exists {
		r.Fatal("no installation found at %s", env.Host.Current())
		r.Help("deploy the cluster before attempting to reset it")
		return nil
	}

	if !roles(env, cluster.Replicator) {
		return nil
	}

	running, err := remote.Succeeded(ctx, env.Executor, env.Host.Target(), env.Host.Script("tungsten-replicator", "replicator")+" status")
	if err != nil {
		return err
	}

	if running {
		r.Info("the replicator in %s is running", env.Host.Current())
	} else {
		r.Info("the replicator in %s is stopped", env.Host.Current())
	}

	return nil
}

// LogStorage ensures the directories a reset deletes or archives are
// absolute and never the filesystem root.
func LogStorage(h cluster.Host) validation.Check {
	return logstorage{base{validation.Description{
		Name:     "LogStorageCheck",
		Title:    "Log storage",
		Severity: validation.Warning,
		Properties: []properties.Path{
			h.Path(cluster.KeyHomeDirectory),
			h.Path(cluster.KeyThlDirectory),
			h.Path(cluster.KeyLogDirectory),
		},
	}}}
}

type logstorage struct {
	base
}

func (t logstorage) Enabled(env validation.Env) bool {
	return roles(env, cluster.Replicator)
}

func (t logstorage) Validate(ctx context.Context, env validation.Env, r *validation.Recorder) error {
	defer func() {
		if len(r.Entries()) > 0 {
			r.Help("the logs are removed or archived from these directories, use absolute paths other than /")
		}
	}()

	if err := cluster.SafeDirectory(env.Host.HomeDirectory); err != nil {
		r.Fatal("%s: %v", env.Host.Path(cluster.KeyHomeDirectory), err)
		return nil
	}

	for _, resolve := range []func(properties.Reader) (string, error){env.Host.ThlDirectory, env.Host.RelayDirectory} {
		if _, err := resolve(env.Properties); err != nil {
			r.Fatal("%v", err)
		}
	}

	return nil
}
