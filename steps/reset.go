package steps

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/james-lawrence/tpm/cluster"
	"github.com/james-lawrence/tpm/deployment"
	"github.com/james-lawrence/tpm/internal/errorsx"
	"github.com/james-lawrence/tpm/remote"
)

// clearDynamicProperties removes the state the services persisted at runtime
// so they start from the configuration.
func clearDynamicProperties(ctx context.Context, s deployment.Scope) error {
	var (
		patterns []string
	)

	if s.Host.Roles.Has(cluster.Replicator) {
		if custom := s.Property(cluster.KeyDynamicProperties, ""); custom != "" {
			patterns = append(patterns, remote.Quote(custom))
		} else {
			patterns = append(patterns, remote.Quote(filepath.Join(s.Host.Current(), replicator.dir, "conf"))+"/dynamic-*.properties")
		}
	}

	if s.Host.Roles.Has(cluster.Manager) {
		patterns = append(patterns, remote.Quote(filepath.Join(s.Host.Current(), manager.dir, "conf"))+"/dynamic-*.properties")
	}

	for _, p := range patterns {
		if _, err := s.Run(ctx, "rm -f "+p); err != nil {
			return errors.Wrap(err, "unable to clear the dynamic properties")
		}
	}

	return nil
}

// rotateLogs deletes or archives the transferred logs, the relay logs and
// the service logs of a replicator.
func rotateLogs(ctx context.Context, s deployment.Scope) error {
	if !s.Host.Roles.Has(cluster.Replicator) {
		return nil
	}

	if err := cluster.SafeDirectory(s.Host.HomeDirectory); err != nil {
		return errorsx.WithHelp(
			errors.Wrapf(err, "%s", s.Host.Path(cluster.KeyHomeDirectory)),
			"set the home directory of the host to the absolute path of the installation",
		)
	}

	thl, err := s.Host.ThlDirectory(s.Properties)
	if err != nil {
		return err
	}

	relay, err := s.Host.RelayDirectory(s.Properties)
	if err != nil {
		return err
	}

	remove := s.Properties.Bool(s.Host.Path(cluster.KeyResetDeleteLogs))
	suffix := s.Property(cluster.KeyResetArchiveSuffix, "run"+s.RunID.Short())
	storage := []string{thl, relay}

	logs := []string{filepath.Join(s.Host.Current(), replicator.dir, "log")}
	if s.Host.Roles.Has(cluster.Manager) {
		logs = append(logs, filepath.Join(s.Host.Current(), manager.dir, "log"))
	}

	var commands []string
	for _, dir := range storage {
		if remove {
			commands = append(commands, fmt.Sprintf("rm -rf %s/*", remote.Quote(dir)))
			continue
		}

		commands = append(commands, fmt.Sprintf(
			"if [ -d %[1]s ]; then mv %[1]s %[2]s; fi; mkdir -p %[1]s",
			remote.Quote(dir), remote.Quote(dir+"_"+suffix),
		))
	}

	for _, dir := range logs {
		if remove {
			commands = append(commands, fmt.Sprintf("rm -f %s/*", remote.Quote(dir)))
			continue
		}

		commands = append(commands, fmt.Sprintf(
			"if [ -d %[1]s ]; then cd %[1]s && for i in *; do if [ -f \"$i\" ]; then mv \"$i\" \"${i}_\"%[2]s; fi; done; fi",
			remote.Quote(dir), remote.Quote(suffix),
		))
	}

	for _, cmd := range commands {
		if _, err := s.Run(ctx, cmd); err != nil {
			return errors.Wrap(err, "unable to rotate the logs")
		}
	}

	return nil
}
