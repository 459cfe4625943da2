package steps

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/james-lawrence/tpm/cluster"
	"github.com/james-lawrence/tpm/deployment"
	"github.com/james-lawrence/tpm/internal/errorsx"
	"github.com/james-lawrence/tpm/internal/logx"
	"github.com/james-lawrence/tpm/properties"
	"github.com/james-lawrence/tpm/remote"
)

// services managed by the generated scripts for the host, in start order.
func services(h cluster.Host) (result []component) {
	for _, c := range []component{replicator, manager, connector} {
		if h.Roles.Has(c.role) {
			result = append(result, c)
		}
	}

	return result
}

func script(description string, body ...string) []byte {
	lines := append([]string{
		"#!/bin/bash",
		"# " + description,
		"THOME=`dirname $0`/../..",
		"cd $THOME",
	}, body...)
	lines = append(lines, fmt.Sprintf("# AUTO-CONFIGURED: %s", time.Now().UTC().Format(time.RFC3339)))

	return []byte(strings.Join(lines, "\n") + "\n")
}

func relative(c component) string {
	return filepath.Join(c.dir, "bin", c.script)
}

// applyConfigServices generates the scripts controlling every service
// installed on the host.
func applyConfigServices(ctx context.Context, s deployment.Scope) (err error) {
	var (
		start, stop, deploy, undeploy []string
	)

	svcs := services(s.Host)
	for _, c := range svcs {
		initd := "/etc/init.d/t" + c.script
		start = append(start, relative(c)+" start")
		deploy = append(deploy,
			s.Root(fmt.Sprintf("ln -fs $PWD/%s %s", relative(c), initd)),
			fmt.Sprintf("if command -v chkconfig >/dev/null; then %s; elif command -v update-rc.d >/dev/null; then %s; fi",
				s.Root("/sbin/chkconfig --add t"+c.script), s.Root("update-rc.d t"+c.script+" defaults")),
		)
		undeploy = append(undeploy,
			fmt.Sprintf("if command -v chkconfig >/dev/null; then %s; elif command -v update-rc.d >/dev/null; then %s; fi",
				s.Root("/sbin/chkconfig --del t"+c.script), s.Root("update-rc.d -f t"+c.script+" remove")),
			s.Root("rm -f "+initd),
		)
	}

	for i := len(svcs) - 1; i >= 0; i-- {
		stop = append(stop, relative(svcs[i])+" stop")
	}

	bin := filepath.Join(s.Host.Current(), "cluster-home", "bin")
	scripts := []struct {
		name    string
		content []byte
	}{
		{name: "startall", content: script("Start all services using local service scripts", start...)},
		{name: "stopall", content: script("Stop all services using local service scripts", stop...)},
		{name: "deployall", content: script("Install services into /etc directories", deploy...)},
		{name: "undeployall", content: script("Remove services from /etc directories", undeploy...)},
	}

	for _, sc := range scripts {
		dst := filepath.Join(bin, sc.name)
		if err = remote.WriteFile(ctx, s.Executor, s.Host.Target(), dst, sc.content, 0755); err != nil {
			return errors.Wrapf(err, "unable to write %s", dst)
		}

		s.Logger.Println("generated", dst)
	}

	return nil
}

// stopReplicationServices stops every running service of the active release
// in reverse start order. hosts without an active release have nothing to stop.
func stopReplicationServices(ctx context.Context, s deployment.Scope) error {
	for _, c := range []component{connector, manager, replicator} {
		installed, err := c.installed(ctx, s)
		if err != nil {
			return err
		}

		if !installed {
			continue
		}

		running, err := c.running(ctx, s)
		if err != nil {
			return err
		}

		if !running {
			continue
		}

		s.Logger.Println("stopping the", c.script)
		if err = c.do(ctx, s, "stop"); err != nil {
			return errors.Wrapf(err, "unable to stop the %s", c.script)
		}
	}

	return nil
}

// updateMetadata records the release the host now points at.
func updateMetadata(ctx context.Context, s deployment.Scope) error {
	target, err := s.Run(ctx, fmt.Sprintf("readlink %s", remote.Quote(s.Host.Current())))
	if err != nil {
		return errors.Wrap(err, "unable to read the active release")
	}

	return s.Update(func(e properties.Editor) error {
		return e.SetString(s.Host.Path(cluster.KeyDeployedRelease), filepath.Base(target))
	})
}

// deployServices installs the services for start on system boot. an install
// failure is only reported, the services may already be installed.
func deployServices(ctx context.Context, s deployment.Scope) error {
	if !s.Properties.Bool(s.Host.Path(cluster.KeyInstallServices)) {
		return nil
	}

	s.Logger.Println("installing services")
	out, err := s.Run(ctx, s.Root(filepath.Join(s.Host.Current(), "cluster-home", "bin", "deployall")))
	if err != nil {
		s.Logger.Println("unable to install the services for start on system boot, this may occur if the services have already been installed:", err)
		return nil
	}

	logx.Lines(s.Logger, out)
	return nil
}

// startReplicationServices starts the manager then the replicator when they
// aren't already running.
func startReplicationServices(always bool) deployment.Func {
	return func(ctx context.Context, s deployment.Scope) error {
		if !always && !started(s) {
			s.Logger.Println("services are not configured to start")
			return nil
		}

		for _, c := range []component{manager, replicator} {
			if !s.Host.Roles.Has(c.role) {
				continue
			}

			running, err := c.running(ctx, s)
			if err != nil {
				return err
			}

			if running {
				continue
			}

			s.Logger.Println("starting the", c.script)
			if err = c.do(ctx, s, "start"); err != nil {
				return errors.Wrapf(err, "unable to start the %s", c.script)
			}
		}

		return nil
	}
}

// startConnector restarts a running connector or starts a stopped one.
func startConnector(ctx context.Context, s deployment.Scope) error {
	if !s.Host.Roles.Has(connector.role) || !started(s) {
		return nil
	}

	running, err := connector.running(ctx, s)
	if err != nil {
		return err
	}

	if running {
		s.Logger.Println("restarting the connector")
		return connector.do(ctx, s, "restart")
	}

	s.Logger.Println("starting the connector")
	return connector.do(ctx, s, "start")
}

var unreachable = regexp.MustCompile(`HOST ([a-zA-Z0-9\-\.]+)/[0-9\.]+: NOT REACHABLE`)

// checkPing warns about hosts the manager cannot reach and fails when a
// replication service reports an error.
func checkPing(ctx context.Context, s deployment.Scope) error {
	running, err := manager.running(ctx, s)
	if err != nil {
		return err
	}

	if running {
		out, err := cctrl(ctx, s, "ping")
		if err != nil {
			return err
		}

		for _, match := range unreachable.FindAllStringSubmatch(out, -1) {
			s.Logger.Println("warning: unable to ping the host on", match[1])
		}
	}

	if running, err = replicator.running(ctx, s); err != nil {
		return err
	} else if !running {
		return nil
	}

	out, err := s.Run(ctx, fmt.Sprintf("%s services | grep ERROR | wc -l", remote.Quote(s.Host.Script(replicator.dir, "trepctl"))))
	if err != nil {
		return errors.Wrap(err, "unable to check if the replication services are working properly")
	}

	if n, _ := strconv.Atoi(strings.TrimSpace(out)); n > 0 {
		return errorsx.WithHelp(
			errors.New("at least one replication service has experienced an error"),
			fmt.Sprintf("run '%s services' on %s for details", s.Host.Script(replicator.dir, "trepctl"), s.Host.Name),
		)
	}

	return nil
}
