package remote

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/subosito/gotenv"

	"github.com/james-lawrence/tpm/internal/envx"
)

// LocalOption options for the local executor.
type LocalOption func(*Local)

// LocalOptionShell override the shell used to interpret commands.
func LocalOptionShell(s string) LocalOption {
	return func(l *Local) {
		l.shell = s
	}
}

// LocalOptionEnviron append environment variables to every command.
func LocalOptionEnviron(environ ...string) LocalOption {
	return func(l *Local) {
		l.environ = append(l.environ, environ...)
	}
}

// LocalOptionEnvironFile loads additional environment variables from the
// file. missing files are ignored.
func LocalOptionEnvironFile(path string) LocalOption {
	return func(l *Local) {
		env, err := environFromFile(path)
		if err != nil {
			l.failed = err
			return
		}

		l.environ = append(l.environ, env...)
	}
}

// LocalOptionDirectory the working directory of the commands.
func LocalOptionDirectory(dir string) LocalOption {
	return func(l *Local) {
		l.dir = dir
	}
}

// NewLocal executor that runs commands on this machine.
func NewLocal(options ...LocalOption) Local {
	l := Local{
		shell: envx.String("/bin/sh", "SHELL"),
	}

	for _, opt := range options {
		opt(&l)
	}

	return l
}

// Local executes commands using the local shell. the target user is ignored,
// commands run as the current user.
type Local struct {
	shell   string
	dir     string
	environ []string
	failed  error
}

// Execute implements Executor.
func (t Local) Execute(ctx context.Context, target Target, command string) (r Result, err error) {
	var (
		stdout bytes.Buffer
		stderr bytes.Buffer
	)

	if t.failed != nil {
		return r, ConnectionError{Host: target.Host, Cause: t.failed}
	}

	cmd := exec.CommandContext(ctx, t.shell, "-c", command)
	cmd.Dir = t.dir
	cmd.Env = append(os.Environ(), t.environ...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	err = cmd.Run()
	r.Stdout = strings.TrimSpace(stdout.String())

	if cause := ctx.Err(); cause != nil {
		return r, errors.Wrapf(cause, "'%s' interrupted", command)
	}

	var exit *exec.ExitError
	switch {
	case err == nil:
		return r, nil
	case errors.As(err, &exit):
		r.ExitCode = exit.ExitCode()
		return r, CommandError{
			Host:     target.Host,
			Command:  command,
			ExitCode: r.ExitCode,
			Stdout:   r.Stdout,
			Stderr:   strings.TrimSpace(stderr.String()),
		}
	default:
		return r, ConnectionError{Host: target.Host, Cause: err}
	}
}

func environFromFile(path string) (environ []string, err error) {
	var (
		src *os.File
		env gotenv.Env
	)

	if path == "" {
		return environ, nil
	}

	if src, err = os.Open(path); os.IsNotExist(err) {
		return environ, nil
	} else if err != nil {
		return environ, errors.WithStack(err)
	}
	defer src.Close()

	if env, err = gotenv.StrictParse(src); err != nil {
		return environ, errors.Wrapf(err, "invalid environment file %s", path)
	}

	for k, v := range env {
		environ = append(environ, k+"="+v)
	}

	return environ, nil
}
