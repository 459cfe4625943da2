// Package remote executes shell commands against the hosts of the cluster.
// callers only ever observe two failure modes: the host could not be reached
// (ConnectionError) or the command ran and exited non-zero (CommandError).
package remote

import (
	"context"
	"encoding/base64"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/james-lawrence/tpm/internal/errorsx"
)

// Target the host and user a command runs as.
type Target struct {
	Host string
	User string
	Port int
}

func (t Target) String() string {
	if t.User == "" {
		return t.Host
	}

	return fmt.Sprintf("%s@%s", t.User, t.Host)
}

// Result of a command that ran to completion.
type Result struct {
	Stdout   string
	ExitCode int
}

// Executor runs a command on the target.
type Executor interface {
	Execute(ctx context.Context, t Target, command string) (Result, error)
}

// ExecutorFunc pure function executor.
type ExecutorFunc func(ctx context.Context, t Target, command string) (Result, error)

// Execute implements Executor.
func (t ExecutorFunc) Execute(ctx context.Context, target Target, command string) (Result, error) {
	return t(ctx, target, command)
}

// ConnectionError the host could not be reached.
type ConnectionError struct {
	Host  string
	Cause error
}

func (t ConnectionError) Error() string {
	return fmt.Sprintf("unable to connect to %s: %v", t.Host, t.Cause)
}

func (t ConnectionError) Unwrap() error {
	return t.Cause
}

// CommandError the command ran and returned a non-zero exit code.
type CommandError struct {
	Host     string
	Command  string
	ExitCode int
	Stdout   string
	Stderr   string
}

func (t CommandError) Error() string {
	msg := fmt.Sprintf("'%s' failed on %s with exit code %d", t.Command, t.Host, t.ExitCode)
	if output := strings.TrimSpace(t.Stderr + "\n" + t.Stdout); output != "" {
		msg += ": " + output
	}

	return msg
}

// IsConnection checks if the error is a ConnectionError.
func IsConnection(err error) bool {
	var ce ConnectionError
	return errors.As(err, &ce)
}

// IsCommand checks if the error is a CommandError.
func IsCommand(err error) bool {
	var ce CommandError
	return errors.As(err, &ce)
}

// AsCommand extracts the CommandError from the chain.
func AsCommand(err error) (ce CommandError, ok bool) {
	return ce, errors.As(err, &ce)
}

// Timeout bounds every command by the provided duration. an elapsed deadline
// is reported as a timeout error.
func Timeout(e Executor, d time.Duration) Executor {
	if d <= 0 {
		return e
	}

	return ExecutorFunc(func(ctx context.Context, t Target, command string) (r Result, err error) {
		deadline, done := context.WithTimeout(ctx, d)
		defer done()

		if r, err = e.Execute(deadline, t, command); err == nil {
			return r, nil
		}

		if errors.Is(deadline.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return r, errorsx.Timedout(errors.Wrapf(err, "'%s' on %s timed out after %s", command, t, d), d)
		}

		return r, err
	})
}

// Output runs the command and returns its trimmed stdout.
func Output(ctx context.Context, e Executor, t Target, command string) (string, error) {
	r, err := e.Execute(ctx, t, command)
	return strings.TrimSpace(r.Stdout), err
}

// Succeeded runs the command and reports whether it exited zero. connection
// failures are still returned as errors.
func Succeeded(ctx context.Context, e Executor, t Target, command string) (bool, error) {
	_, err := e.Execute(ctx, t, command)
	switch {
	case err == nil:
		return true, nil
	case IsCommand(err):
		return false, nil
	default:
		return false, err
	}
}

// WriteFile atomically replaces the file at path on the target with the content.
func WriteFile(ctx context.Context, e Executor, t Target, path string, content []byte, mode uint32) error {
	tmp := path + ".tmp"
	cmd := fmt.Sprintf(
		"mkdir -p %s && echo %s | base64 -d > %s && chmod %s %s && mv -f %s %s",
		Quote(filepath.Dir(path)),
		Quote(base64.StdEncoding.EncodeToString(content)),
		Quote(tmp),
		strconv.FormatUint(uint64(mode), 8),
		Quote(tmp),
		Quote(tmp),
		Quote(path),
	)

	_, err := e.Execute(ctx, t, cmd)
	return errors.Wrapf(err, "failed to write %s on %s", path, t.Host)
}

// Quote the string for use as a single shell word.
func Quote(s string) string {
	if s == "" {
		return "''"
	}

	if strings.IndexFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || strings.ContainsRune("-_./:=@%+,", r))
	}) == -1 {
		return s
	}

	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}
