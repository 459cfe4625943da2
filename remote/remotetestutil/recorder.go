// Package remotetestutil scripted executors for tests.
package remotetestutil

import (
	"context"
	"strings"
	"sync"

	"github.com/james-lawrence/tpm/remote"
)

// Call a command received by the recorder.
type Call struct {
	Target  remote.Target
	Command string
}

type response struct {
	host      string
	substring string
	result    remote.Result
	err       error
	fn        func(remote.Target, string) (remote.Result, error)
}

func (t response) matches(target remote.Target, command string) bool {
	return (t.host == "" || t.host == target.Host) && strings.Contains(command, t.substring)
}

// NewRecorder executor that records every command and replies with scripted
// results. unmatched commands succeed with empty output.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Recorder test double for remote.Executor.
type Recorder struct {
	m         sync.Mutex
	calls     []Call
	responses []response
}

// On scripts the result for commands on the host containing the substring.
// an empty host matches every host. later registrations take precedence.
func (t *Recorder) On(host, substring string, r remote.Result, err error) *Recorder {
	t.m.Lock()
	defer t.m.Unlock()
	t.responses = append(t.responses, response{host: host, substring: substring, result: r, err: err})
	return t
}

// OnFunc scripts a dynamic response.
func (t *Recorder) OnFunc(host, substring string, fn func(remote.Target, string) (remote.Result, error)) *Recorder {
	t.m.Lock()
	defer t.m.Unlock()
	t.responses = append(t.responses, response{host: host, substring: substring, fn: fn})
	return t
}

// Fail scripts a non-zero exit for matching commands.
func (t *Recorder) Fail(host, substring string, code int) *Recorder {
	return t.OnFunc(host, substring, func(target remote.Target, cmd string) (remote.Result, error) {
		r := remote.Result{ExitCode: code}
		return r, remote.CommandError{Host: target.Host, Command: cmd, ExitCode: code}
	})
}

// Unreachable scripts a connection failure for every command on the host.
func (t *Recorder) Unreachable(host string) *Recorder {
	return t.OnFunc(host, "", func(target remote.Target, cmd string) (remote.Result, error) {
		return remote.Result{}, remote.ConnectionError{Host: target.Host, Cause: context.DeadlineExceeded}
	})
}

// Execute implements remote.Executor.
func (t *Recorder) Execute(ctx context.Context, target remote.Target, command string) (remote.Result, error) {
	t.m.Lock()
	t.calls = append(t.calls, Call{Target: target, Command: command})
	var matched *response
	for i := len(t.responses) - 1; i >= 0; i-- {
		if t.responses[i].matches(target, command) {
			matched = &t.responses[i]
			break
		}
	}
	t.m.Unlock()

	if err := ctx.Err(); err != nil {
		return remote.Result{}, err
	}

	if matched == nil {
		return remote.Result{}, nil
	}

	if matched.fn != nil {
		return matched.fn(target, command)
	}

	return matched.result, matched.err
}

// Calls every command received in order.
func (t *Recorder) Calls() []Call {
	t.m.Lock()
	defer t.m.Unlock()
	return append([]Call(nil), t.calls...)
}

// Commands received by the host in order.
func (t *Recorder) Commands(host string) (commands []string) {
	for _, c := range t.Calls() {
		if c.Target.Host == host {
			commands = append(commands, c.Command)
		}
	}

	return commands
}

// Ran reports whether the host received a command containing the substring.
func (t *Recorder) Ran(host, substring string) bool {
	for _, c := range t.Commands(host) {
		if strings.Contains(c, substring) {
			return true
		}
	}

	return false
}
