package remote

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
	"golang.org/x/time/rate"

	"github.com/james-lawrence/tpm/internal/errorsx"
	"github.com/james-lawrence/tpm/internal/sshx"
)

// SSHOption options for the ssh executor.
type SSHOption func(*SSH) error

// SSHOptionIdentity authenticate with the private key files.
func SSHOptionIdentity(paths ...string) SSHOption {
	return func(s *SSH) error {
		for _, path := range paths {
			signer, err := sshx.Signer(path)
			if err != nil {
				return err
			}

			s.auth = append(s.auth, ssh.PublicKeys(signer))
		}

		return nil
	}
}

// SSHOptionAgent authenticate with the keys held by the agent listening on
// the socket. an empty socket is ignored.
func SSHOptionAgent(socket string) SSHOption {
	return func(s *SSH) error {
		a, err := sshx.Agent(socket)
		if err != nil || a == nil {
			return err
		}

		s.auth = append(s.auth, ssh.PublicKeysCallback(a.Signers))
		return nil
	}
}

// SSHOptionKnownHosts verify host keys against the known_hosts files.
func SSHOptionKnownHosts(paths ...string) SSHOption {
	return func(s *SSH) (err error) {
		if s.hostkeys, err = knownhosts.New(paths...); err != nil {
			return errors.Wrap(err, "unable to load known hosts")
		}

		return nil
	}
}

// SSHOptionInsecure disables host key verification.
func SSHOptionInsecure(s *SSH) error {
	s.hostkeys = ssh.InsecureIgnoreHostKey()
	return nil
}

// SSHOptionPort default port used when the target does not specify one.
func SSHOptionPort(port int) SSHOption {
	return func(s *SSH) error {
		s.port = port
		return nil
	}
}

// SSHOptionDialTimeout bounds connection establishment.
func SSHOptionDialTimeout(d time.Duration) SSHOption {
	return func(s *SSH) error {
		s.timeout = d
		return nil
	}
}

// SSHOptionDialRate limits how quickly new connections are opened.
func SSHOptionDialRate(r rate.Limit, burst int) SSHOption {
	return func(s *SSH) error {
		s.limiter = rate.NewLimiter(r, burst)
		return nil
	}
}

// NewSSH executor. connections are pooled by user@host:port and reused by
// every command targeting them until Close.
func NewSSH(options ...SSHOption) (_ *SSH, err error) {
	s := &SSH{
		port:    22,
		timeout: 10 * time.Second,
		limiter: rate.NewLimiter(rate.Every(50*time.Millisecond), 4),
		clients: make(map[string]*ssh.Client),
	}

	for _, opt := range options {
		if err = opt(s); err != nil {
			return nil, err
		}
	}

	if s.hostkeys == nil {
		return nil, errors.New("host key verification is not configured, provide known hosts or enable insecure mode")
	}

	if len(s.auth) == 0 {
		return nil, errors.New("no ssh authentication methods available, provide an identity or an ssh agent")
	}

	return s, nil
}

// SSH executes commands over ssh.
type SSH struct {
	m        sync.Mutex
	auth     []ssh.AuthMethod
	hostkeys ssh.HostKeyCallback
	port     int
	timeout  time.Duration
	limiter  *rate.Limiter
	clients  map[string]*ssh.Client
}

// Execute implements Executor.
func (t *SSH) Execute(ctx context.Context, target Target, command string) (r Result, err error) {
	var (
		client  *ssh.Client
		session *ssh.Session
		stdout  bytes.Buffer
		stderr  bytes.Buffer
	)

	if client, err = t.client(ctx, target); err != nil {
		return r, ConnectionError{Host: target.Host, Cause: err}
	}

	if session, err = client.NewSession(); err != nil {
		t.drop(target, client)
		return r, ConnectionError{Host: target.Host, Cause: err}
	}
	defer session.Close()

	session.Stdout = &stdout
	session.Stderr = &stderr

	done := make(chan error, 1)
	go func() {
		done <- session.Run(command)
	}()

	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		return r, errors.Wrapf(ctx.Err(), "'%s' on %s interrupted", command, target)
	case err = <-done:
	}

	r.Stdout = strings.TrimSpace(stdout.String())

	var (
		exit    *ssh.ExitError
		missing *ssh.ExitMissingError
	)

	switch {
	case err == nil:
		return r, nil
	case errors.As(err, &exit):
		r.ExitCode = exit.ExitStatus()
	case errors.As(err, &missing):
		r.ExitCode = -1
	default:
		t.drop(target, client)
		return r, ConnectionError{Host: target.Host, Cause: err}
	}

	return r, CommandError{
		Host:     target.Host,
		Command:  command,
		ExitCode: r.ExitCode,
		Stdout:   r.Stdout,
		Stderr:   strings.TrimSpace(stderr.String()),
	}
}

// Close every pooled connection.
func (t *SSH) Close() error {
	t.m.Lock()
	defer t.m.Unlock()

	errs := make([]error, 0, len(t.clients))
	for key, c := range t.clients {
		errs = append(errs, c.Close())
		delete(t.clients, key)
	}

	return errorsx.Compact(errs...)
}

func (t *SSH) address(target Target) string {
	port := target.Port
	if port == 0 {
		port = t.port
	}

	return net.JoinHostPort(target.Host, strconv.Itoa(port))
}

func (t *SSH) key(target Target) string {
	return fmt.Sprintf("%s@%s", target.User, t.address(target))
}

func (t *SSH) client(ctx context.Context, target Target) (_ *ssh.Client, err error) {
	var (
		conn  net.Conn
		cconn ssh.Conn
		chans <-chan ssh.NewChannel
		reqs  <-chan *ssh.Request
	)

	t.m.Lock()
	c, ok := t.clients[t.key(target)]
	t.m.Unlock()

	if ok {
		return c, nil
	}

	if err = t.limiter.Wait(ctx); err != nil {
		return nil, errors.WithStack(err)
	}

	addr := t.address(target)
	config := &ssh.ClientConfig{
		User:            target.User,
		Auth:            t.auth,
		HostKeyCallback: t.hostkeys,
		Timeout:         t.timeout,
	}

	dialer := net.Dialer{Timeout: t.timeout}
	if conn, err = dialer.DialContext(ctx, "tcp", addr); err != nil {
		return nil, errors.WithStack(err)
	}

	if cconn, chans, reqs, err = ssh.NewClientConn(conn, addr, config); err != nil {
		conn.Close()
		return nil, errors.Wrapf(err, "ssh handshake with %s failed", addr)
	}

	c = ssh.NewClient(cconn, chans, reqs)

	t.m.Lock()
	defer t.m.Unlock()

	// another command raced us to the same host, keep the first connection.
	if existing, ok := t.clients[t.key(target)]; ok {
		_ = c.Close()
		return existing, nil
	}

	t.clients[t.key(target)] = c

	return c, nil
}

func (t *SSH) drop(target Target, c *ssh.Client) {
	t.m.Lock()
	defer t.m.Unlock()

	if current, ok := t.clients[t.key(target)]; ok && current == c {
		delete(t.clients, t.key(target))
	}

	_ = c.Close()
}
