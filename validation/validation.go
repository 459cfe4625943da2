// Package validation runs the pre-flight checks that must pass before any
// destructive action is taken against the cluster.
package validation

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"
	"slices"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/james-lawrence/tpm/cluster"
	"github.com/james-lawrence/tpm/internal/errorsx"
	"github.com/james-lawrence/tpm/properties"
	"github.com/james-lawrence/tpm/remote"
)

// Severity of a validation entry.
type Severity int

// severities in increasing order.
const (
	Info Severity = iota
	Warning
	Fatal
)

func (t Severity) String() string {
	switch t {
	case Fatal:
		return "fatal"
	case Warning:
		return "warning"
	default:
		return "info"
	}
}

// Description identifies a check. Severity applies to the entries recorded with
// Recorder.Error and to errors returned by Validate. a Fatal check producing a
// fatal entry stops the pipeline.
type Description struct {
	Name       string
	Title      string
	Severity   Severity
	Weight     int
	Properties []properties.Path
}

// Env the environment a check validates.
type Env struct {
	*cluster.Context
	Host cluster.Host
}

// Run the command on the host being validated.
func (t Env) Run(ctx context.Context, command string) (string, error) {
	return remote.Output(ctx, t.Executor, t.Host.Target(), command)
}

// Property of the host being validated.
func (t Env) Property(key, fallback string) string {
	return t.Properties.StringOr(t.Host.Path(key), fallback)
}

// Check a single pre-flight check bound to a host.
type Check interface {
	Describe() Description
	Enabled(Env) bool
	Validate(ctx context.Context, env Env, r *Recorder) error
}

// Factory builds the check for the host.
type Factory func(cluster.Host) Check

// Bound a check and the host it validates.
type Bound struct {
	Check
	Host cluster.Host
}

// Bind every factory to every host. the result is ordered by weight, ties
// keep declaration order.
func Bind(factories []Factory, hosts []cluster.Host) (bound []Bound) {
	for _, f := range factories {
		for _, h := range hosts {
			bound = append(bound, Bound{Check: f(h), Host: h})
		}
	}

	sort.SliceStable(bound, func(i, j int) bool {
		return bound[i].Describe().Weight < bound[j].Describe().Weight
	})

	return bound
}

// Entry a message produced by a check.
type Entry struct {
	Severity Severity
	Message  string
	Help     string
	Check    string
	Host     string
}

func (t Entry) String() string {
	return fmt.Sprintf("%s: %s (%s): %s", t.Severity, t.Host, t.Check, t.Message)
}

// Recorder collects the entries of a single check.
type Recorder struct {
	d       Description
	host    string
	entries []Entry
	help    []string
}

func (t *Recorder) record(s Severity, format string, args ...interface{}) {
	t.entries = append(t.entries, Entry{
		Severity: s,
		Message:  fmt.Sprintf(format, args...),
		Check:    t.d.Title,
		Host:     t.host,
	})
}

// Error records a message at the check's severity.
func (t *Recorder) Error(format string, args ...interface{}) {
	t.record(t.d.Severity, format, args...)
}

// Fatal records a message that blocks commitment without stopping the pipeline
// unless the check itself is fatal.
func (t *Recorder) Fatal(format string, args ...interface{}) {
	t.record(Fatal, format, args...)
}

// Warning records a warning.
func (t *Recorder) Warning(format string, args ...interface{}) {
	t.record(Warning, format, args...)
}

// Info records an informational message.
func (t *Recorder) Info(format string, args ...interface{}) {
	t.record(Info, format, args...)
}

// Help attaches remediation text to every entry of the check.
func (t *Recorder) Help(text ...string) {
	t.help = append(t.help, text...)
}

// Entries recorded so far.
func (t *Recorder) Entries() []Entry {
	return t.entries
}

func (t *Recorder) finish() []Entry {
	if len(t.help) == 0 {
		return t.entries
	}

	help := strings.Join(t.help, "\n")
	for i := range t.entries {
		if t.entries[i].Help == "" {
			t.entries[i].Help = help
		} else {
			t.entries[i].Help += "\n" + help
		}
	}

	return t.entries
}

func (t *Recorder) fatal() bool {
	for _, e := range t.entries {
		if e.Severity == Fatal {
			return true
		}
	}

	return false
}

// Report the result of the pipeline.
type Report struct {
	Entries        []Entry
	Ran            int
	Skipped        int
	ShortCircuited bool
}

func (t Report) filter(s Severity) (result []Entry) {
	for _, e := range t.Entries {
		if e.Severity == s {
			result = append(result, e)
		}
	}

	return result
}

// Fatal entries.
func (t Report) Fatal() []Entry {
	return t.filter(Fatal)
}

// Warnings entries.
func (t Report) Warnings() []Entry {
	return t.filter(Warning)
}

// Infos entries.
func (t Report) Infos() []Entry {
	return t.filter(Info)
}

// Blocked when any fatal entry was recorded.
func (t Report) Blocked() bool {
	return len(t.Fatal()) > 0
}

// Err a user friendly error when the report blocks commitment.
func (t Report) Err() error {
	fatal := t.Fatal()
	if len(fatal) == 0 {
		return nil
	}

	return errorsx.UserFriendly(errors.Errorf("validation failed with %d fatal error(s), first: %s", len(fatal), fatal[0]))
}

// Option for the pipeline.
type Option func(*pipeline)

// OptionObserver invoked after every check that ran.
func OptionObserver(o func(Bound, []Entry)) Option {
	return func(p *pipeline) {
		p.observe = o
	}
}

type pipeline struct {
	observe func(Bound, []Entry)
}

// Run the bound checks in order. disabled checks and checks the host opted
// out of are skipped. failures inside a check are recorded as entries
// against that check.
func Run(ctx context.Context, cctx *cluster.Context, bound []Bound, options ...Option) (r Report) {
	p := pipeline{
		observe: func(Bound, []Entry) {},
	}

	for _, opt := range options {
		opt(&p)
	}

	for _, b := range bound {
		d := b.Describe()
		env := Env{Context: cctx, Host: b.Host}

		if err := ctx.Err(); err != nil {
			r.Entries = append(r.Entries, Entry{Severity: Fatal, Message: fmt.Sprintf("validation interrupted: %v", err), Check: d.Title, Host: b.Host.Alias})
			r.ShortCircuited = true
			return r
		}

		if skipped(env, d) {
			cctx.Logger.Println(b.Host.Alias, "skipping", d.Name)
			r.Skipped++
			continue
		}

		if !enabled(b.Check, env) {
			continue
		}

		rec := &Recorder{d: d, host: b.Host.Alias}
		if err := validate(ctx, b.Check, env, rec); err != nil {
			rec.record(d.Severity, "%s", err)
			if help := errorsx.Help(err); help != "" {
				rec.entries[len(rec.entries)-1].Help = help
			}
		}

		r.Ran++
		entries := rec.finish()
		r.Entries = append(r.Entries, entries...)
		p.observe(b, entries)

		if d.Severity == Fatal && rec.fatal() {
			r.ShortCircuited = true
			return r
		}
	}

	return r
}

func skipped(env Env, d Description) bool {
	names, err := env.Properties.Strings(env.Host.Path(cluster.KeySkipChecks))
	if err != nil {
		return false
	}

	return slices.Contains(names, d.Name)
}

func enabled(c Check, env Env) (ok bool) {
	defer func() {
		if recovered := recover(); recovered != nil {
			log.Printf("%s enabled check panicked: %v\n%s", c.Describe().Name, recovered, debug.Stack())
			ok = true
		}
	}()

	return c.Enabled(env)
}

func validate(ctx context.Context, c Check, env Env, rec *Recorder) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = errors.Errorf("check failed unexpectedly: %v", recovered)
			log.Printf("%s panicked: %v\n%s", c.Describe().Name, recovered, debug.Stack())
		}
	}()

	return c.Validate(ctx, env, rec)
}
