// Package ux renders validation results, execution progress and reports
// for the operator.
package ux

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/logrusorgru/aurora"
	"github.com/mattn/go-isatty"
	"github.com/pterm/pterm"

	"github.com/james-lawrence/tpm/deployment"
	"github.com/james-lawrence/tpm/internal/x/timex"
	"github.com/james-lawrence/tpm/topology"
	"github.com/james-lawrence/tpm/validation"
)

// Option for the printer.
type Option func(*Printer)

// OptionWriter destination of the output.
func OptionWriter(w io.Writer) Option {
	return func(p *Printer) {
		p.out = w
	}
}

// OptionColor force colours on or off.
func OptionColor(enabled bool) Option {
	return func(p *Printer) {
		p.au = aurora.NewAurora(enabled)
	}
}

// New printer writing to stderr, coloured when stderr is a terminal.
func New(options ...Option) Printer {
	p := Printer{
		out: os.Stderr,
		au:  aurora.NewAurora(isatty.IsTerminal(os.Stderr.Fd())),
	}

	for _, opt := range options {
		opt(&p)
	}

	p.Logger = log.New(p.out, "[tpm] ", 0)
	return p
}

// Printer operator facing output.
type Printer struct {
	Logger *log.Logger
	out    io.Writer
	au     aurora.Aurora
}

func (t Printer) outcome(o deployment.Outcome) aurora.Value {
	switch o {
	case deployment.Succeeded:
		return t.au.Green(o)
	case deployment.Warned:
		return t.au.Yellow(o)
	case deployment.Failed:
		return t.au.Red(o)
	default:
		return t.au.Cyan(o)
	}
}

func (t Printer) severity(s validation.Severity) aurora.Value {
	switch s {
	case validation.Fatal:
		return t.au.Red(s)
	case validation.Warning:
		return t.au.Yellow(s)
	default:
		return t.au.Green(s)
	}
}

func (t Printer) table(data pterm.TableData) {
	if len(data) < 2 {
		return
	}

	rendered, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		t.Logger.Println("unable to render table", err)
		return
	}

	fmt.Fprintln(t.out, rendered)
}

// Observer progress of the steps as they run.
func (t Printer) Observer() func(deployment.Event) {
	return func(e deployment.Event) {
		if !e.Finished {
			t.Logger.Printf("%s %s started\n", e.Host.Alias, e.Step.Name)
			return
		}

		if e.Result.Err != nil {
			t.Logger.Printf("%s %s %s: %v\n", e.Host.Alias, e.Step.Name, t.outcome(e.Result.Outcome), e.Result.Err)
			return
		}

		t.Logger.Printf("%s %s %s %s\n", e.Host.Alias, e.Step.Name, t.outcome(e.Result.Outcome), timex.Rounded(e.Result.Duration))
	}
}

// ValidationObserver progress of the checks as they complete.
func (t Printer) ValidationObserver() func(validation.Bound, []validation.Entry) {
	return func(b validation.Bound, entries []validation.Entry) {
		worst := validation.Info
		for _, e := range entries {
			worst = max(worst, e.Severity)
		}

		t.Logger.Printf("%s %s %s\n", b.Host.Alias, b.Describe().Title, t.severity(worst))
	}
}

// Validation summary of the collected entries.
func (t Printer) Validation(r validation.Report) {
	data := pterm.TableData{{"severity", "host", "check", "message"}}
	for _, e := range append(r.Fatal(), r.Warnings()...) {
		data = append(data, []string{t.severity(e.Severity).String(), e.Host, e.Check, e.Message})
	}

	t.table(data)

	for _, e := range r.Fatal() {
		if e.Help != "" {
			t.Logger.Printf("%s %s: %s\n", e.Host, e.Check, strings.ReplaceAll(e.Help, "\n", " "))
		}
	}

	summary := fmt.Sprintf("validation ran %d checks, skipped %d: %d errors, %d warnings", r.Ran, r.Skipped, len(r.Fatal()), len(r.Warnings()))
	if r.ShortCircuited {
		summary += " (stopped after a fatal check)"
	}

	if r.Blocked() {
		t.Logger.Println(t.au.Red(summary))
		return
	}

	t.Logger.Println(t.au.Green(summary))
}

// Report outcome of every step on every host.
func (t Printer) Report(r deployment.Report) {
	data := pterm.TableData{{"host", "step", "outcome", "duration", "message"}}
	byhost := r.ByHost()
	for _, host := range r.Hosts() {
		for _, result := range byhost[host] {
			message := ""
			if result.Err != nil {
				message = result.Err.Error()
			}

			data = append(data, []string{
				host,
				result.Step,
				t.outcome(result.Outcome).String(),
				timex.Rounded(result.Duration),
				message,
			})
		}
	}

	t.table(data)

	if failure, ok := r.Failure(); ok {
		t.Logger.Println(t.au.Red(fmt.Sprintf("%s failed on %s, %d steps cancelled", failure.Step, failure.Host, r.Count(deployment.Cancelled))))
		if failure.Help != "" {
			t.Logger.Println(failure.Help)
		}
		return
	}

	if !r.Committed() {
		t.Logger.Println(t.au.Red(fmt.Sprintf("interrupted, %d steps cancelled", r.Count(deployment.Cancelled))))
		return
	}

	t.Logger.Println(t.au.Green(fmt.Sprintf("completed %d steps with %d warnings", len(r.Results), r.Count(deployment.Warned))))
}

// Topology of the dataservice.
func (t Printer) Topology(s topology.Status) {
	fmt.Fprintf(t.out, "Service    : %s (%s)\n", s.Service, s.Type)
	fmt.Fprintf(t.out, "Coordinator: %s %s\n", s.Coordinator.Host, s.Coordinator.Mode)

	datasources := pterm.TableData{{"datasource", "role", "state"}}
	for _, name := range s.DataSourceNames() {
		m := s.DataSources[name]
		datasources = append(datasources, []string{name, m.Role, m.State})
	}
	t.table(datasources)

	replicators := pterm.TableData{{"replicator", "role", "state", "latency"}}
	for _, name := range s.ReplicatorNames() {
		m := s.Replicators[name]
		replicators = append(replicators, []string{name, m.Role, m.State, fmt.Sprintf("%.3fs", m.Latency)})
	}
	t.table(replicators)
}

// Dump verbose representation of the values.
func (t Printer) Dump(values ...interface{}) {
	spew.Fdump(t.out, values...)
}
