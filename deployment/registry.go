package deployment

import (
	"fmt"
	"sort"

	"github.com/james-lawrence/tpm/cluster"
)

// PlanningError a defect in a deployment module detected before anything runs.
type PlanningError struct {
	Module string
	Step   string
	Reason string
}

func (t PlanningError) Error() string {
	return fmt.Sprintf("invalid deployment plan: module %s step %s: %s", t.Module, t.Step, t.Reason)
}

// NewRegistry empty registry.
func NewRegistry() *Registry {
	return &Registry{m: make(map[string]Func)}
}

// Registry step name to implementation.
type Registry struct {
	m map[string]Func
}

// Register the implementation of the named step.
func (t *Registry) Register(name string, fn Func) error {
	if _, ok := t.m[name]; ok {
		return PlanningError{Step: name, Reason: "registered more than once"}
	}

	t.m[name] = fn
	return nil
}

// MustRegister panics if the step is already registered.
func (t *Registry) MustRegister(name string, fn Func) *Registry {
	if err := t.Register(name, fn); err != nil {
		panic(err)
	}

	return t
}

// Lookup the implementation.
func (t *Registry) Lookup(name string) (Func, bool) {
	fn, ok := t.m[name]
	return fn, ok
}

// Names of the registered steps sorted.
func (t *Registry) Names() (names []string) {
	for name := range t.m {
		names = append(names, name)
	}

	sort.Strings(names)
	return names
}

// Module a named set of steps applying to the hosts matching its predicate.
type Module struct {
	Name    string
	Applies func(cluster.Host) bool
	Steps   []Step
}

// Hosts the module applies to in the order given.
func (t Module) Hosts(hosts []cluster.Host) (matched []cluster.Host) {
	for _, h := range hosts {
		if t.Applies == nil || t.Applies(h) {
			matched = append(matched, h)
		}
	}

	return matched
}

// ForRoles predicate matching hosts with any of the roles.
func ForRoles(roles ...cluster.Role) func(cluster.Host) bool {
	return func(h cluster.Host) bool {
		return h.Roles.Any(roles...)
	}
}

// Active the modules applying to at least one host.
func Active(modules []Module, hosts []cluster.Host) (active []Module) {
	for _, m := range modules {
		if len(m.Hosts(hosts)) > 0 {
			active = append(active, m)
		}
	}

	return active
}
