package deployment

import (
	"slices"
	"sort"

	"github.com/james-lawrence/tpm/cluster"
)

// Planned a step resolved to its implementation and hosts.
type Planned struct {
	Step
	Module string
	Fn     Func
	Hosts  []cluster.Host
}

func (t Planned) applies(h cluster.Host) bool {
	return slices.ContainsFunc(t.Hosts, func(c cluster.Host) bool { return c.Alias == h.Alias })
}

// Group the steps sharing a group id. a group is a barrier: every host
// completes it before the next group begins.
type Group struct {
	ID    int
	Steps []Planned
}

// Hosts participating in the group in first appearance order.
func (t Group) Hosts() (hosts []cluster.Host) {
	seen := make(map[string]bool)
	for _, s := range t.Steps {
		for _, h := range s.Hosts {
			if seen[h.Alias] {
				continue
			}

			seen[h.Alias] = true
			hosts = append(hosts, h)
		}
	}

	return hosts
}

// Plan the ordered groups of work.
type Plan struct {
	Groups []Group
}

// Steps in execution order.
func (t Plan) Steps() (steps []Planned) {
	for _, g := range t.Groups {
		steps = append(steps, g.Steps...)
	}

	return steps
}

// NewPlan merges the steps of the active modules in contribution order and
// orders them by group then weight. steps in the first group are scoped to
// the coordinator.
func NewPlan(modules []Module, hosts []cluster.Host, coordinator cluster.Host, registry *Registry) (p Plan, err error) {
	var (
		steps []Planned
		names = make(map[string]string)
	)

	for _, m := range Active(modules, hosts) {
		applicable := m.Hosts(hosts)

		for _, s := range m.Steps {
			if owner, ok := names[s.Name]; ok {
				return p, PlanningError{Module: m.Name, Step: s.Name, Reason: "already contributed by " + owner}
			}
			names[s.Name] = m.Name

			fn, ok := registry.Lookup(s.Name)
			if !ok {
				return p, PlanningError{Module: m.Name, Step: s.Name, Reason: "no implementation registered"}
			}

			planned := Planned{Step: s, Module: m.Name, Fn: fn, Hosts: applicable}
			if s.Group == FirstGroup {
				if !(Planned{Hosts: applicable}).applies(coordinator) {
					return p, PlanningError{Module: m.Name, Step: s.Name, Reason: "first group steps require the module to apply to the coordinator " + coordinator.Alias}
				}

				planned.Hosts = []cluster.Host{coordinator}
			}

			steps = append(steps, planned)
		}
	}

	sort.SliceStable(steps, func(i, j int) bool {
		if steps[i].Group != steps[j].Group {
			return steps[i].Group < steps[j].Group
		}

		return steps[i].Weight < steps[j].Weight
	})

	for _, s := range steps {
		if n := len(p.Groups); n == 0 || p.Groups[n-1].ID != s.Group {
			p.Groups = append(p.Groups, Group{ID: s.Group})
		}

		last := &p.Groups[len(p.Groups)-1]
		last.Steps = append(last.Steps, s)
	}

	return p, nil
}
