package cluster

import (
	"strings"

	"github.com/pkg/errors"
)

// Role a responsibility a host takes on within the cluster.
type Role uint8

const (
	// Replicator moves transactions between datasources.
	Replicator Role = iota
	// Manager supervises the replicators and datasources of a dataservice.
	Manager
	// Connector routes application traffic to the datasources.
	Connector
	// Datasource a database instance.
	Datasource
	// LastRole marks the maximum role value.
	LastRole
)

var roleNames = [...]string{
	Replicator: "replicator",
	Manager:    "manager",
	Connector:  "connector",
	Datasource: "datasource",
}

func (t Role) String() string {
	if t >= LastRole {
		return "unknown"
	}

	return roleNames[t]
}

// ParseRole from its name.
func ParseRole(s string) (Role, error) {
	for r, name := range roleNames {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return Role(r), nil
		}
	}

	return LastRole, errors.Errorf("unknown role: %s", s)
}

// NewRoles set containing the provided roles.
func NewRoles(roles ...Role) (set Roles) {
	for _, r := range roles {
		set |= 1 << r
	}

	return set
}

// ParseRoles from role names.
func ParseRoles(names ...string) (set Roles, err error) {
	for _, name := range names {
		var r Role

		if strings.TrimSpace(name) == "" {
			continue
		}

		if r, err = ParseRole(name); err != nil {
			return set, err
		}

		set |= NewRoles(r)
	}

	return set, nil
}

// Roles bitfield of roles.
type Roles uint8

// Has the role.
func (t Roles) Has(r Role) bool {
	return t&(1<<r) != 0
}

// Any of the roles.
func (t Roles) Any(roles ...Role) bool {
	return t&NewRoles(roles...) != 0
}

// Slice of roles in declaration order.
func (t Roles) Slice() (roles []Role) {
	for r := Replicator; r < LastRole; r++ {
		if t.Has(r) {
			roles = append(roles, r)
		}
	}

	return roles
}

// Names of the roles in declaration order.
func (t Roles) Names() (names []string) {
	for _, r := range t.Slice() {
		names = append(names, r.String())
	}

	return names
}

func (t Roles) String() string {
	return strings.Join(t.Names(), ",")
}
