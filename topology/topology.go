// Package topology reports the live state of a dataservice. it is only used
// for display and never drives deployment decisions.
package topology

import (
	"context"
	"sort"
	"strconv"

	"github.com/james-lawrence/tpm/internal/errorsx"
)

// Type of the dataservice.
type Type string

// known service types.
const (
	Replication Type = "replication"
	Physical    Type = "physical"
	Composite   Type = "composite"
)

// ErrUnavailable no resolver was able to report the topology.
const ErrUnavailable = errorsx.String("topology unavailable")

// Resolver reports the status of a dataservice.
type Resolver interface {
	Status(ctx context.Context, service string) (Status, error)
}

// ResolverFunc pure function resolver.
type ResolverFunc func(ctx context.Context, service string) (Status, error)

// Status implements Resolver.
func (t ResolverFunc) Status(ctx context.Context, service string) (Status, error) {
	return t(ctx, service)
}

// Coordinator of the dataservice and its policy mode.
type Coordinator struct {
	Host string
	Mode string
}

// Member a datasource or replicator within the dataservice.
type Member struct {
	Role       string
	State      string
	Latency    float64
	Properties map[string]string
}

// Status snapshot of a dataservice.
type Status struct {
	Service     string
	Type        Type
	Coordinator Coordinator
	DataSources map[string]Member
	Replicators map[string]Member
}

// DataSourceNames sorted.
func (t Status) DataSourceNames() []string {
	return names(t.DataSources)
}

// ReplicatorNames sorted.
func (t Status) ReplicatorNames() []string {
	return names(t.Replicators)
}

func names(m map[string]Member) (result []string) {
	for k := range m {
		result = append(result, k)
	}

	sort.Strings(result)
	return result
}

// Fallback tries each resolver in order returning the first success.
func Fallback(resolvers ...Resolver) Resolver {
	return ResolverFunc(func(ctx context.Context, service string) (s Status, err error) {
		err = ErrUnavailable
		for _, r := range resolvers {
			if s, err = r.Status(ctx, service); err == nil {
				return s, nil
			}
		}

		return s, err
	})
}

func latency(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}

	return f
}
