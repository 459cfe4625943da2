package deployment_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/james-lawrence/tpm"
	"github.com/james-lawrence/tpm/cluster"
	"github.com/james-lawrence/tpm/deployment"
	"github.com/james-lawrence/tpm/internal/errorsx"
	"github.com/james-lawrence/tpm/internal/logx"
	"github.com/james-lawrence/tpm/properties"
	"github.com/james-lawrence/tpm/remote/remotetestutil"
)

type journal struct {
	m       sync.Mutex
	entries []string
}

func (t *journal) record(s string) {
	t.m.Lock()
	defer t.m.Unlock()
	t.entries = append(t.entries, s)
}

func (t *journal) Entries() []string {
	t.m.Lock()
	defer t.m.Unlock()
	return append([]string(nil), t.entries...)
}

func (t *journal) step(name string) deployment.Func {
	return func(ctx context.Context, s deployment.Scope) error {
		t.record(name + "@" + s.Host.Alias)
		return nil
	}
}

func index(entries []string, entry string) int {
	for i, e := range entries {
		if e == entry {
			return i
		}
	}

	return -1
}

func newContext(roles map[string][]string, order ...string) *cluster.Context {
	store := properties.New()
	for _, alias := range order {
		Expect(store.Set(cluster.HostPath(alias, cluster.KeyRoles), properties.List(roles[alias]...))).To(Succeed())
	}

	cctx, err := cluster.NewContext(context.Background(), store, remotetestutil.NewRecorder(), cluster.ContextOptionLogger(logx.Discard()))
	Expect(err).ToNot(HaveOccurred())
	return cctx
}

var _ = Describe("Plan", func() {
	var (
		cctx     *cluster.Context
		registry *deployment.Registry
		j        *journal
	)

	BeforeEach(func() {
		j = &journal{}
		cctx = newContext(map[string][]string{
			"db1": {"manager", "replicator"},
			"db2": {"replicator"},
			"app": {"connector"},
		}, "db1", "db2", "app")
		registry = deployment.NewRegistry()
		for _, name := range []string{"a", "b", "c", "d", "first", "final"} {
			registry.MustRegister(name, j.step(name))
		}
	})

	It("should order steps by group then weight keeping contribution order", func() {
		p, err := deployment.NewPlan([]deployment.Module{
			{Name: "one", Steps: []deployment.Step{
				deployment.Required("final", deployment.FinalGroup, 0),
				deployment.Required("a", 1, 0),
				deployment.Required("b", 0, 5),
			}},
			{Name: "two", Steps: []deployment.Step{
				deployment.Required("c", 0, 5),
				deployment.Required("d", 0, -1),
				deployment.Required("first", deployment.FirstGroup, 0),
			}},
		}, cctx.Hosts, cctx.Coordinator, registry)
		Expect(err).ToNot(HaveOccurred())

		var names []string
		for _, s := range p.Steps() {
			names = append(names, s.Name)
		}
		Expect(names).To(Equal([]string{"first", "d", "b", "c", "a", "final"}))
		Expect(p.Groups).To(HaveLen(4))
		Expect(p.Groups[0].Hosts()).To(Equal([]cluster.Host{cctx.Coordinator}))
	})

	It("should scope steps to the hosts the module applies to", func() {
		p, err := deployment.NewPlan([]deployment.Module{
			{Name: "connector", Applies: deployment.ForRoles(cluster.Connector), Steps: []deployment.Step{deployment.Required("a", 0, 0)}},
			{Name: "witness", Applies: func(cluster.Host) bool { return false }, Steps: []deployment.Step{deployment.Required("b", 0, 0)}},
		}, cctx.Hosts, cctx.Coordinator, registry)
		Expect(err).ToNot(HaveOccurred())
		Expect(p.Steps()).To(HaveLen(1))
		Expect(p.Steps()[0].Hosts).To(HaveLen(1))
		Expect(p.Steps()[0].Hosts[0].Alias).To(Equal("app"))
	})

	DescribeTable("planning errors",
		func(modules []deployment.Module, reason string) {
			_, err := deployment.NewPlan(modules, cctx.Hosts, cctx.Coordinator, registry)
			var perr deployment.PlanningError
			Expect(errors.As(err, &perr)).To(BeTrue())
			Expect(perr.Reason).To(ContainSubstring(reason))
		},
		Entry("duplicate names", []deployment.Module{
			{Name: "one", Steps: []deployment.Step{deployment.Required("a", 0, 0)}},
			{Name: "two", Steps: []deployment.Step{deployment.Optional("a", 1, 0)}},
		}, "already contributed by one"),
		Entry("unregistered step", []deployment.Module{
			{Name: "one", Steps: []deployment.Step{deployment.Required("missing", 0, 0)}},
		}, "no implementation"),
		Entry("first group outside the coordinator", []deployment.Module{
			{Name: "connector", Applies: deployment.ForRoles(cluster.Connector), Steps: []deployment.Step{deployment.Required("first", deployment.FirstGroup, 0)}},
		}, "coordinator"),
	)

	It("should reject duplicate registrations", func() {
		Expect(registry.Register("a", j.step("a"))).To(HaveOccurred())
	})
})

var _ = Describe("Execute", func() {
	var (
		cctx     *cluster.Context
		registry *deployment.Registry
		j        *journal
		plan     = func(modules ...deployment.Module) deployment.Plan {
			p, err := deployment.NewPlan(modules, cctx.Hosts, cctx.Coordinator, registry)
			Expect(err).ToNot(HaveOccurred())
			return p
		}
	)

	BeforeEach(func() {
		j = &journal{}
		cctx = newContext(map[string][]string{
			"h1": {"manager"},
			"h2": {"replicator"},
			"h3": {"replicator"},
		}, "h1", "h2", "h3")
		registry = deployment.NewRegistry()
	})

	It("should treat groups as barriers", func() {
		registry.MustRegister("slow", func(ctx context.Context, s deployment.Scope) error {
			if s.Host.Alias == "h1" {
				time.Sleep(50 * time.Millisecond)
			}
			j.record("slow@" + s.Host.Alias)
			return nil
		})
		registry.MustRegister("next", j.step("next"))

		report := deployment.Execute(context.Background(), cctx, plan(deployment.Module{Name: "m", Steps: []deployment.Step{
			deployment.Required("slow", 0, 0),
			deployment.Required("next", 1, 0),
		}}))

		Expect(report.Committed()).To(BeTrue())
		Expect(report.Err()).To(Succeed())
		entries := j.Entries()
		Expect(entries).To(HaveLen(6))
		for _, h := range []string{"h1", "h2", "h3"} {
			for _, other := range []string{"h1", "h2", "h3"} {
				Expect(index(entries, "slow@"+h)).To(BeNumerically("<", index(entries, "next@"+other)))
			}
		}
	})

	It("should run a host's steps in weight order", func() {
		registry.MustRegister("late", j.step("late")).MustRegister("early", j.step("early"))
		deployment.Execute(context.Background(), cctx, plan(deployment.Module{Name: "m", Steps: []deployment.Step{
			deployment.Required("late", 0, 5),
			deployment.Required("early", 0, -5),
		}}))

		entries := j.Entries()
		for _, h := range []string{"h1", "h2", "h3"} {
			Expect(index(entries, "early@"+h)).To(BeNumerically("<", index(entries, "late@"+h)))
		}
	})

	It("should run the first group once on the coordinator", func() {
		registry.MustRegister("policy", j.step("policy"))
		report := deployment.Execute(context.Background(), cctx, plan(deployment.Module{Name: "m", Steps: []deployment.Step{
			deployment.Required("policy", deployment.FirstGroup, 0),
		}}))
		Expect(j.Entries()).To(Equal([]string{"policy@h1"}))
		Expect(report.Results).To(HaveLen(1))
	})

	It("should abort the remaining plan when a required step fails", func() {
		registry.MustRegister("stop", func(ctx context.Context, s deployment.Scope) error {
			if s.Host.Alias == "h2" {
				return errorsx.WithHelp(errors.New("stop script failed"), "check the replicator log")
			}
			j.record("stop@" + s.Host.Alias)
			return nil
		})
		registry.MustRegister("after", j.step("after"))
		registry.MustRegister("start", j.step("start"))

		report := deployment.Execute(context.Background(), cctx, plan(deployment.Module{Name: "m", Steps: []deployment.Step{
			deployment.Required("stop", 0, 0),
			deployment.Required("after", 0, 1),
			deployment.Required("start", 1, 0),
		}}), deployment.OptionPartitioner(tpm.ConstantPartitioner(1)))

		Expect(report.Committed()).To(BeFalse())
		failure, ok := report.Failure()
		Expect(ok).To(BeTrue())
		Expect(failure.Host).To(Equal("h2"))
		Expect(failure.Step).To(Equal("stop"))
		Expect(failure.Help).To(Equal("check the replicator log"))

		// hosts run one at a time: h1 completed before the failure, h3 never started.
		Expect(j.Entries()).To(Equal([]string{"stop@h1", "after@h1"}))
		Expect(report.Count(deployment.Cancelled)).To(Equal(1 + 2 + 3))
		Expect(errorsx.Help(report.Err())).To(Equal("check the replicator log"))
		Expect(report.Err()).To(MatchError(ContainSubstring("stop failed on h2")))
	})

	It("should let in flight hosts finish after a required failure", func() {
		var (
			finished atomic.Int32
			entered  = make(chan struct{}, 2)
			release  = make(chan struct{})
		)
		registry.MustRegister("work", func(ctx context.Context, s deployment.Scope) error {
			if s.Host.Alias == "h1" {
				<-entered
				<-entered
				defer close(release)
				return errors.New("boom")
			}

			entered <- struct{}{}
			<-release
			finished.Add(1)
			return nil
		})
		registry.MustRegister("later", j.step("later"))

		report := deployment.Execute(context.Background(), cctx, plan(deployment.Module{Name: "m", Steps: []deployment.Step{
			deployment.Required("work", 0, 0),
			deployment.Required("later", 0, 1),
		}}))

		Expect(finished.Load()).To(Equal(int32(2)))
		Expect(j.Entries()).To(BeEmpty())
		Expect(report.Count(deployment.Succeeded)).To(Equal(2))
		Expect(report.Count(deployment.Failed)).To(Equal(1))
		Expect(report.Count(deployment.Cancelled)).To(Equal(3))
	})

	It("should only warn about optional failures", func() {
		registry.MustRegister("connector", func(ctx context.Context, s deployment.Scope) error {
			return errors.New("connector unavailable")
		})
		registry.MustRegister("report", j.step("report"))

		report := deployment.Execute(context.Background(), cctx, plan(deployment.Module{Name: "m", Steps: []deployment.Step{
			deployment.Optional("connector", 4, 1),
			deployment.Optional("report", deployment.FinalGroup, deployment.FinalWeight),
		}}))

		Expect(report.Committed()).To(BeTrue())
		Expect(report.Count(deployment.Warned)).To(Equal(3))
		Expect(j.Entries()).To(HaveLen(3))
	})

	It("should convert panics into failures", func() {
		registry.MustRegister("broken", func(ctx context.Context, s deployment.Scope) error {
			var m map[string]int
			m["x"]++
			return nil
		})

		report := deployment.Execute(context.Background(), cctx, plan(deployment.Module{Name: "m", Steps: []deployment.Step{
			deployment.Required("broken", 0, 0),
		}}), deployment.OptionPartitioner(tpm.ConstantPartitioner(1)))
		Expect(report.Count(deployment.Failed)).To(Equal(1))
		Expect(report.Count(deployment.Cancelled)).To(Equal(2))
	})

	It("should bound concurrency with the partitioner", func() {
		var running, peak atomic.Int32
		registry.MustRegister("work", func(ctx context.Context, s deployment.Scope) error {
			n := running.Add(1)
			defer running.Add(-1)
			for {
				current := peak.Load()
				if n <= current || peak.CompareAndSwap(current, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			return nil
		})

		deployment.Execute(context.Background(), cctx, plan(deployment.Module{Name: "m", Steps: []deployment.Step{
			deployment.Required("work", 0, 0),
		}}), deployment.OptionPartitioner(tpm.ConstantPartitioner(2)))
		Expect(peak.Load()).To(BeNumerically("<=", 2))
	})

	It("should serialize property writes across hosts", func() {
		registry.MustRegister("count", func(ctx context.Context, s deployment.Scope) error {
			return s.Update(func(e properties.Editor) error {
				n, err := e.Int(cluster.ClusterPath("counter"))
				if err != nil && !properties.IsMissing(err) {
					return err
				}
				return e.SetString(cluster.ClusterPath("counter"), fmt.Sprint(n+1))
			})
		})

		report := deployment.Execute(context.Background(), cctx, plan(deployment.Module{Name: "m", Steps: []deployment.Step{
			deployment.Required("count", 0, 0),
		}}))
		Expect(report.Committed()).To(BeTrue())
		Expect(cctx.Properties.Int(cluster.ClusterPath("counter"))).To(Equal(3))
	})

	It("should notify observers", func() {
		var events atomic.Int32
		registry.MustRegister("a", j.step("a"))
		deployment.Execute(context.Background(), cctx, plan(deployment.Module{Name: "m", Steps: []deployment.Step{
			deployment.Required("a", 0, 0),
		}}), deployment.OptionObserver(func(deployment.Event) { events.Add(1) }))
		Expect(events.Load()).To(Equal(int32(6)))
	})

	It("should cancel everything when the context is done", func() {
		registry.MustRegister("a", j.step("a"))
		ctx, done := context.WithCancel(context.Background())
		done()
		report := deployment.Execute(ctx, cctx, plan(deployment.Module{Name: "m", Steps: []deployment.Step{
			deployment.Required("a", 0, 0),
		}}))
		Expect(report.Count(deployment.Cancelled)).To(Equal(3))
		Expect(report.Err()).To(HaveOccurred())
	})
})
