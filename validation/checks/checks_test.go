package checks_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/james-lawrence/tpm/cluster"
	"github.com/james-lawrence/tpm/internal/logx"
	"github.com/james-lawrence/tpm/properties"
	"github.com/james-lawrence/tpm/remote"
	"github.com/james-lawrence/tpm/remote/remotetestutil"
	"github.com/james-lawrence/tpm/topology"
	"github.com/james-lawrence/tpm/validation"
	"github.com/james-lawrence/tpm/validation/checks"
)

func healthy() *remotetestutil.Recorder {
	return remotetestutil.NewRecorder().
		On("", "whoami", remote.Result{Stdout: "tungsten"}, nil).
		On("", "hostname", remote.Result{Stdout: "db1"}, nil).
		On("", "java -version", remote.Result{Stdout: `openjdk version "11.0.2" 2019-01-15`}, nil).
		Fail("", "replicator status", 3).
		Fail("", "/dev/tcp", 1)
}

func messages(entries []validation.Entry) (result []string) {
	for _, e := range entries {
		result = append(result, e.Message)
	}
	return result
}

var _ = Describe("Checks", func() {
	var (
		store *properties.Store
		rec   *remotetestutil.Recorder
		run   = func(factories ...validation.Factory) validation.Report {
			cctx, err := cluster.NewContext(context.Background(), store, rec, cluster.ContextOptionLogger(logx.Discard()))
			Expect(err).ToNot(HaveOccurred())
			return validation.Run(context.Background(), cctx, validation.Bind(factories, cctx.Hosts))
		}
	)

	BeforeEach(func() {
		store = properties.New()
		Expect(store.SetString(cluster.HostPath("db1", cluster.KeyHost), "db1.example.com")).To(Succeed())
		Expect(store.SetString(cluster.HostPath(properties.Defaults, cluster.KeyUser), "tungsten")).To(Succeed())
		Expect(store.Set(cluster.HostPath(properties.Defaults, cluster.KeyRoles), properties.List("replicator", "manager"))).To(Succeed())
		rec = healthy()
	})

	It("should pass a healthy host", func() {
		report := run(checks.Deploy()...)
		Expect(report.Blocked()).To(BeFalse(), "%v", report.Entries)
		Expect(report.Warnings()).To(BeEmpty())
	})

	Describe("SSHLogin", func() {
		It("should stop the pipeline when the host is unreachable", func() {
			rec.Unreachable("db1.example.com")
			report := run(checks.Deploy()...)
			Expect(report.ShortCircuited).To(BeTrue())
			Expect(report.Entries).To(HaveLen(1))
			Expect(report.Entries[0].Check).To(Equal("SSH login"))
			Expect(report.Entries[0].Help).To(ContainSubstring("key authentication"))
		})

		It("should fail when logged in as another user", func() {
			rec.On("", "whoami", remote.Result{Stdout: "root"}, nil)
			report := run(checks.SSHLogin)
			Expect(messages(report.Fatal())).To(ConsistOf("unable to SSH to db1.example.com as tungsten"))
		})
	})

	It("should warn about mismatched hostnames", func() {
		rec.On("", "hostname", remote.Result{Stdout: "other"}, nil)
		report := run(checks.Hostname)
		Expect(report.Blocked()).To(BeFalse())
		Expect(report.Warnings()).To(HaveLen(1))
	})

	It("should block when the temp directory can't be created", func() {
		rec.Fail("", "mkdir -p /tmp/tpm-", 1)
		report := run(checks.WriteableTempDirectory)
		Expect(report.Fatal()).To(HaveLen(1))
		Expect(report.Fatal()[0].Message).To(HavePrefix("unable to create the directory /tmp/tpm-"))
	})

	It("should block when the home directory isn't writeable", func() {
		rec.Fail("", "test -w", 1)
		report := run(checks.WriteableHomeDirectory)
		Expect(messages(report.Fatal())).To(ConsistOf("/opt/continuent is not writeable"))
	})

	It("should block when the release link is a directory", func() {
		rec.Fail("", "test ! -e", 1)
		report := run(checks.WriteableHomeDirectory)
		Expect(messages(report.Fatal())).To(ConsistOf("/opt/continuent/tungsten already exists but is not a symlink"))
	})

	Describe("Sudo", func() {
		It("should only run when commands are prefixed", func() {
			rec.Fail("", "sudo -n ls", 1)
			Expect(run(checks.Sudo).Entries).To(BeEmpty())
		})

		It("should report requiretty and missing privileges", func() {
			Expect(store.SetString(cluster.HostPath("db1", cluster.KeyRootCommandPrefix), "true")).To(Succeed())
			rec.On("", "sudo -n -l", remote.Result{Stdout: "Defaults requiretty\n(ALL) ALL"}, nil)
			report := run(checks.Sudo)
			Expect(report.Fatal()).To(HaveLen(2))
			Expect(report.Fatal()[0].Help).To(ContainSubstring("NOPASSWD: ALL"))
		})
	})

	DescribeTable("ParseJavaVersion",
		func(output string, expected int, ok bool) {
			major, parsed := checks.ParseJavaVersion(output)
			Expect(parsed).To(Equal(ok))
			Expect(major).To(Equal(expected))
		},
		Entry("legacy", `java version "1.8.0_202"`, 8, true),
		Entry("modern", `openjdk version "17.0.1" 2021-10-19`, 17, true),
		Entry("major only", `openjdk version "21" 2023-09-19`, 21, true),
		Entry("garbage", `command not found`, 0, false),
	)

	It("should block old java versions", func() {
		rec.On("", "java -version", remote.Result{Stdout: `java version "1.7.0_80"`}, nil)
		report := run(checks.JavaVersion)
		Expect(messages(report.Fatal())).To(ConsistOf("java 8 or greater is required, found 7"))
	})

	It("should block when the rmi ports are in use", func() {
		rec.Fail("", "test -x", 1)
		rec.On("", "/dev/tcp/127.0.0.1/10001", remote.Result{}, nil)
		report := run(checks.ReplicatorPortAvailable)
		Expect(messages(report.Fatal())).To(ConsistOf("the replicator rmi port 10001 is already in use on db1.example.com"))
		Expect(report.Fatal()[0].Help).To(ContainSubstring("requires both 10000 and 10001"))
	})

	It("should block while the replicator is running", func() {
		rec.Fail("", "test -x", 1)
		rec.On("", "replicator status", remote.Result{}, nil)
		report := run(checks.ReplicatorServiceRunning)
		Expect(report.Fatal()).To(HaveLen(1))
	})

	Describe("updating an installed release", func() {
		BeforeEach(func() {
			rec.On("", "replicator status", remote.Result{}, nil).
				On("", "/dev/tcp", remote.Result{}, nil)
		})

		It("should allow the running replicator and its ports", func() {
			report := run(checks.ReplicatorServiceRunning, checks.ReplicatorPortAvailable)
			Expect(report.Blocked()).To(BeFalse(), "%v", report.Entries)
			Expect(messages(report.Infos())).To(ConsistOf("the replicator in /opt/continuent will be stopped before the update"))
			Expect(rec.Ran("db1.example.com", "/dev/tcp")).To(BeFalse())
		})

		It("should skip the checks once a release was deployed", func() {
			Expect(store.SetString(cluster.HostPath("db1", cluster.KeyDeployedRelease), "tungsten-6.0")).To(Succeed())
			report := run(checks.ReplicatorServiceRunning, checks.ReplicatorPortAvailable)
			Expect(report.Entries).To(BeEmpty())
			Expect(rec.Calls()).To(BeEmpty())
		})
	})

	DescribeTable("LogStorage",
		func(key, value, expected string) {
			Expect(store.SetString(cluster.HostPath("db1", key), value)).To(Succeed())
			report := run(checks.LogStorage)
			Expect(messages(report.Fatal())).To(ConsistOf(ContainSubstring(expected)))
			Expect(report.Fatal()[0].Help).To(ContainSubstring("absolute paths other than /"))
		},
		Entry("empty transferred logs", cluster.KeyThlDirectory, "", "hosts.db1.thl-directory: directory is empty"),
		Entry("relative relay logs", cluster.KeyLogDirectory, "relay", "directory relay is not absolute"),
		Entry("root", cluster.KeyThlDirectory, "/", "directory is the filesystem root"),
		Entry("relative home", cluster.KeyHomeDirectory, "continuent", "hosts.db1.home-directory: directory continuent is not absolute"),
	)

	It("should accept the default log storage", func() {
		Expect(run(checks.LogStorage).Entries).To(BeEmpty())
	})

	It("should block when the log directory is a file", func() {
		Expect(store.SetString(cluster.HostPath("db1", cluster.KeyThlDirectory), "/data/thl")).To(Succeed())
		rec.On("", "test -e /data/thl -a ! -d", remote.Result{}, nil)
		report := run(checks.TransferredLogStorage)
		Expect(messages(report.Fatal())).To(ConsistOf("transferred log directory /data/thl already exists as a file"))
	})

	It("should block a reset without an installation", func() {
		rec.Fail("", "test -d /opt/continuent/tungsten", 1)
		report := run(checks.ActiveDirectoryIsRunning)
		Expect(messages(report.Fatal())).To(ConsistOf("no installation found at /opt/continuent/tungsten"))
	})

	It("should block on missing local packages", func() {
		Expect(store.SetString(cluster.HostPath("db1", cluster.KeyPackage), "/does/not/exist.tar.gz")).To(Succeed())
		report := run(checks.PackageDownload)
		Expect(messages(report.Fatal())).To(ConsistOf("the package /does/not/exist.tar.gz does not exist"))
	})

	It("should report the current topology", func() {
		Expect(store.SetString(cluster.HostPath("db1", cluster.KeyDataservice), "alpha")).To(Succeed())
		resolver := topology.ResolverFunc(func(ctx context.Context, service string) (topology.Status, error) {
			return topology.Status{
				Service:     service,
				Type:        topology.Physical,
				Coordinator: topology.Coordinator{Host: "db1", Mode: "AUTOMATIC"},
				Replicators: map[string]topology.Member{"db1": {Role: "master", State: "ONLINE"}},
			}, nil
		})

		cctx, err := cluster.NewContext(context.Background(), store, rec, cluster.ContextOptionLogger(logx.Discard()), cluster.ContextOptionTopology(resolver))
		Expect(err).ToNot(HaveOccurred())
		report := validation.Run(context.Background(), cctx, validation.Bind([]validation.Factory{checks.CurrentTopology}, cctx.Hosts))
		Expect(messages(report.Infos())).To(Equal([]string{
			"alpha is a physical service coordinated by db1 in AUTOMATIC mode",
			"replicator db1 is ONLINE (master) with 0.000s latency",
		}))
	})
})
