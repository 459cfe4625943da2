package topology_test

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"

	"github.com/gorilla/mux"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/james-lawrence/tpm/internal/httptestx"
	"github.com/james-lawrence/tpm/remote"
	"github.com/james-lawrence/tpm/remote/remotetestutil"
	"github.com/james-lawrence/tpm/topology"
)

const replicatorStatus = `appliedLastSeqno      : 1042
appliedLatency        : 0.451
role                  : slave
serviceName           : alpha
state                 : ONLINE
masterConnectUri      : thl://db1:2112/
`

var _ = Describe("Replicator", func() {
	It("should parse key value lines", func() {
		props := topology.ParseReplicatorStatus(replicatorStatus + "no separator\n")
		Expect(props).To(HaveKeyWithValue("role", "slave"))
		Expect(props).To(HaveKeyWithValue("masterConnectUri", "thl://db1:2112/"))
		Expect(props).ToNot(HaveKey("no separator"))
	})

	It("should report the local replicator", func() {
		rec := remotetestutil.NewRecorder().On("db2", "trepctl", remote.Result{Stdout: replicatorStatus}, nil)
		r := topology.NewReplicator(rec, remote.Target{Host: "db2"}, "/opt/continuent")

		s, err := r.Status(context.Background(), "alpha")
		Expect(err).ToNot(HaveOccurred())
		Expect(s.Type).To(Equal(topology.Replication))
		Expect(s.ReplicatorNames()).To(Equal([]string{"db2"}))
		Expect(s.Replicators["db2"].State).To(Equal("ONLINE"))
		Expect(s.Replicators["db2"].Latency).To(BeNumerically("~", 0.451))
		Expect(rec.Commands("db2")).To(ConsistOf("/opt/continuent/tungsten/tungsten-replicator/bin/trepctl -service alpha status | grep :"))
	})
})

var _ = Describe("Manager", func() {
	var (
		srv *httptest.Server
		m   topology.Manager
	)

	BeforeEach(func() {
		router := mux.NewRouter()
		router.HandleFunc("/manager/status/{service}", func(resp http.ResponseWriter, req *http.Request) {
			if mux.Vars(req)["service"] != "alpha" {
				resp.WriteHeader(http.StatusNotFound)
				return
			}

			_, _ = resp.Write([]byte(`{"serviceState":{
				"composite": false,
				"coordinator": "db1",
				"policyManagerMode": "AUTOMATIC",
				"dataSources": {"db1": {"role": "master", "state": "ONLINE"}, "db2": {"role": "slave", "state": "ONLINE"}},
				"replicators": {"db2": {"role": "slave", "state": "ONLINE", "appliedLatency": "1.5"}}
			}}`))
		}).Methods(http.MethodGet)

		srv = httptest.NewServer(router)
		DeferCleanup(srv.Close)

		u, err := url.Parse(srv.URL)
		Expect(err).ToNot(HaveOccurred())
		host, port, err := net.SplitHostPort(u.Host)
		Expect(err).ToNot(HaveOccurred())
		p, err := strconv.Atoi(port)
		Expect(err).ToNot(HaveOccurred())
		m = topology.NewManager(host, p)
	})

	It("should decode the service state", func() {
		s, err := m.Status(context.Background(), "alpha")
		Expect(err).ToNot(HaveOccurred())
		Expect(s.Type).To(Equal(topology.Physical))
		Expect(s.Coordinator).To(Equal(topology.Coordinator{Host: "db1", Mode: "AUTOMATIC"}))
		Expect(s.DataSourceNames()).To(Equal([]string{"db1", "db2"}))
		Expect(s.Replicators["db2"].Latency).To(BeNumerically("~", 1.5))
	})

	It("should fail for unknown services", func() {
		_, err := m.Status(context.Background(), "beta")
		Expect(err).To(HaveOccurred())
	})

	It("should report composite services", func() {
		c := httptestx.Client(httptestx.JSON(http.StatusOK, map[string]interface{}{
			"serviceState": map[string]interface{}{
				"composite":         true,
				"coordinator":       "db4",
				"policyManagerMode": "MAINTENANCE",
			},
		}))

		s, err := topology.NewManager("db4", 8090, topology.ManagerOptionClient(c)).Status(context.Background(), "global")
		Expect(err).ToNot(HaveOccurred())
		Expect(s.Type).To(Equal(topology.Composite))
		Expect(s.Coordinator.Mode).To(Equal("MAINTENANCE"))
		Expect(s.DataSources).To(BeEmpty())
	})

	It("should report transport failures", func() {
		c := httptestx.Client(httptestx.Fail(errors.New("connection refused")))
		_, err := topology.NewManager("db4", 8090, topology.ManagerOptionClient(c)).Status(context.Background(), "alpha")
		Expect(err).To(MatchError(ContainSubstring("connection refused")))
	})
})

var _ = Describe("Fallback", func() {
	failed := topology.ResolverFunc(func(ctx context.Context, service string) (topology.Status, error) {
		return topology.Status{}, errors.New("boom")
	})

	It("should use the first resolver that succeeds", func() {
		ok := topology.ResolverFunc(func(ctx context.Context, service string) (topology.Status, error) {
			return topology.Status{Service: service}, nil
		})
		s, err := topology.Fallback(failed, ok).Status(context.Background(), "alpha")
		Expect(err).ToNot(HaveOccurred())
		Expect(s.Service).To(Equal("alpha"))
	})

	It("should report unavailable without resolvers", func() {
		_, err := topology.Fallback().Status(context.Background(), "alpha")
		Expect(err).To(MatchError(topology.ErrUnavailable))
	})
})
