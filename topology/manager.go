package topology

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/james-lawrence/tpm/internal/httputilx"
)

// ManagerOption options for the manager resolver.
type ManagerOption func(*Manager)

// ManagerOptionClient override the http client.
func ManagerOptionClient(c *http.Client) ManagerOption {
	return func(m *Manager) {
		m.client = c
	}
}

// ManagerOptionDebug prints requests and responses.
func ManagerOptionDebug(m *Manager) {
	m.client.Transport = httputilx.NewDebugTransport(m.client.Transport)
}

// NewManager resolver querying the manager api on the host.
func NewManager(host string, port int, options ...ManagerOption) Manager {
	m := Manager{
		endpoint: url.URL{
			Scheme: "http",
			Host:   net.JoinHostPort(host, strconv.Itoa(port)),
			Path:   "/manager/status/",
		},
		client: &http.Client{
			Timeout: 10 * time.Second,
			Transport: httputilx.NewRateLimitTransport(
				httputilx.RLTOptionLimiter(rate.NewLimiter(rate.Every(200*time.Millisecond), 2)),
			),
		},
	}

	for _, opt := range options {
		opt(&m)
	}

	return m
}

// Manager resolves the topology from the manager api.
type Manager struct {
	endpoint url.URL
	client   *http.Client
}

type managerMember struct {
	Role           string      `json:"role"`
	State          string      `json:"state"`
	AppliedLatency json.Number `json:"appliedLatency"`
}

type managerStatus struct {
	ServiceState struct {
		Composite         bool                     `json:"composite"`
		Coordinator       string                   `json:"coordinator"`
		PolicyManagerMode string                   `json:"policyManagerMode"`
		DataSources       map[string]managerMember `json:"dataSources"`
		Replicators       map[string]managerMember `json:"replicators"`
	} `json:"serviceState"`
}

// Status implements Resolver.
func (t Manager) Status(ctx context.Context, service string) (s Status, err error) {
	var (
		req     *http.Request
		resp    *http.Response
		decoded managerStatus
	)

	endpoint := t.endpoint
	endpoint.Path += service

	if req, err = httputilx.Get(ctx, endpoint.String()); err != nil {
		return s, errors.WithStack(err)
	}

	if resp, err = t.client.Do(req); err != nil {
		return s, errors.Wrapf(err, "manager api %s", endpoint.Host)
	}

	if err = httputilx.ErrorCode(resp); err != nil {
		resp.Body.Close()
		return s, errors.Wrapf(err, "manager api %s", endpoint.Host)
	}

	if err = httputilx.DecodeJSON(resp, &decoded); err != nil {
		return s, err
	}

	state := decoded.ServiceState
	s = Status{
		Service:     service,
		Type:        Physical,
		Coordinator: Coordinator{Host: state.Coordinator, Mode: state.PolicyManagerMode},
		DataSources: members(state.DataSources),
		Replicators: members(state.Replicators),
	}

	if state.Composite {
		s.Type = Composite
	}

	return s, nil
}

func (t Manager) String() string {
	return fmt.Sprintf("manager(%s)", t.endpoint.Host)
}

func members(in map[string]managerMember) map[string]Member {
	out := make(map[string]Member, len(in))
	for host, m := range in {
		out[host] = Member{
			Role:    m.Role,
			State:   m.State,
			Latency: latency(m.AppliedLatency.String()),
		}
	}

	return out
}
