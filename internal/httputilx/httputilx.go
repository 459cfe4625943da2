package httputilx

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httputil"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

// CheckStatusCode compares the provided status code with the acceptable
// status codes.
func CheckStatusCode(actual int, acceptable ...int) bool {
	for _, code := range acceptable {
		if actual == code {
			return true
		}
	}

	return false
}

// IsSuccess checks if the status code is a 2xx.
func IsSuccess(actual int) bool {
	return actual >= 200 && actual < 300
}

// Get builds a GET request bound to the context.
func Get(ctx context.Context, endpoint string) (*http.Request, error) {
	return http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
}

// DecodeJSON from a http.Response into the provide destination.
func DecodeJSON(resp *http.Response, dst interface{}) error {
	defer resp.Body.Close()
	return errors.Wrap(json.NewDecoder(resp.Body).Decode(dst), "unable to decode response")
}

// ErrorCode converts 4xx and 5xx responses into an Error.
func ErrorCode(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	return Error{Code: resp.StatusCode, cause: errors.New(resp.Status)}
}

// Error unsuccessful http response.
type Error struct {
	Code  int
	cause error
}

func (t Error) Error() string {
	return t.cause.Error()
}

// IgnoreError reports if the error is an http error with one of the codes.
func IgnoreError(err error, code ...int) bool {
	var cause Error

	if !errors.As(err, &cause) {
		return false
	}

	return CheckStatusCode(cause.Code, code...)
}

// NewDebugTransport prints the request and response to the standard logger.
func NewDebugTransport(rt http.RoundTripper) DebugTransport {
	if rt == nil {
		rt = http.DefaultTransport
	}

	return DebugTransport{delegate: rt}
}

// DebugTransport - prints the request and response of an http request.
type DebugTransport struct {
	delegate http.RoundTripper
}

// RoundTrip - implements http.RoundTripper
func (t DebugTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if raw, err := httputil.DumpRequestOut(req, false); err == nil {
		log.Println("RAW REQUEST")
		log.Println(string(raw))
	}

	resp, err := t.delegate.RoundTrip(req)
	if resp != nil && resp.Body != nil {
		if raw, derr := httputil.DumpResponse(resp, true); derr == nil {
			log.Println("RAW RESPONSE")
			log.Println(string(raw))
		}
	}

	return resp, err
}

// RateLimitTransportOption options for the RateLimitTransport
type RateLimitTransportOption func(*RateLimitTransport)

// RLTOptionLimiter sets the rate limit for the transport.
func RLTOptionLimiter(l *rate.Limiter) RateLimitTransportOption {
	return func(t *RateLimitTransport) {
		t.Limiter = l
	}
}

// RLTOptionTransport sets the delegate transport for the RateLimitTransport.
func RLTOptionTransport(rt http.RoundTripper) RateLimitTransportOption {
	return func(t *RateLimitTransport) {
		if rt == nil {
			return
		}

		t.Delegate = rt
	}
}

// NewRateLimitTransport creates transport that is capable of adjusting the rate limit of requests.
// defaults to an unlimited rate.
func NewRateLimitTransport(options ...RateLimitTransportOption) (transport RateLimitTransport) {
	transport = RateLimitTransport{
		Limiter:  rate.NewLimiter(rate.Inf, 0),
		Delegate: http.DefaultTransport,
	}

	for _, opt := range options {
		opt(&transport)
	}

	return transport
}

// RateLimitTransport transport that limits the rate at which requests are made.
type RateLimitTransport struct {
	*rate.Limiter
	Delegate http.RoundTripper
}

// RoundTrip implements http.RoundTripper
func (t RateLimitTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.Limiter.Wait(req.Context()); err != nil {
		return nil, err
	}

	return t.Delegate.RoundTrip(req)
}
