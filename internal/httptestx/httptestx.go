// Package httptestx canned http transports for tests that must not touch the
// network.
package httptestx

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

// RoundTripFunc pure function transport.
type RoundTripFunc func(req *http.Request) (*http.Response, error)

// RoundTrip implements http.RoundTripper.
func (f RoundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// Respond with the status code and body to every request.
func Respond(code int, body string) RoundTripFunc {
	return func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: code,
			Status:     http.StatusText(code),
			Header:     http.Header{},
			Body:       io.NopCloser(strings.NewReader(body)),
			Request:    req,
		}, nil
	}
}

// JSON responds with the json encoding of v.
func JSON(code int, v interface{}) RoundTripFunc {
	encoded, err := json.Marshal(v)
	if err != nil {
		return Fail(err)
	}

	return func(req *http.Request) (*http.Response, error) {
		resp, err := Respond(code, string(encoded))(req)
		resp.Header.Set("Content-Type", "application/json")
		return resp, err
	}
}

// Fail every request with the error.
func Fail(err error) RoundTripFunc {
	return func(*http.Request) (*http.Response, error) {
		return nil, err
	}
}

// Client using the transport.
func Client(rt http.RoundTripper) *http.Client {
	return &http.Client{Transport: rt}
}
