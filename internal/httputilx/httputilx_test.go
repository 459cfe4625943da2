package httputilx_test

import (
	"context"
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/time/rate"

	"github.com/james-lawrence/tpm/internal/httptestx"
	. "github.com/james-lawrence/tpm/internal/httputilx"
)

func respond(code int, body string) *http.Response {
	resp, err := httptestx.Respond(code, body)(nil)
	Expect(err).ToNot(HaveOccurred())
	return resp
}

var _ = Describe("HTTPutilx", func() {
	DescribeTable("ErrorCode",
		func(code int, failed bool) {
			resp := respond(code, "")
			if failed {
				Expect(ErrorCode(resp)).To(HaveOccurred())
			} else {
				Expect(ErrorCode(resp)).To(Succeed())
			}
		},
		Entry("ok", http.StatusOK, false),
		Entry("redirect", http.StatusFound, false),
		Entry("not found", http.StatusNotFound, true),
		Entry("bad gateway", http.StatusBadGateway, true),
	)

	It("should ignore selected error codes", func() {
		err := ErrorCode(respond(http.StatusNotFound, ""))
		Expect(IgnoreError(err, http.StatusNotFound)).To(BeTrue())
		Expect(IgnoreError(err, http.StatusBadGateway)).To(BeFalse())
	})

	It("should decode json responses", func() {
		var dst struct{ Coordinator string }
		Expect(DecodeJSON(respond(http.StatusOK, `{"coordinator":"db1"}`), &dst)).To(Succeed())
		Expect(dst.Coordinator).To(Equal("db1"))
	})

	It("should respect the request context while rate limited", func() {
		c := &http.Client{Transport: NewRateLimitTransport(
			RLTOptionLimiter(rate.NewLimiter(rate.Every(time.Hour), 1)),
			RLTOptionTransport(httptestx.Respond(http.StatusOK, "")),
		)}

		req, err := Get(context.Background(), "http://example.com")
		Expect(err).ToNot(HaveOccurred())
		resp, err := c.Do(req)
		Expect(err).ToNot(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		ctx, done := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer done()
		req, err = Get(ctx, "http://example.com")
		Expect(err).ToNot(HaveOccurred())
		_, err = c.Do(req)
		Expect(err).To(HaveOccurred())
	})
})
