package backoff

import (
	"context"
	"errors"
	"math"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func testBackoff(s Strategy, expected ...time.Duration) {
	for i, d := range expected {
		Expect(s.Backoff(i)).To(Equal(d))
	}
}

var _ = Describe("Backoff", func() {
	DescribeTable("strategies",
		testBackoff,
		Entry("explicit restarts after the last delay", Explicit(time.Second, 2*time.Second, 3*time.Second), time.Second, 2*time.Second, 3*time.Second, time.Second, 2*time.Second),
		Entry("exponential doubles each time", Exponential(time.Second), time.Second, 2*time.Second, 4*time.Second, 8*time.Second, 16*time.Second),
		Entry("exponential with scaling", Exponential(500*time.Millisecond), 500*time.Millisecond, time.Second, 2*time.Second, 4*time.Second),
		Entry("constant", Constant(time.Second), time.Second, time.Second, time.Second),
		Entry("maximum caps the delay", New(Exponential(time.Second), Maximum(3*time.Second)), time.Second, 2*time.Second, 3*time.Second, 3*time.Second),
	)

	DescribeTable("exponential overflow",
		func(attempt int) {
			Expect(Exponential(time.Second).Backoff(attempt)).To(Equal(time.Duration(math.MaxInt64)))
		},
		Entry("large attempt", 62),
		Entry("max attempt value", math.MaxInt64),
	)

	It("should only extend delays with jitter", func() {
		s := New(Constant(time.Second), Jitter(0.5))
		for i := 0; i < 20; i++ {
			Expect(s.Backoff(i)).To(BeNumerically(">=", time.Second))
			Expect(s.Backoff(i)).To(BeNumerically("<", 1500*time.Millisecond))
		}
	})

	Describe("Poll", func() {
		It("should stop once the check passes", func() {
			invoked := 0
			err := Poll(context.Background(), Constant(time.Millisecond), 5, func(ctx context.Context, attempt int) (bool, error) {
				invoked++
				return attempt == 2, nil
			})
			Expect(err).ToNot(HaveOccurred())
			Expect(invoked).To(Equal(3))
		})

		It("should report exhaustion", func() {
			err := Poll(context.Background(), Constant(time.Millisecond), 3, func(ctx context.Context, attempt int) (bool, error) {
				return false, nil
			})
			Expect(errors.Is(err, ErrExhausted)).To(BeTrue())
		})

		It("should return check errors immediately", func() {
			boom := errors.New("boom")
			err := Poll(context.Background(), Constant(time.Millisecond), 3, func(ctx context.Context, attempt int) (bool, error) {
				return false, boom
			})
			Expect(err).To(Equal(boom))
		})

		It("should respect cancellation", func() {
			ctx, done := context.WithCancel(context.Background())
			done()
			err := Poll(ctx, Constant(time.Hour), 0, func(ctx context.Context, attempt int) (bool, error) {
				return false, nil
			})
			Expect(errors.Is(err, context.Canceled)).To(BeTrue())
		})
	})
})
