package qcomposer

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	. "github.com/smartystreets/goconvey/convey"
)

func TestNewRateLimiter(t *testing.T) {
	Convey("Given a new rate limiter", t, func() {
		limiter := NewRateLimiter(100, time.Second, nil)

		Convey("It should start with a full bucket", func() {
			So(limiter.tokens, ShouldEqual, 100)
			So(limiter.maxTokens, ShouldEqual, 100)
			So(limiter.refillRate, ShouldEqual, time.Second)
		})
	})
}

func TestRateLimiterLimit(t *testing.T) {
	Convey("Given a rate limiter with 2 tokens", t, func() {
		limiter := NewRateLimiter(2, time.Hour, NewMetrics(prometheus.NewRegistry()))

		Convey("The third command should be limited", func() {
			So(limiter.Limit(), ShouldBeFalse)
			So(limiter.Limit(), ShouldBeFalse)
			So(limiter.Limit(), ShouldBeTrue)
		})
	})
}

func TestRateLimiterRefill(t *testing.T) {
	Convey("Given a drained rate limiter", t, func() {
		limiter := NewRateLimiter(3, 200*time.Millisecond, nil)
		for i := 0; i < 3; i++ {
			So(limiter.Limit(), ShouldBeFalse)
		}
		So(limiter.Limit(), ShouldBeTrue)

		Convey("Tokens should come back over time, capped at the burst", func() {
			time.Sleep(700 * time.Millisecond)
			limiter.Renormalize()
			So(limiter.tokens, ShouldEqual, 3)
			So(limiter.Limit(), ShouldBeFalse)
		})
	})
}
