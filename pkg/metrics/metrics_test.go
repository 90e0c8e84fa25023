package metrics_test

import (
	"net/http/httptest"
	"testing"

	"github.com/smartystreets/goconvey/convey"
	"github.com/teamlens/teamlens/pkg/metrics"
)

func TestManager(t *testing.T) {
	convey.Convey("Given a fresh metrics manager", t, func() {
		m := metrics.NewManager(
			metrics.WithNamespace("test"),
			metrics.WithSubsystem("run"),
		)
		convey.So(m, convey.ShouldNotBeNil)

		convey.Convey("Then its handler should serve a scrape without error", func() {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest("GET", "/metrics", nil)
			m.Handler().ServeHTTP(rec, req)
			convey.So(rec.Code, convey.ShouldEqual, 200)
		})
	})

	convey.Convey("Given the global manager", t, func() {
		convey.So(metrics.Default(), convey.ShouldNotBeNil)

		convey.Convey("Then all recording helpers should be safe to call", func() {
			convey.So(func() {
				metrics.RecordAPIRequest("github")
				metrics.RecordAPIRetry()
				metrics.RecordAPIError("sheets")
				metrics.RecordRepoFetched()
				metrics.RecordEventCollected("commit")
				metrics.RecordEventAggregated("pull_request")
				metrics.RecordEventSkipped("missing_actor")
				metrics.UpdateIdentitiesTotal(7)
				metrics.RecordIdentityMatch("fuzzy")
				metrics.RecordTicketNormalized()
				metrics.RecordTicketDiscarded()
				metrics.RecordRecordMerged("both")
				metrics.ObserveStageDuration("aggregate", 0.05)
				metrics.RecordAnalyzerCall("ok")
				metrics.RecordAnalyzerFallback()
				metrics.ObserveAnalyzerLatency(1.2)
				metrics.RecordPoolTask("ok")
				metrics.ObservePoolTaskLatency(0.4)
			}, convey.ShouldNotPanic)
		})
	})
}
