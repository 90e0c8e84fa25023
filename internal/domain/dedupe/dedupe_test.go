package dedupe_test

import (
	"fmt"
	"testing"

	"github.com/smartystreets/goconvey/convey"
	"github.com/teamlens/teamlens/internal/domain/dedupe"
)

func TestTracker(t *testing.T) {
	convey.Convey("Given an unbounded tracker", t, func() {
		tr := dedupe.NewTracker()

		convey.Convey("When recording a new key", func() {
			seen := tr.SeenAndRecord("acme/api#42")

			convey.Convey("Then it should report unseen and grow", func() {
				convey.So(seen, convey.ShouldBeFalse)
				convey.So(tr.Size(), convey.ShouldEqual, 1)
			})

			convey.Convey("And recording it again should report seen", func() {
				convey.So(tr.SeenAndRecord("acme/api#42"), convey.ShouldBeTrue)
				convey.So(tr.Size(), convey.ShouldEqual, 1)
			})
		})
	})

	convey.Convey("Given a bounded tracker of size 3", t, func() {
		tr := dedupe.NewTracker(dedupe.WithMaxSize(3))

		convey.Convey("When recording more keys than the bound", func() {
			for i := 0; i < 5; i++ {
				convey.So(tr.SeenAndRecord(fmt.Sprintf("k%d", i)), convey.ShouldBeFalse)
			}

			convey.Convey("Then size should stay at the bound", func() {
				convey.So(tr.Size(), convey.ShouldEqual, 3)
			})

			convey.Convey("And the oldest keys should have been evicted", func() {
				convey.So(tr.SeenAndRecord("k0"), convey.ShouldBeFalse) // evicted, re-recorded
				convey.So(tr.SeenAndRecord("k4"), convey.ShouldBeTrue)  // still present
			})
		})
	})
}
