package identity

import (
	"testing"

	"github.com/smartystreets/goconvey/convey"
)

func TestRatio(t *testing.T) {
	convey.Convey("Given the sequence similarity ratio", t, func() {
		convey.Convey("identical strings score 1.0", func() {
			convey.So(Ratio("johndoe", "johndoe"), convey.ShouldEqual, 1.0)
		})

		convey.Convey("two empty strings score 1.0", func() {
			convey.So(Ratio("", ""), convey.ShouldEqual, 1.0)
		})

		convey.Convey("one empty string scores 0.0", func() {
			convey.So(Ratio("johndoe", ""), convey.ShouldEqual, 0.0)
			convey.So(Ratio("", "johndoe"), convey.ShouldEqual, 0.0)
		})

		convey.Convey("disjoint strings score 0.0", func() {
			convey.So(Ratio("abc", "xyz"), convey.ShouldEqual, 0.0)
		})

		convey.Convey("close variants score above 0.70", func() {
			convey.So(Ratio("johndoe", "johndoe1"), convey.ShouldBeGreaterThan, 0.70)
			convey.So(Ratio("johndoe", "jdoe"), convey.ShouldBeGreaterThan, 0.70)
		})

		convey.Convey("unrelated names score below 0.70", func() {
			convey.So(Ratio("johndoe", "janesmith"), convey.ShouldBeLessThan, 0.70)
		})

		convey.Convey("the ratio stays within [0, 1]", func() {
			r := Ratio("performance", "perforation")
			convey.So(r, convey.ShouldBeGreaterThanOrEqualTo, 0.0)
			convey.So(r, convey.ShouldBeLessThanOrEqualTo, 1.0)
		})
	})
}
