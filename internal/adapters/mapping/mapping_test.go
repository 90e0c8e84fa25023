package mapping

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/smartystreets/goconvey/convey"
	"github.com/teamlens/teamlens/pkg/logger"
)

func init() {
	// Initialize logging for tests
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func TestLoad(t *testing.T) {
	ctx := context.Background()

	convey.Convey("Given a mapping file with comment keys", t, func() {
		path := filepath.Join(t.TempDir(), "mapping.json")
		content := `{
			"_comment": "spreadsheet name to login",
			"John Doe": "jdoe99",
			"Jane Smith": "jsmith"
		}`
		convey.So(os.WriteFile(path, []byte(content), 0o600), convey.ShouldBeNil)

		m, err := Load(ctx, path)

		convey.Convey("comment keys are dropped and the rest kept", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(m, convey.ShouldResemble, map[string]string{
				"John Doe":   "jdoe99",
				"Jane Smith": "jsmith",
			})
		})
	})

	convey.Convey("Given a missing file", t, func() {
		m, err := Load(ctx, filepath.Join(t.TempDir(), "absent.json"))

		convey.Convey("an empty map comes back without error", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(m, convey.ShouldBeEmpty)
		})
	})

	convey.Convey("Given an empty path", t, func() {
		m, err := Load(ctx, "")

		convey.So(err, convey.ShouldBeNil)
		convey.So(m, convey.ShouldBeEmpty)
	})

	convey.Convey("Given malformed JSON", t, func() {
		path := filepath.Join(t.TempDir(), "broken.json")
		convey.So(os.WriteFile(path, []byte("{nope"), 0o600), convey.ShouldBeNil)

		_, err := Load(ctx, path)

		convey.Convey("the parse error surfaces", func() {
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(err, convey.ShouldWrap, ErrParseMapping)
		})
	})
}
