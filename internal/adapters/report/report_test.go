package report

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"
	"github.com/xuri/excelize/v2"

	"github.com/teamlens/teamlens/internal/domain/aggregate"
	"github.com/teamlens/teamlens/internal/domain/analysis"
	"github.com/teamlens/teamlens/internal/domain/event"
	"github.com/teamlens/teamlens/internal/domain/merge"
	"github.com/teamlens/teamlens/internal/domain/rank"
	"github.com/teamlens/teamlens/internal/domain/ticket"
	"github.com/teamlens/teamlens/pkg/logger"
)

func init() {
	// Initialize logging for tests
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func testInput() Input {
	window := event.Window{
		Start: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC),
	}
	closed := time.Date(2026, 1, 20, 10, 0, 0, 0, time.UTC)

	records := []rank.RankedRecord{
		{
			CombinedRecord: merge.CombinedRecord{
				Key:      "jdoe",
				SourceID: "jdoe",
				TicketID: "John Doe",
				Source: aggregate.Metrics{
					Login: "jdoe", DisplayName: "John Doe",
					TotalCommits: 12, PRsCreated: 4, ReviewsGiven: 3,
					ActiveRepos: []string{"org/app"},
				},
				Ticket:        ticket.UserMetrics{TotalTickets: 5, TicketsClosed: 4},
				ActivityScore: 29.5,
			},
			Analysis: analysis.Result{
				Code:      analysis.CodeQuality{QualityScore: 8, Summary: "clean"},
				Review:    analysis.ReviewQuality{ThoroughnessScore: 7, HelpfulnessScore: 7},
				Insights:  analysis.Insights{Strengths: []string{"tests"}, OverallSummary: "solid"},
				Available: true,
			},
			CompositeScore: 75.0, Rank: 1, Percentile: 100.0, Tier: rank.TierTop,
		},
		{
			CombinedRecord: merge.CombinedRecord{
				Key: "alice", SourceID: "alice",
				Source:        aggregate.Metrics{Login: "alice", TotalCommits: 3},
				ActivityScore: 3.0,
			},
			CompositeScore: 25.0, Rank: 2, Percentile: 50.0, Tier: rank.TierDeveloping,
		},
	}

	in := NewInput(window, records, rank.Summary{Total: 2, TopPerformer: "jdoe"})
	in.Repos = []event.Repository{{FullName: "org/app", DefaultBranch: "main"}}
	in.Commits = []event.Commit{
		{Repo: "org/app", Author: event.Actor{Login: "jdoe"}},
		{Repo: "org/app", Author: event.Actor{Login: "alice"}},
	}
	in.Tickets = []ticket.Ticket{
		{Title: "Login broken", Priority: "High", Assigned: "John Doe", ClosedAt: &closed},
	}
	return in
}

func TestWorkbookWrite(t *testing.T) {
	ctx := context.Background()

	convey.Convey("Given ranked records and a target path", t, func() {
		in := testInput()
		path := filepath.Join(t.TempDir(), "metrics.xlsx")

		err := NewWorkbookWriter().Write(ctx, path, in)

		convey.Convey("the workbook is written", func() {
			convey.So(err, convey.ShouldBeNil)

			f, err := excelize.OpenFile(path)
			convey.So(err, convey.ShouldBeNil)
			defer f.Close()

			convey.Convey("with the four sheets and no default one", func() {
				convey.So(f.GetSheetList(), convey.ShouldResemble, []string{
					"Summary", "Team Metrics", "Repository Breakdown", "Ticket Details",
				})
			})

			convey.Convey("team rows carry the ranked values", func() {
				rows, err := f.GetRows("Team Metrics")
				convey.So(err, convey.ShouldBeNil)
				convey.So(rows, convey.ShouldHaveLength, 3)
				convey.So(rows[1][0], convey.ShouldEqual, "jdoe")
				convey.So(rows[1][1], convey.ShouldEqual, "John Doe")
			})

			convey.Convey("repository rows aggregate commits and contributors", func() {
				rows, err := f.GetRows("Repository Breakdown")
				convey.So(err, convey.ShouldBeNil)
				convey.So(rows[1][0], convey.ShouldEqual, "org/app")
				convey.So(rows[1][1], convey.ShouldEqual, "2")
				convey.So(rows[1][2], convey.ShouldEqual, "2")
			})
		})
	})
}

func TestPDFWrite(t *testing.T) {
	ctx := context.Background()

	convey.Convey("Given one ranked record", t, func() {
		in := testInput()
		dir := t.TempDir()

		path, err := NewPDFWriter(dir).Write(ctx, in, in.Records[0])

		convey.Convey("a nonempty document lands in the output dir", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(filepath.Dir(path), convey.ShouldEqual, dir)
			convey.So(filepath.Base(path), convey.ShouldStartWith, "report_John_Doe_")

			info, err := os.Stat(path)
			convey.So(err, convey.ShouldBeNil)
			convey.So(info.Size(), convey.ShouldBeGreaterThan, 0)
		})
	})
}

func TestSanitizeFilename(t *testing.T) {
	convey.Convey("Given awkward display names", t, func() {
		convey.So(SanitizeFilename("John Doe"), convey.ShouldEqual, "John_Doe")
		convey.So(SanitizeFilename(`a<b>c:d"e/f\g|h?i*j`), convey.ShouldEqual, "abcdefghij")
		convey.So(SanitizeFilename("a  b__c"), convey.ShouldEqual, "a_b_c")
	})
}
