package ticket_test

import (
	"context"
	"testing"

	"github.com/smartystreets/goconvey/convey"
	"github.com/teamlens/teamlens/internal/domain/ticket"
	"github.com/teamlens/teamlens/pkg/logger"
)

func init() {
	// Initialize logging for tests
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

var headers = []string{
	"Title", "Priority", "Type", "Assigned", "Reported by",
	"Reported time (M/D/Y T(24))", "First response time (M/D/Y T(24))",
	"Closed time (M/D/Y T(24))", "Duration", "Bucket", "GitHub Issue", "Notes",
	"Root cause status",
}

func TestNormalize(t *testing.T) {
	convey.Convey("Given a sheet table with mixed rows", t, func() {
		rows := [][]string{
			{"Login broken", "High", "Bug", "John Doe", "support", "1/15/2025 14:30", "1/15/2025 15:00", "1/16/2025 14:30", "1d", "auth", "#101", "", ""},
			{"", "Low", "Bug", "Jane", "support", "", "", "", "", "", "", "", ""}, // no title, discarded
			{"Slow dashboard", "med", "Perf", "Jane Smith", "qa", "2/1/2025 09:00", "", "", "", "web", "", "", ""},
			{"Bad date ok", "low", "Bug", "John Doe", "qa", "not-a-date", "", "", "", "", "", "", ""},
		}

		convey.Convey("When normalizing", func() {
			tickets := ticket.Normalize(context.Background(), headers, rows)

			convey.Convey("Then titleless rows are dropped and the rest kept", func() {
				convey.So(len(tickets), convey.ShouldEqual, 3)
			})

			convey.Convey("And parsed fields land on the record", func() {
				first := tickets[0]
				convey.So(first.Title, convey.ShouldEqual, "Login broken")
				convey.So(first.Assigned, convey.ShouldEqual, "John Doe")
				convey.So(first.CrossReference, convey.ShouldEqual, "#101")
				convey.So(first.ReportedAt, convey.ShouldNotBeNil)
				convey.So(first.ClosedAt, convey.ShouldNotBeNil)
				convey.So(first.Closed(), convey.ShouldBeTrue)
			})

			convey.Convey("And a malformed date degrades to nil, not a dropped row", func() {
				convey.So(tickets[2].Title, convey.ShouldEqual, "Bad date ok")
				convey.So(tickets[2].ReportedAt, convey.ShouldBeNil)
			})
		})

		convey.Convey("When headers differ only in case", func() {
			lower := make([]string, len(headers))
			for i, h := range headers {
				lower[i] = " " + h + " "
			}
			tickets := ticket.Normalize(context.Background(), lower, rows[:1])
			convey.So(len(tickets), convey.ShouldEqual, 1)
			convey.So(tickets[0].Assigned, convey.ShouldEqual, "John Doe")
		})
	})

	convey.Convey("Given a table with no title column", t, func() {
		tickets := ticket.Normalize(context.Background(), []string{"Foo", "Bar"}, [][]string{{"a", "b"}})

		convey.Convey("Then nothing is produced", func() {
			convey.So(tickets, convey.ShouldBeEmpty)
		})
	})
}

func TestMetricsByUser(t *testing.T) {
	convey.Convey("Given normalized tickets for two assignees", t, func() {
		rows := [][]string{
			{"T1", "High", "Bug", "John Doe", "", "1/1/2025 10:00", "1/1/2025 12:00", "1/2/2025 10:00", "", "", "#1", "", ""},
			{"T2", "medium", "Bug", "John Doe", "", "1/3/2025 10:00", "", "", "", "", "", "", ""},
			{"T3", "Low", "Feature", "Jane Smith", "", "", "", "", "", "", "", "", ""},
			{"T4", "", "", "", "", "", "", "", "", "", "", "", ""}, // unassigned
		}
		tickets := ticket.Normalize(context.Background(), headers, rows)

		convey.Convey("When aggregating per assignee", func() {
			byUser := ticket.MetricsByUser(tickets)

			convey.Convey("Then only assigned tickets produce entries", func() {
				convey.So(len(byUser), convey.ShouldEqual, 2)
			})

			convey.Convey("And John's counts and latencies are right", func() {
				john := byUser["John Doe"]
				convey.So(john.TotalTickets, convey.ShouldEqual, 2)
				convey.So(john.TicketsClosed, convey.ShouldEqual, 1)
				convey.So(john.TicketsOpen, convey.ShouldEqual, 1)
				convey.So(john.HighPriority, convey.ShouldEqual, 1)
				convey.So(john.MediumPriority, convey.ShouldEqual, 1)
				convey.So(john.Types["Bug"], convey.ShouldEqual, 2)
				convey.So(john.AvgResolutionHours, convey.ShouldEqual, 24.0)
				convey.So(john.AvgFirstResponseHours, convey.ShouldEqual, 2.0)
				convey.So(john.CrossReferenced, convey.ShouldEqual, 1)
			})

			convey.Convey("And Jane's open feature ticket is counted", func() {
				jane := byUser["Jane Smith"]
				convey.So(jane.TotalTickets, convey.ShouldEqual, 1)
				convey.So(jane.TicketsOpen, convey.ShouldEqual, 1)
				convey.So(jane.LowPriority, convey.ShouldEqual, 1)
				convey.So(jane.AvgResolutionHours, convey.ShouldEqual, 0)
			})
		})
	})
}
