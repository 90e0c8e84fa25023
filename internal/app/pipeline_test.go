package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/teamlens/teamlens/internal/adapters/githubapi"
	"github.com/teamlens/teamlens/internal/adapters/report"
	"github.com/teamlens/teamlens/internal/adapters/sheets"
	"github.com/teamlens/teamlens/internal/config"
	"github.com/teamlens/teamlens/internal/domain/analysis"
	"github.com/teamlens/teamlens/internal/domain/event"
	"github.com/teamlens/teamlens/internal/domain/rank"
	"github.com/teamlens/teamlens/pkg/logger"
)

func init() {
	// Initialize logging for tests
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

type fakeCollector struct {
	bundle event.Bundle
	err    error
	diffs  map[string]string
}

func (f *fakeCollector) Collect(_ context.Context, _ event.Window) (event.Bundle, error) {
	return f.bundle, f.err
}

func (f *fakeCollector) CommitDiff(_ context.Context, _, sha string) (string, error) {
	diff, ok := f.diffs[sha]
	if !ok {
		return "", errors.New("no diff")
	}
	return diff, nil
}

type fakeQuota struct {
	quota githubapi.Quota
	err   error
}

func (f *fakeQuota) CheckQuota(context.Context) (githubapi.Quota, error) {
	return f.quota, f.err
}

type fakeTickets struct {
	table sheets.Table
	err   error
}

func (f *fakeTickets) Read(context.Context, string, string) (sheets.Table, error) {
	return f.table, f.err
}

type fakeAnalyzer struct {
	mu      sync.Mutex
	logins  []string
	reviews map[string][]string
	result  analysis.Result
}

func (f *fakeAnalyzer) Analyze(_ context.Context, login string, _, reviews []string, _ string) analysis.Result {
	f.mu.Lock()
	f.logins = append(f.logins, login)
	if f.reviews == nil {
		f.reviews = make(map[string][]string)
	}
	f.reviews[login] = reviews
	f.mu.Unlock()
	return f.result
}

type fakeWorkbook struct {
	path string
	in   report.Input
	err  error
}

func (f *fakeWorkbook) Write(_ context.Context, path string, in report.Input) error {
	f.path = path
	f.in = in
	return f.err
}

type fakeDocuments struct {
	mu   sync.Mutex
	keys []string
}

func (f *fakeDocuments) Write(_ context.Context, _ report.Input, r rank.RankedRecord) (string, error) {
	f.mu.Lock()
	f.keys = append(f.keys, r.Key)
	f.mu.Unlock()
	return "report_" + r.Key + ".pdf", nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.New()
	cfg.GitHubToken = "token"
	cfg.GitHubOrg = "testorg"
	cfg.SheetID = "sheet-1"
	cfg.OutputDir = t.TempDir()
	cfg.UserMappingFile = ""
	return cfg
}

func testBundle() event.Bundle {
	now := time.Now().UTC()
	merged := now.Add(-time.Hour)
	return event.Bundle{
		Window: event.Window{Start: now.AddDate(0, 0, -30), End: now},
		Repos: []event.Repository{
			{Name: "api", FullName: "testorg/api", DefaultBranch: "main"},
		},
		Commits: []event.Commit{
			{SHA: "abc1234", Repo: "testorg/api", Author: event.Actor{Login: "jdoe"}, Message: "Add handler", CommittedAt: now.Add(-2 * time.Hour), Additions: 40, Deletions: 5},
			{SHA: "def5678", Repo: "testorg/api", Author: event.Actor{Login: "alice"}, Message: "Fix parser", CommittedAt: now.Add(-3 * time.Hour), Additions: 20, Deletions: 2},
		},
		PullRequests: []event.PullRequest{
			{
				Number: 7, Repo: "testorg/api", Author: event.Actor{Login: "jdoe"},
				CreatedAt: now.Add(-24 * time.Hour), MergedAt: &merged,
				Additions: 100, Deletions: 20,
				Reviews: []event.Review{
					{Repo: "testorg/api", PRNumber: 7, Reviewer: event.Actor{Login: "alice"}, State: "APPROVED", Body: "Looks good, one nit on naming.", SubmittedAt: now.Add(-20 * time.Hour)},
				},
			},
		},
	}
}

func ticketTable() sheets.Table {
	return sheets.Table{
		Headers: []string{"Title", "Assigned", "Closed time (M/D/Y T(24))"},
		Rows: [][]string{
			{"Fix login outage", "jdoe", "1/2/2026 15:04"},
			{"Investigate latency", "jdoe", ""},
		},
	}
}

func TestPipelineRun(t *testing.T) {
	convey.Convey("Given a pipeline with all stages faked", t, func() {
		ctx := context.Background()
		collector := &fakeCollector{
			bundle: testBundle(),
			diffs:  map[string]string{"abc1234": "--- handler.go\n+func Handle() {}", "def5678": "--- parser.go\n+fix"},
		}
		an := &fakeAnalyzer{result: analysis.Result{
			Code:      analysis.CodeQuality{QualityScore: 8, MaintainabilityScore: 7},
			Review:    analysis.ReviewQuality{ThoroughnessScore: 6, HelpfulnessScore: 8},
			Available: true,
		}}
		wb := &fakeWorkbook{}
		docs := &fakeDocuments{}

		p, err := New(testConfig(t),
			WithCollector(collector),
			WithTicketSource(&fakeTickets{table: ticketTable()}),
			WithAnalyzer(an),
			WithWorkbookRenderer(wb),
			WithDocumentRenderer(docs),
			WithIndividualReports(true),
		)
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("When the run completes", func() {
			res, err := p.Run(ctx)
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then every identity is ranked exactly once", func() {
				convey.So(res.Engineers, convey.ShouldEqual, 2)
				convey.So(res.Matched, convey.ShouldEqual, 1)
				convey.So(res.SourceOnly, convey.ShouldEqual, 1)
				convey.So(res.TicketOnly, convey.ShouldEqual, 0)
				convey.So(res.Degraded, convey.ShouldBeFalse)
			})

			convey.Convey("Then the workbook receives the full input", func() {
				convey.So(wb.path, convey.ShouldEqual, res.WorkbookPath)
				convey.So(wb.path, convey.ShouldEndWith, ".xlsx")
				convey.So(wb.in.Records, convey.ShouldHaveLength, 2)
				convey.So(wb.in.Tickets, convey.ShouldHaveLength, 2)
				convey.So(wb.in.RunID, convey.ShouldEqual, res.RunID)
			})

			convey.Convey("Then each source identity gets a document", func() {
				convey.So(res.ReportPaths, convey.ShouldHaveLength, 2)
				convey.So(docs.keys, convey.ShouldContain, "jdoe")
				convey.So(docs.keys, convey.ShouldContain, "alice")
			})

			convey.Convey("Then the analyzer ran for every contributor", func() {
				convey.So(an.logins, convey.ShouldContain, "jdoe")
				convey.So(an.logins, convey.ShouldContain, "alice")
			})

			convey.Convey("Then the summary reflects the cohort", func() {
				convey.So(res.Summary.Total, convey.ShouldEqual, 2)
				convey.So(res.TopActivity, convey.ShouldNotBeEmpty)
			})
		})
	})
}

func TestPipelineQuotaGate(t *testing.T) {
	convey.Convey("Given a nearly exhausted API budget", t, func() {
		ctx := context.Background()
		collector := &fakeCollector{bundle: testBundle()}
		quota := &fakeQuota{quota: githubapi.Quota{Limit: 5000, Remaining: 5}}

		convey.Convey("Then the run is refused", func() {
			p, err := New(testConfig(t),
				WithCollector(collector),
				WithQuotaChecker(quota),
				WithWorkbookRenderer(&fakeWorkbook{}),
			)
			convey.So(err, convey.ShouldBeNil)

			_, err = p.Run(ctx)
			convey.So(errors.Is(err, ErrQuotaLow), convey.ShouldBeTrue)
		})

		convey.Convey("Then force overrides the gate", func() {
			p, err := New(testConfig(t),
				WithCollector(collector),
				WithQuotaChecker(quota),
				WithWorkbookRenderer(&fakeWorkbook{}),
				WithForce(true),
			)
			convey.So(err, convey.ShouldBeNil)

			_, err = p.Run(ctx)
			convey.So(err, convey.ShouldBeNil)
		})

		convey.Convey("Then a failing quota check is not fatal", func() {
			p, err := New(testConfig(t),
				WithCollector(collector),
				WithQuotaChecker(&fakeQuota{err: errors.New("api down")}),
				WithWorkbookRenderer(&fakeWorkbook{}),
			)
			convey.So(err, convey.ShouldBeNil)

			_, err = p.Run(ctx)
			convey.So(err, convey.ShouldBeNil)
		})
	})
}

func TestPipelineDegradesWithoutTickets(t *testing.T) {
	convey.Convey("Given a failing ticket source", t, func() {
		ctx := context.Background()
		p, err := New(testConfig(t),
			WithCollector(&fakeCollector{bundle: testBundle()}),
			WithTicketSource(&fakeTickets{err: errors.New("permission denied")}),
			WithWorkbookRenderer(&fakeWorkbook{}),
		)
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("Then the run completes source-only", func() {
			res, err := p.Run(ctx)
			convey.So(err, convey.ShouldBeNil)
			convey.So(res.Degraded, convey.ShouldBeTrue)
			convey.So(res.Engineers, convey.ShouldEqual, 2)
			convey.So(res.Matched, convey.ShouldEqual, 0)
			convey.So(res.SourceOnly, convey.ShouldEqual, 2)
		})
	})
}

func TestPipelineCollectFailure(t *testing.T) {
	convey.Convey("Given a failing collector", t, func() {
		ctx := context.Background()
		p, err := New(testConfig(t),
			WithCollector(&fakeCollector{err: errors.New("boom")}),
			WithWorkbookRenderer(&fakeWorkbook{}),
		)
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("Then the run fails fast", func() {
			_, err := p.Run(ctx)
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func TestPipelineRequiresCollector(t *testing.T) {
	convey.Convey("Given no source collector", t, func() {
		_, err := New(testConfig(t))
		convey.So(err, convey.ShouldNotBeNil)
	})
}

func TestPipelineReviewSampleLabels(t *testing.T) {
	convey.Convey("Given identical review bodies on two different pull requests", t, func() {
		ctx := context.Background()
		bundle := testBundle()
		now := time.Now().UTC()
		bundle.PullRequests = []event.PullRequest{
			{
				Number: 7, Repo: "testorg/api", Author: event.Actor{Login: "jdoe"},
				CreatedAt: now.Add(-24 * time.Hour),
				Reviews: []event.Review{
					{Repo: "testorg/api", PRNumber: 7, Reviewer: event.Actor{Login: "alice"}, State: "APPROVED", Body: "LGTM", SubmittedAt: now.Add(-20 * time.Hour)},
				},
			},
			{
				Number: 8, Repo: "testorg/api", Author: event.Actor{Login: "jdoe"},
				CreatedAt: now.Add(-12 * time.Hour),
				Reviews: []event.Review{
					{Repo: "testorg/api", PRNumber: 8, Reviewer: event.Actor{Login: "alice"}, State: "APPROVED", Body: "LGTM", SubmittedAt: now.Add(-10 * time.Hour)},
				},
			},
		}

		an := &fakeAnalyzer{result: analysis.Result{Available: true}}
		p, err := New(testConfig(t),
			WithCollector(&fakeCollector{bundle: bundle}),
			WithAnalyzer(an),
			WithWorkbookRenderer(&fakeWorkbook{}),
		)
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("Then each sampled review keeps its own pull request label", func() {
			_, err := p.Run(ctx)
			convey.So(err, convey.ShouldBeNil)

			joined := strings.Join(an.reviews["alice"], "\n---\n")
			convey.So(joined, convey.ShouldContainSubstring, "PR #7 (testorg/api)")
			convey.So(joined, convey.ShouldContainSubstring, "PR #8 (testorg/api)")
		})
	})
}

func TestPipelineSkipsTicketOnlyDocuments(t *testing.T) {
	convey.Convey("Given a matched cohort plus a ticket-only identity", t, func() {
		ctx := context.Background()
		table := ticketTable()
		table.Rows = append(table.Rows, []string{"Rotate certs", "Zed Unknown", ""})

		docs := &fakeDocuments{}
		p, err := New(testConfig(t),
			WithCollector(&fakeCollector{bundle: testBundle()}),
			WithTicketSource(&fakeTickets{table: table}),
			WithWorkbookRenderer(&fakeWorkbook{}),
			WithDocumentRenderer(docs),
			WithIndividualReports(true),
		)
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("Then no document is rendered for the ticket-only identity", func() {
			res, err := p.Run(ctx)
			convey.So(err, convey.ShouldBeNil)
			convey.So(res.TicketOnly, convey.ShouldEqual, 1)
			convey.So(res.ReportPaths, convey.ShouldHaveLength, 2)
			for _, key := range docs.keys {
				convey.So(key, convey.ShouldNotEqual, "Zed Unknown")
			}
		})
	})
}
