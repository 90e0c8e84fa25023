// Package app wires the collection, reconciliation, ranking and rendering
// stages into one batch pipeline run.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/teamlens/teamlens/internal/adapters/analyzer"
	"github.com/teamlens/teamlens/internal/adapters/fetchpool"
	"github.com/teamlens/teamlens/internal/adapters/githubapi"
	"github.com/teamlens/teamlens/internal/adapters/mapping"
	"github.com/teamlens/teamlens/internal/adapters/report"
	"github.com/teamlens/teamlens/internal/adapters/sheets"
	"github.com/teamlens/teamlens/internal/config"
	"github.com/teamlens/teamlens/internal/domain/aggregate"
	"github.com/teamlens/teamlens/internal/domain/analysis"
	"github.com/teamlens/teamlens/internal/domain/derive"
	"github.com/teamlens/teamlens/internal/domain/event"
	"github.com/teamlens/teamlens/internal/domain/identity"
	"github.com/teamlens/teamlens/internal/domain/merge"
	"github.com/teamlens/teamlens/internal/domain/rank"
	"github.com/teamlens/teamlens/internal/domain/ticket"
	"github.com/teamlens/teamlens/pkg/logger"
	"github.com/teamlens/teamlens/pkg/metrics"
)

// ErrQuotaLow aborts a run whose remaining API budget is under the buffer.
var ErrQuotaLow = errors.New("remaining API quota below buffer; rerun with --force to proceed")

const defaultWorkbookBase = "engineer_metrics"

// SourceCollector supplies the raw event bundle and per-commit diffs.
type SourceCollector interface {
	Collect(ctx context.Context, window event.Window) (event.Bundle, error)
	CommitDiff(ctx context.Context, repo, sha string) (string, error)
}

// QuotaChecker reports the remaining API budget before a run starts.
type QuotaChecker interface {
	CheckQuota(ctx context.Context) (githubapi.Quota, error)
}

// TicketSource supplies the raw spreadsheet table.
type TicketSource interface {
	Read(ctx context.Context, spreadsheetID, sheetName string) (sheets.Table, error)
}

// Qualitative scores sampled diffs and reviews for one identity.
type Qualitative interface {
	Analyze(ctx context.Context, login string, diffs, reviews []string, quantSummary string) analysis.Result
}

// WorkbookRenderer writes the team workbook.
type WorkbookRenderer interface {
	Write(ctx context.Context, path string, in report.Input) error
}

// DocumentRenderer writes one per-engineer report.
type DocumentRenderer interface {
	Write(ctx context.Context, in report.Input, r rank.RankedRecord) (string, error)
}

// Result summarizes one finished run.
type Result struct {
	RunID        string
	Window       event.Window
	Engineers    int
	Matched      int
	SourceOnly   int
	TicketOnly   int
	WorkbookPath string
	ReportPaths  []string
	Summary      rank.Summary
	TopActivity  []string
	Degraded     bool
}

// Pipeline is the batch orchestrator. Stages run strictly forward; each
// produces new records for the next.
type Pipeline struct {
	cfg *config.Config

	collector SourceCollector
	quota     QuotaChecker
	tickets   TicketSource
	analyzer  Qualitative
	workbook  WorkbookRenderer
	documents DocumentRenderer

	force             bool
	individualReports bool

	logger logger.Logger
}

// Option applies a configuration option to the Pipeline.
type Option func(*Pipeline)

// WithCollector sets the source-event provider.
func WithCollector(c SourceCollector) Option {
	return func(p *Pipeline) {
		if c != nil {
			p.collector = c
		}
	}
}

// WithQuotaChecker sets the pre-run quota gate.
func WithQuotaChecker(q QuotaChecker) Option {
	return func(p *Pipeline) {
		p.quota = q
	}
}

// WithTicketSource sets the spreadsheet provider.
func WithTicketSource(t TicketSource) Option {
	return func(p *Pipeline) {
		p.tickets = t
	}
}

// WithAnalyzer sets the qualitative analyzer.
func WithAnalyzer(a Qualitative) Option {
	return func(p *Pipeline) {
		p.analyzer = a
	}
}

// WithWorkbookRenderer sets the workbook writer.
func WithWorkbookRenderer(w WorkbookRenderer) Option {
	return func(p *Pipeline) {
		if w != nil {
			p.workbook = w
		}
	}
}

// WithDocumentRenderer sets the per-engineer report writer.
func WithDocumentRenderer(d DocumentRenderer) Option {
	return func(p *Pipeline) {
		p.documents = d
	}
}

// WithForce skips the quota gate.
func WithForce(force bool) Option {
	return func(p *Pipeline) {
		p.force = force
	}
}

// WithIndividualReports toggles per-engineer document generation.
func WithIndividualReports(enabled bool) Option {
	return func(p *Pipeline) {
		p.individualReports = enabled
	}
}

// New constructs a Pipeline.
func New(cfg *config.Config, opts ...Option) (*Pipeline, error) {
	if cfg == nil {
		return nil, errors.New("nil config")
	}

	p := &Pipeline{
		cfg:    cfg,
		logger: logger.Named("pipeline"),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.collector == nil {
		return nil, errors.New("pipeline requires a source collector")
	}
	if p.workbook == nil {
		p.workbook = report.NewWorkbookWriter()
	}
	return p, nil
}

// Run executes the full batch: quota gate, collection, aggregation, ticket
// reconciliation, qualitative analysis, ranking and rendering. A ticket
// source failure degrades the run to source-only metrics; analyzer failures
// degrade per identity.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	runStart := time.Now()
	window, err := p.window()
	if err != nil {
		return Result{}, err
	}
	p.logger.Info(ctx, "run starting",
		logger.String("org", p.cfg.GitHubOrg),
		logger.Time("window_start", window.Start),
		logger.Time("window_end", window.End))

	if err := p.gateQuota(ctx); err != nil {
		return Result{}, err
	}

	bundle, err := p.collect(ctx, window)
	if err != nil {
		return Result{}, err
	}

	sourceMetrics := p.aggregate(ctx, bundle)

	ticketRecords, ticketMetrics, degraded := p.readTickets(ctx)

	resolution := p.resolve(ctx, sourceMetrics, ticketMetrics)

	records := derive.Enrich(merge.NewMerger().Merge(ctx, resolution, sourceMetrics, ticketMetrics))

	results := p.analyze(ctx, bundle, sourceMetrics)

	ranker := rank.NewRanker()
	ranked := ranker.Rank(ctx, records, results)
	summary := ranker.Summarize(ranked)

	in := report.NewInput(window, ranked, summary)
	in.Repos = bundle.Repos
	in.Commits = bundle.Commits
	in.Tickets = ticketRecords

	res := Result{
		RunID:      in.RunID,
		Window:     window,
		Engineers:  len(ranked),
		Matched:    len(resolution.Matched),
		SourceOnly: len(resolution.SourceOnly),
		TicketOnly: len(resolution.TicketOnly),
		Summary:    summary,
		Degraded:   degraded,
	}
	for _, r := range topByActivity(ranked, 5) {
		res.TopActivity = append(res.TopActivity, r.Key)
	}

	if err := os.MkdirAll(p.cfg.OutputDir, 0o755); err != nil {
		return res, fmt.Errorf("create output dir: %w", err)
	}
	res.WorkbookPath, err = p.renderWorkbook(ctx, in)
	if err != nil {
		return res, err
	}
	res.ReportPaths = p.renderDocuments(ctx, in, ranked)

	p.logger.Info(ctx, "run complete",
		logger.String("run_id", res.RunID),
		logger.Int("engineers", res.Engineers),
		logger.Int("matched", res.Matched),
		logger.String("workbook", res.WorkbookPath),
		logger.Duration("elapsed", time.Since(runStart)))

	return res, nil
}

func (p *Pipeline) window() (event.Window, error) {
	start, end, err := p.cfg.Window(time.Now().UTC())
	if err != nil {
		return event.Window{}, err
	}
	return event.Window{Start: start, End: end}, nil
}

// gateQuota refuses to start an expensive run against a nearly exhausted
// budget unless forced. A failing quota check is only a warning; the run
// itself will surface real API errors.
func (p *Pipeline) gateQuota(ctx context.Context) error {
	if p.quota == nil || p.force {
		return nil
	}

	q, err := p.quota.CheckQuota(ctx)
	if err != nil {
		p.logger.Warn(ctx, "quota check failed, proceeding", logger.Error(err))
		return nil
	}
	p.logger.Info(ctx, "api quota",
		logger.Int("remaining", q.Remaining),
		logger.Int("limit", q.Limit),
		logger.Time("reset", q.ResetAt))

	if q.Remaining < p.cfg.RateLimitBuffer {
		return fmt.Errorf("%w (remaining %d, buffer %d)", ErrQuotaLow, q.Remaining, p.cfg.RateLimitBuffer)
	}
	return nil
}

func (p *Pipeline) collect(ctx context.Context, window event.Window) (event.Bundle, error) {
	start := time.Now()
	bundle, err := p.collector.Collect(ctx, window)
	metrics.ObserveStageDuration("collect", time.Since(start).Seconds())
	if err != nil {
		return event.Bundle{}, fmt.Errorf("collect events: %w", err)
	}
	return bundle, nil
}

func (p *Pipeline) aggregate(ctx context.Context, bundle event.Bundle) map[string]aggregate.Metrics {
	start := time.Now()
	out := aggregate.New().Aggregate(ctx, bundle)
	metrics.ObserveStageDuration("aggregate", time.Since(start).Seconds())
	return out
}

// readTickets degrades to source-only metrics when the spreadsheet is not
// configured or unreadable.
func (p *Pipeline) readTickets(ctx context.Context) ([]ticket.Ticket, map[string]ticket.UserMetrics, bool) {
	if p.tickets == nil || p.cfg.SheetID == "" {
		p.logger.Info(ctx, "no ticket source configured, running source-only")
		return nil, map[string]ticket.UserMetrics{}, true
	}

	start := time.Now()
	defer func() {
		metrics.ObserveStageDuration("tickets", time.Since(start).Seconds())
	}()

	table, err := p.tickets.Read(ctx, p.cfg.SheetID, p.cfg.SheetName)
	if err != nil {
		p.logger.Warn(ctx, "ticket source failed, degrading to source-only", logger.Error(err))
		return nil, map[string]ticket.UserMetrics{}, true
	}

	tickets := ticket.Normalize(ctx, table.Headers, table.Rows)
	return tickets, ticket.MetricsByUser(tickets), false
}

func (p *Pipeline) resolve(ctx context.Context, source map[string]aggregate.Metrics, tickets map[string]ticket.UserMetrics) identity.Resolution {
	manual, err := mapping.Load(ctx, p.cfg.UserMappingFile)
	if err != nil {
		p.logger.Warn(ctx, "manual identity map unusable, skipping", logger.Error(err))
		manual = map[string]string{}
	}

	start := time.Now()
	resolution := identity.NewResolver(identity.WithManualMap(manual)).
		Resolve(ctx, sortedKeys(source), sortedKeys(tickets))
	metrics.ObserveStageDuration("resolve", time.Since(start).Seconds())
	return resolution
}

// analyze runs the qualitative pool over every identity with source
// activity. Identities without an analyzer result fall back to neutral.
func (p *Pipeline) analyze(ctx context.Context, bundle event.Bundle, source map[string]aggregate.Metrics) map[string]analysis.Result {
	if p.analyzer == nil {
		return nil
	}

	logins := make([]string, 0, len(source))
	for _, login := range sortedKeys(source) {
		if !identity.IsBot(login) {
			logins = append(logins, login)
		}
	}
	if len(logins) == 0 {
		return nil
	}

	commitsByLogin := make(map[string][]event.Commit)
	for _, c := range bundle.Commits {
		if c.Author.Login != "" {
			commitsByLogin[c.Author.Login] = append(commitsByLogin[c.Author.Login], c)
		}
	}
	reviewsByLogin := make(map[string][]event.Review)
	for _, pr := range bundle.PullRequests {
		for _, rv := range pr.Reviews {
			if rv.Reviewer.Login == "" {
				continue
			}
			reviewsByLogin[rv.Reviewer.Login] = append(reviewsByLogin[rv.Reviewer.Login], rv)
		}
	}

	pool := fetchpool.New(
		fetchpool.WithName[analysis.Result]("analysis"),
		fetchpool.WithWorkers[analysis.Result](p.cfg.AnalysisWorkers),
		fetchpool.WithTaskTimeout[analysis.Result](p.cfg.TaskTimeout),
	)

	start := time.Now()
	out := pool.Run(ctx, logins, func(ctx context.Context, login string) (analysis.Result, error) {
		diffs := p.sampleDiffs(ctx, login, commitsByLogin[login])
		var reviews []string
		for _, rv := range analyzer.SampleReviews(reviewsByLogin[login], p.cfg.SampleReviews) {
			reviews = append(reviews, fmt.Sprintf("PR #%d (%s), %s:\n%s", rv.PRNumber, rv.Repo, rv.State, rv.Body))
		}
		if len(diffs) == 0 && len(reviews) == 0 {
			return analysis.Fallback(), nil
		}
		return p.analyzer.Analyze(ctx, login, diffs, reviews, quantSummary(source[login])), nil
	}, analysis.Fallback())
	metrics.ObserveStageDuration("analyze", time.Since(start).Seconds())

	return out
}

func (p *Pipeline) sampleDiffs(ctx context.Context, login string, commits []event.Commit) []string {
	var diffs []string
	for _, c := range analyzer.SampleCommits(commits, p.cfg.SampleCommits) {
		diff, err := p.collector.CommitDiff(ctx, c.Repo, c.SHA)
		if err != nil || diff == "" {
			continue
		}
		diffs = append(diffs, fmt.Sprintf("Commit %s (%s): %s\n%s", c.SHA[:min(7, len(c.SHA))], c.Repo, c.Message, diff))
	}
	if diffs == nil {
		p.logger.Debug(ctx, "no diff samples", logger.String("login", login))
	}
	return diffs
}

func (p *Pipeline) renderWorkbook(ctx context.Context, in report.Input) (string, error) {
	base := p.cfg.OutputFilename
	if base == "" {
		base = defaultWorkbookBase
	}
	path := filepath.Join(p.cfg.OutputDir, report.TimestampedFilename(base, in.GeneratedAt, "xlsx"))

	start := time.Now()
	err := p.workbook.Write(ctx, path, in)
	metrics.ObserveStageDuration("render_workbook", time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("render workbook: %w", err)
	}
	return path, nil
}

// renderDocuments writes per-engineer reports for identities with source
// activity. Failures are per-document, never fatal to the run.
func (p *Pipeline) renderDocuments(ctx context.Context, in report.Input, ranked []rank.RankedRecord) []string {
	if !p.individualReports || p.documents == nil {
		return nil
	}

	byKey := make(map[string]rank.RankedRecord, len(ranked))
	var keys []string
	for _, r := range ranked {
		if r.Provenance == merge.ProvenanceTicketOnly || identity.IsBot(r.SourceID) {
			continue
		}
		byKey[r.Key] = r
		keys = append(keys, r.Key)
	}

	pool := fetchpool.New(
		fetchpool.WithName[string]("reports"),
		fetchpool.WithWorkers[string](p.cfg.ReportWorkers),
		fetchpool.WithTaskTimeout[string](p.cfg.TaskTimeout),
	)

	start := time.Now()
	paths := pool.Run(ctx, keys, func(ctx context.Context, key string) (string, error) {
		return p.documents.Write(ctx, in, byKey[key])
	}, "")
	metrics.ObserveStageDuration("render_documents", time.Since(start).Seconds())

	out := make([]string, 0, len(keys))
	for _, key := range keys {
		if paths[key] != "" {
			out = append(out, paths[key])
		}
	}
	sort.Strings(out)
	return out
}

func quantSummary(m aggregate.Metrics) string {
	return fmt.Sprintf(
		"%d commits (%.2f/day), %d PRs created, %d merged, %d reviews given, %d issues closed, complexity %.1f",
		m.TotalCommits, m.CommitFrequency, m.PRsCreated, m.PRsMerged,
		m.ReviewsGiven, m.IssuesClosed, m.TotalComplexity)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func topByActivity(ranked []rank.RankedRecord, n int) []rank.RankedRecord {
	top := make([]rank.RankedRecord, len(ranked))
	copy(top, ranked)
	sort.SliceStable(top, func(i, j int) bool {
		return top[i].ActivityScore > top[j].ActivityScore
	})
	if len(top) > n {
		top = top[:n]
	}
	return top
}
