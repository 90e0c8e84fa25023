// Package aggregate folds raw commit, pull-request and issue records into one
// immutable metrics bundle per source identity.
package aggregate

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/teamlens/teamlens/internal/domain/dedupe"
	"github.com/teamlens/teamlens/internal/domain/event"
	"github.com/teamlens/teamlens/pkg/logger"
	"github.com/teamlens/teamlens/pkg/metrics"
)

// Labels that disqualify an issue closure from being counted.
const (
	labelInvalid   = "invalid"
	labelDuplicate = "duplicate"
)

// Metrics is the frozen per-identity bundle produced by one run. Counts are
// non-negative; sample slices are copies owned by the record.
type Metrics struct {
	Login       string
	DisplayName string
	Email       string

	TotalCommits int
	LinesAdded   int
	LinesDeleted int
	LinesChanged int

	PRsCreated  int
	PRsMerged   int
	PRAdditions int
	PRDeletions int

	IssuesClosed int

	ReviewsGiven    int
	ReviewsReceived int
	ReviewLatencies []float64 // hours, one sample per review given

	ActiveRepos       []string
	ComplexitySamples []float64
	LastActive        time.Time

	// Derived at freeze time.
	CommitFrequency     float64 // commits per day over the window
	PRMergeRate         float64 // merged / created * 100
	AvgPRSize           float64 // (additions+deletions) / created
	ReviewParticipation float64 // given / received
	AvgReviewLatency    float64 // mean of ReviewLatencies
	TotalComplexity     float64 // sum of ComplexitySamples
}

// accumulator is the mutable per-identity state built while iterating events.
// It never leaves this package; freeze() converts it to a Metrics record.
type accumulator struct {
	displayName string
	email       string

	commits       int
	commitAdds    int
	commitDels    int
	prsCreated    int
	prsMerged     int
	prAdds        int
	prDels        int
	issuesClosed  int
	reviewsGiven  int
	reviewsRecv   int
	reviewLatency []float64
	activeRepos   map[string]struct{}
	complexity    []float64
	lastActive    time.Time
}

func newAccumulator() *accumulator {
	return &accumulator{activeRepos: make(map[string]struct{})}
}

// Aggregator builds per-identity metrics from a raw event bundle.
type Aggregator struct {
	tracker dedupe.Tracker
}

// Option applies a configuration option to the Aggregator.
type Option func(*Aggregator)

// WithTracker overrides the issue-attribution tracker.
func WithTracker(t dedupe.Tracker) Option {
	return func(a *Aggregator) {
		if t != nil {
			a.tracker = t
		}
	}
}

// New constructs an Aggregator.
func New(opts ...Option) *Aggregator {
	a := &Aggregator{
		tracker: dedupe.NewTracker(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Aggregate folds the bundle into one Metrics record per source identity.
// Events without a resolvable actor are skipped, not errors.
func (a *Aggregator) Aggregate(ctx context.Context, bundle event.Bundle) map[string]Metrics {
	accs := make(map[string]*accumulator)

	get := func(login string) *accumulator {
		acc, ok := accs[login]
		if !ok {
			acc = newAccumulator()
			accs[login] = acc
		}
		return acc
	}

	for i := range bundle.Commits {
		a.applyCommit(get, &bundle.Commits[i])
	}
	for i := range bundle.PullRequests {
		a.applyPullRequest(get, &bundle.PullRequests[i])
	}
	for i := range bundle.Issues {
		a.applyIssue(get, &bundle.Issues[i])
	}

	out := make(map[string]Metrics, len(accs))
	days := bundle.Window.Days()
	for login, acc := range accs {
		out[login] = acc.freeze(login, days)
	}
	metrics.UpdateIdentitiesTotal(len(out))

	logger.Named("aggregate").Info(ctx, "identities aggregated",
		logger.Int("identities", len(out)),
		logger.Int("commits", len(bundle.Commits)),
		logger.Int("pull_requests", len(bundle.PullRequests)),
		logger.Int("issues", len(bundle.Issues)))
	return out
}

func (a *Aggregator) applyCommit(get func(string) *accumulator, c *event.Commit) {
	if c.Author.Login == "" {
		metrics.RecordEventSkipped("commit_missing_actor")
		return
	}
	acc := get(c.Author.Login)
	if c.Author.Name != "" {
		acc.displayName = c.Author.Name
	}
	if c.Author.Email != "" {
		acc.email = c.Author.Email
	}
	acc.commits++
	acc.commitAdds += c.Additions
	acc.commitDels += c.Deletions
	acc.activeRepos[c.Repo] = struct{}{}
	if c.CommittedAt.After(acc.lastActive) {
		acc.lastActive = c.CommittedAt
	}
	metrics.RecordEventAggregated("commit")
}

func (a *Aggregator) applyPullRequest(get func(string) *accumulator, pr *event.PullRequest) {
	if pr.Author.Login == "" {
		metrics.RecordEventSkipped("pr_missing_actor")
		return
	}
	author := get(pr.Author.Login)
	author.prsCreated++
	author.activeRepos[pr.Repo] = struct{}{}
	if pr.MergedAt != nil {
		author.prsMerged++
	}
	author.prAdds += pr.Additions
	author.prDels += pr.Deletions

	for i := range pr.Reviews {
		rev := &pr.Reviews[i]
		if rev.Reviewer.Login == "" {
			metrics.RecordEventSkipped("review_missing_actor")
			continue
		}
		reviewer := get(rev.Reviewer.Login)
		reviewer.reviewsGiven++
		reviewer.reviewLatency = append(reviewer.reviewLatency, rev.SubmittedAt.Sub(pr.CreatedAt).Hours())
		author.reviewsRecv++
	}
	metrics.RecordEventAggregated("pull_request")
}

// applyIssue counts an issue closure only when it is not excluded by label,
// has at least one linked pull request, and has not been credited before.
func (a *Aggregator) applyIssue(get func(string) *accumulator, is *event.Issue) {
	if is.ClosedBy.Login == "" {
		metrics.RecordEventSkipped("issue_missing_actor")
		return
	}
	if excludedByLabel(is.Labels) {
		metrics.RecordEventSkipped("issue_excluded_label")
		return
	}
	if is.LinkedPRs == 0 {
		// An issue closed without any code change is not counted.
		metrics.RecordEventSkipped("issue_no_linked_pr")
		return
	}
	if a.tracker.SeenAndRecord(fmt.Sprintf("%s#%d", is.Repo, is.Number)) {
		metrics.RecordEventSkipped("issue_duplicate")
		return
	}

	acc := get(is.ClosedBy.Login)
	acc.issuesClosed++
	acc.activeRepos[is.Repo] = struct{}{}
	if is.Complexity != nil {
		acc.complexity = append(acc.complexity, *is.Complexity)
	}
	metrics.RecordEventAggregated("issue")
}

func excludedByLabel(labels []string) bool {
	for _, l := range labels {
		switch strings.ToLower(strings.TrimSpace(l)) {
		case labelInvalid, labelDuplicate:
			return true
		}
	}
	return false
}

// freeze converts the accumulator into an immutable Metrics record, computing
// the per-identity derived fields.
func (acc *accumulator) freeze(login string, windowDays int) Metrics {
	m := Metrics{
		Login:           login,
		DisplayName:     acc.displayName,
		Email:           acc.email,
		TotalCommits:    acc.commits,
		LinesAdded:      acc.commitAdds + acc.prAdds,
		LinesDeleted:    acc.commitDels + acc.prDels,
		PRsCreated:      acc.prsCreated,
		PRsMerged:       acc.prsMerged,
		PRAdditions:     acc.prAdds,
		PRDeletions:     acc.prDels,
		IssuesClosed:    acc.issuesClosed,
		ReviewsGiven:    acc.reviewsGiven,
		ReviewsReceived: acc.reviewsRecv,
		LastActive:      acc.lastActive,
	}
	if m.DisplayName == "" {
		m.DisplayName = login
	}
	m.LinesChanged = m.LinesAdded + m.LinesDeleted

	m.ReviewLatencies = append([]float64(nil), acc.reviewLatency...)
	m.ComplexitySamples = append([]float64(nil), acc.complexity...)

	m.ActiveRepos = make([]string, 0, len(acc.activeRepos))
	for repo := range acc.activeRepos {
		m.ActiveRepos = append(m.ActiveRepos, repo)
	}
	sort.Strings(m.ActiveRepos)

	if windowDays < 1 {
		windowDays = 1
	}
	m.CommitFrequency = round2(float64(m.TotalCommits) / float64(windowDays))
	if m.PRsCreated > 0 {
		m.PRMergeRate = round1(float64(m.PRsMerged) / float64(m.PRsCreated) * 100)
		m.AvgPRSize = math.Round(float64(m.PRAdditions+m.PRDeletions) / float64(m.PRsCreated))
	}
	if m.ReviewsReceived > 0 {
		m.ReviewParticipation = round2(float64(m.ReviewsGiven) / float64(m.ReviewsReceived))
	}
	if len(m.ReviewLatencies) > 0 {
		var sum float64
		for _, v := range m.ReviewLatencies {
			sum += v
		}
		m.AvgReviewLatency = round1(sum / float64(len(m.ReviewLatencies)))
	}
	for _, v := range m.ComplexitySamples {
		m.TotalComplexity += v
	}
	return m
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
