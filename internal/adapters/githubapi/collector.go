package githubapi

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/google/go-github/v62/github"
	"golang.org/x/sync/errgroup"

	"github.com/teamlens/teamlens/internal/domain/event"
	"github.com/teamlens/teamlens/internal/domain/identity"
	"github.com/teamlens/teamlens/pkg/logger"
	"github.com/teamlens/teamlens/pkg/metrics"
)

const defaultWorkers = 5

// Project metadata is not exposed over REST, so the numeric difficulty
// rating rides on a label of this form.
const complexityLabelPrefix = "complexity:"

// Collector fans repository fetches out over a bounded worker group and
// assembles the per-run event bundle.
type Collector struct {
	client  *Client
	org     string
	workers int
}

// CollectorOption applies a configuration option to the Collector.
type CollectorOption func(*Collector)

// WithWorkers bounds the number of repositories fetched concurrently.
func WithWorkers(n int) CollectorOption {
	return func(c *Collector) {
		if n > 0 {
			c.workers = n
		}
	}
}

// NewCollector constructs a Collector for one organization.
func NewCollector(client *Client, org string, opts ...CollectorOption) *Collector {
	c := &Collector{client: client, org: org, workers: defaultWorkers}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Collect lists the organization's repositories and fetches commits, pull
// requests and closed issues for each inside the window. A failing
// repository is logged and skipped; the run only fails when no repository
// could be fetched at all.
func (c *Collector) Collect(ctx context.Context, window event.Window) (event.Bundle, error) {
	log := logger.Named("github")

	repos, err := c.listRepositories(ctx)
	if err != nil {
		return event.Bundle{}, err
	}
	if len(repos) == 0 {
		return event.Bundle{}, ErrNoRepos
	}
	log.Info(ctx, "repositories listed",
		logger.String("org", c.org),
		logger.Int("repos", len(repos)))

	bundle := event.Bundle{Window: window, Repos: repos}

	var mu sync.Mutex
	var failed int

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for _, repo := range repos {
		g.Go(func() error {
			commits, prs, issues, err := c.fetchRepo(gctx, repo, window)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				log.Warn(gctx, "repository fetch failed, skipping",
					logger.String("repo", repo.FullName),
					logger.Error(err))
				return nil
			}
			bundle.Commits = append(bundle.Commits, commits...)
			bundle.PullRequests = append(bundle.PullRequests, prs...)
			bundle.Issues = append(bundle.Issues, issues...)
			metrics.RecordRepoFetched()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return event.Bundle{}, err
	}
	if failed == len(repos) {
		return event.Bundle{}, ErrAllReposFail
	}

	log.Info(ctx, "collection complete",
		logger.Int("commits", len(bundle.Commits)),
		logger.Int("pull_requests", len(bundle.PullRequests)),
		logger.Int("issues", len(bundle.Issues)),
		logger.Int("failed_repos", failed))

	return bundle, nil
}

func (c *Collector) listRepositories(ctx context.Context) ([]event.Repository, error) {
	var repos []event.Repository
	opt := &github.RepositoryListByOrgOptions{
		Type:        "all",
		ListOptions: github.ListOptions{PerPage: pageSize},
	}
	for {
		var page []*github.Repository
		var resp *github.Response
		err := c.client.withRetry(ctx, "list repos", func() (*github.Response, error) {
			var err error
			page, resp, err = c.client.gh.Repositories.ListByOrg(ctx, c.org, opt)
			return resp, err
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrListRepos, err)
		}
		for _, r := range page {
			if r.GetArchived() {
				continue
			}
			repos = append(repos, event.Repository{
				Name:          r.GetName(),
				FullName:      r.GetFullName(),
				Private:       r.GetPrivate(),
				Archived:      r.GetArchived(),
				DefaultBranch: r.GetDefaultBranch(),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opt.Page = resp.NextPage
	}
	return repos, nil
}

func (c *Collector) fetchRepo(ctx context.Context, repo event.Repository, window event.Window) ([]event.Commit, []event.PullRequest, []event.Issue, error) {
	owner, name, ok := splitFullName(repo.FullName)
	if !ok {
		return nil, nil, nil, nil
	}

	commits, err := c.fetchCommits(ctx, owner, name, repo, window)
	if err != nil {
		return nil, nil, nil, err
	}
	prs, err := c.fetchPullRequests(ctx, owner, name, repo, window)
	if err != nil {
		return nil, nil, nil, err
	}
	issues, err := c.fetchIssues(ctx, owner, name, repo, window)
	if err != nil {
		return nil, nil, nil, err
	}
	return commits, prs, issues, nil
}

func (c *Collector) fetchCommits(ctx context.Context, owner, name string, repo event.Repository, window event.Window) ([]event.Commit, error) {
	var out []event.Commit
	opt := &github.CommitsListOptions{
		SHA:         repo.DefaultBranch,
		Since:       window.Start,
		Until:       window.End,
		ListOptions: github.ListOptions{PerPage: pageSize},
	}
	for {
		var page []*github.RepositoryCommit
		var resp *github.Response
		err := c.client.withRetry(ctx, "list commits", func() (*github.Response, error) {
			var err error
			page, resp, err = c.client.gh.Repositories.ListCommits(ctx, owner, name, opt)
			return resp, err
		})
		if err != nil {
			return nil, err
		}

		for _, rc := range page {
			actor := commitActor(rc)
			if identity.IsBot(actor.Login) {
				continue
			}
			cm := event.Commit{
				SHA:         rc.GetSHA(),
				Repo:        repo.FullName,
				Author:      actor,
				Message:     rc.GetCommit().GetMessage(),
				CommittedAt: rc.GetCommit().GetAuthor().GetDate().Time,
			}
			if stats := rc.GetStats(); stats != nil {
				cm.Additions = stats.GetAdditions()
				cm.Deletions = stats.GetDeletions()
			} else {
				cm.Additions, cm.Deletions = c.commitStats(ctx, owner, name, cm.SHA)
			}
			out = append(out, cm)
			metrics.RecordEventCollected("commit")
		}

		if resp.NextPage == 0 {
			break
		}
		opt.Page = resp.NextPage
	}
	return out, nil
}

// commitStats fetches the single-commit view, which unlike the list view
// carries line counts. Failures degrade to zero deltas.
func (c *Collector) commitStats(ctx context.Context, owner, name, sha string) (additions, deletions int) {
	var rc *github.RepositoryCommit
	err := c.client.withRetry(ctx, "get commit", func() (*github.Response, error) {
		var resp *github.Response
		var err error
		rc, resp, err = c.client.gh.Repositories.GetCommit(ctx, owner, name, sha, nil)
		return resp, err
	})
	if err != nil || rc.GetStats() == nil {
		return 0, 0
	}
	return rc.GetStats().GetAdditions(), rc.GetStats().GetDeletions()
}

func (c *Collector) fetchPullRequests(ctx context.Context, owner, name string, repo event.Repository, window event.Window) ([]event.PullRequest, error) {
	var out []event.PullRequest
	opt := &github.PullRequestListOptions{
		State:       "all",
		Sort:        "created",
		Direction:   "desc",
		ListOptions: github.ListOptions{PerPage: pageSize},
	}
	for {
		var page []*github.PullRequest
		var resp *github.Response
		err := c.client.withRetry(ctx, "list pull requests", func() (*github.Response, error) {
			var err error
			page, resp, err = c.client.gh.PullRequests.List(ctx, owner, name, opt)
			return resp, err
		})
		if err != nil {
			return nil, err
		}

		done := false
		for _, pr := range page {
			created := pr.GetCreatedAt().Time
			if created.After(window.End) {
				continue
			}
			if created.Before(window.Start) {
				// Sorted by creation descending, nothing older matters.
				done = true
				break
			}
			author := event.Actor{Login: pr.GetUser().GetLogin()}
			if identity.IsBot(author.Login) {
				continue
			}

			ev := event.PullRequest{
				Number:    pr.GetNumber(),
				Repo:      repo.FullName,
				Title:     pr.GetTitle(),
				Author:    author,
				CreatedAt: created,
			}
			// The list endpoint omits line counts.
			ev.Additions, ev.Deletions = c.prStats(ctx, owner, name, ev.Number)
			if t := pr.GetMergedAt(); !t.IsZero() {
				ev.MergedAt = &t.Time
			}
			if t := pr.GetClosedAt(); !t.IsZero() {
				ev.ClosedAt = &t.Time
			}
			reviews, err := c.fetchReviews(ctx, owner, name, ev.Number)
			if err == nil {
				ev.Reviews = reviews
			}
			out = append(out, ev)
			metrics.RecordEventCollected("pull_request")
		}

		if done || resp.NextPage == 0 {
			break
		}
		opt.Page = resp.NextPage
	}
	return out, nil
}

// prStats fetches the single pull request view for line counts. Failures
// degrade to zero deltas.
func (c *Collector) prStats(ctx context.Context, owner, name string, number int) (additions, deletions int) {
	var pr *github.PullRequest
	err := c.client.withRetry(ctx, "get pull request", func() (*github.Response, error) {
		var resp *github.Response
		var err error
		pr, resp, err = c.client.gh.PullRequests.Get(ctx, owner, name, number)
		return resp, err
	})
	if err != nil {
		return 0, 0
	}
	return pr.GetAdditions(), pr.GetDeletions()
}

func (c *Collector) fetchReviews(ctx context.Context, owner, name string, number int) ([]event.Review, error) {
	var out []event.Review
	opt := &github.ListOptions{PerPage: pageSize}
	for {
		var page []*github.PullRequestReview
		var resp *github.Response
		err := c.client.withRetry(ctx, "list reviews", func() (*github.Response, error) {
			var err error
			page, resp, err = c.client.gh.PullRequests.ListReviews(ctx, owner, name, number, opt)
			return resp, err
		})
		if err != nil {
			return nil, err
		}
		for _, rv := range page {
			login := rv.GetUser().GetLogin()
			if login == "" || identity.IsBot(login) {
				continue
			}
			out = append(out, event.Review{
				Repo:        owner + "/" + name,
				PRNumber:    number,
				Reviewer:    event.Actor{Login: login},
				State:       rv.GetState(),
				Body:        rv.GetBody(),
				SubmittedAt: rv.GetSubmittedAt().Time,
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opt.Page = resp.NextPage
	}
	return out, nil
}

func (c *Collector) fetchIssues(ctx context.Context, owner, name string, repo event.Repository, window event.Window) ([]event.Issue, error) {
	var out []event.Issue
	opt := &github.IssueListByRepoOptions{
		State:       "closed",
		Since:       window.Start,
		ListOptions: github.ListOptions{PerPage: pageSize},
	}
	for {
		var page []*github.Issue
		var resp *github.Response
		err := c.client.withRetry(ctx, "list issues", func() (*github.Response, error) {
			var err error
			page, resp, err = c.client.gh.Issues.ListByRepo(ctx, owner, name, opt)
			return resp, err
		})
		if err != nil {
			return nil, err
		}

		for _, is := range page {
			if is.IsPullRequest() {
				continue
			}
			closed := is.GetClosedAt().Time
			if closed.IsZero() || closed.Before(window.Start) || closed.After(window.End) {
				continue
			}

			ev := event.Issue{
				Number:    is.GetNumber(),
				Repo:      repo.FullName,
				Title:     is.GetTitle(),
				CreatedAt: is.GetCreatedAt().Time,
				ClosedAt:  &closed,
			}
			for _, l := range is.Labels {
				ev.Labels = append(ev.Labels, l.GetName())
			}
			if v, ok := complexityFromLabels(ev.Labels); ok {
				ev.Complexity = &v
			}
			ev.ClosedBy, ev.LinkedPRs = c.issueTimeline(ctx, owner, name, ev.Number)
			out = append(out, ev)
			metrics.RecordEventCollected("issue")
		}

		if resp.NextPage == 0 {
			break
		}
		opt.Page = resp.NextPage
	}
	return out, nil
}

// issueTimeline walks the issue timeline for the closing actor and the
// number of cross-referenced pull requests.
func (c *Collector) issueTimeline(ctx context.Context, owner, name string, number int) (event.Actor, int) {
	var closedBy event.Actor
	var linked int

	opt := &github.ListOptions{PerPage: pageSize}
	for {
		var page []*github.Timeline
		var resp *github.Response
		err := c.client.withRetry(ctx, "issue timeline", func() (*github.Response, error) {
			var err error
			page, resp, err = c.client.gh.Issues.ListIssueTimeline(ctx, owner, name, number, opt)
			return resp, err
		})
		if err != nil {
			return closedBy, linked
		}
		for _, item := range page {
			switch item.GetEvent() {
			case "closed":
				if closedBy.Login == "" {
					closedBy = event.Actor{Login: item.GetActor().GetLogin()}
				}
			case "cross-referenced":
				if item.GetSource().GetIssue().IsPullRequest() {
					linked++
				}
			}
		}
		if resp.NextPage == 0 {
			break
		}
		opt.Page = resp.NextPage
	}
	return closedBy, linked
}

// CommitDiff fetches the unified patch text of one commit, concatenated
// across its files. Used for qualitative diff sampling.
func (c *Collector) CommitDiff(ctx context.Context, fullName, sha string) (string, error) {
	owner, name, ok := splitFullName(fullName)
	if !ok {
		return "", fmt.Errorf("malformed repository name %q", fullName)
	}

	var rc *github.RepositoryCommit
	err := c.client.withRetry(ctx, "get commit diff", func() (*github.Response, error) {
		var resp *github.Response
		var err error
		rc, resp, err = c.client.gh.Repositories.GetCommit(ctx, owner, name, sha, nil)
		return resp, err
	})
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, f := range rc.Files {
		if f.GetPatch() == "" {
			continue
		}
		fmt.Fprintf(&b, "--- %s\n%s\n", f.GetFilename(), f.GetPatch())
	}
	return b.String(), nil
}

func commitActor(rc *github.RepositoryCommit) event.Actor {
	actor := event.Actor{
		Login: rc.GetAuthor().GetLogin(),
		Name:  rc.GetCommit().GetAuthor().GetName(),
		Email: rc.GetCommit().GetAuthor().GetEmail(),
	}
	return actor
}

func complexityFromLabels(labels []string) (float64, bool) {
	for _, l := range labels {
		rest, ok := strings.CutPrefix(strings.ToLower(strings.TrimSpace(l)), complexityLabelPrefix)
		if !ok {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(rest), 64)
		if err == nil {
			return v, true
		}
	}
	return 0, false
}

func splitFullName(full string) (owner, name string, ok bool) {
	owner, name, ok = strings.Cut(full, "/")
	return owner, name, ok && owner != "" && name != ""
}
