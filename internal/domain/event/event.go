// Package event contains the raw activity records handed to the pipeline by
// the source-event provider. Records are immutable once fetched; the pipeline
// only reads them.
package event

import "time"

// Repository describes one repository in the scanned organization.
type Repository struct {
	Name          string
	FullName      string // owner/repo
	Private       bool
	Archived      bool
	DefaultBranch string
}

// Actor identifies the user behind an event. Login may be empty when the
// provider could not resolve the commit author to an account.
type Actor struct {
	Login string
	Name  string
	Email string
}

// Commit is a single commit on a repository's default branch.
type Commit struct {
	SHA         string
	Repo        string
	Author      Actor
	Message     string
	CommittedAt time.Time
	Additions   int
	Deletions   int
}

// Review is one review event attached to a pull request. Repo and PRNumber
// repeat the parent pull request's identity so reviews stay traceable after
// being regrouped per reviewer.
type Review struct {
	Repo        string
	PRNumber    int
	Reviewer    Actor
	State       string
	Body        string
	SubmittedAt time.Time
}

// PullRequest is a pull request created inside the window.
type PullRequest struct {
	Number    int
	Repo      string
	Title     string
	Author    Actor
	CreatedAt time.Time
	MergedAt  *time.Time
	ClosedAt  *time.Time
	Additions int
	Deletions int
	Reviews   []Review
}

// Issue is an issue closed inside the window. ClosedBy is the first closing
// actor from the issue timeline. Complexity carries the numeric difficulty
// rating from project metadata when one is attached.
type Issue struct {
	Number     int
	Repo       string
	Title      string
	CreatedAt  time.Time
	ClosedAt   *time.Time
	ClosedBy   Actor
	Labels     []string
	LinkedPRs  int
	Complexity *float64
}

// Window bounds one pipeline run.
type Window struct {
	Start time.Time
	End   time.Time
}

// Days returns the window length in whole days, never less than one.
func (w Window) Days() int {
	d := int(w.End.Sub(w.Start).Hours() / 24)
	if d < 1 {
		return 1
	}
	return d
}

// Bundle is everything the source-event provider collected for one run.
type Bundle struct {
	Window       Window
	Repos        []Repository
	Commits      []Commit
	PullRequests []PullRequest
	Issues       []Issue
}
