package analyzer

import (
	"sort"
	"strings"

	"github.com/teamlens/teamlens/internal/domain/event"
)

// Moderate-size commits carry the most signal for quality review.
const (
	minSampleLines = 10
	maxSampleLines = 500
	recentFraction = 0.3
)

var revertPatterns = []string{
	`revert "`,
	"revert:",
	"revert ",
	"reverts commit",
	"reverted",
	"revert of",
	"revert pr",
}

// IsRevert reports whether a commit message announces a revert. Only the
// message head is checked; later mentions of the word are not.
func IsRevert(message string) bool {
	head := strings.ToLower(message)
	if len(head) > 50 {
		head = head[:50]
	}
	for _, p := range revertPatterns {
		if strings.Contains(head, p) {
			return true
		}
	}
	return false
}

func isMerge(message string) bool {
	return strings.HasPrefix(message, "Merge")
}

// SampleCommits picks up to n commits worth analyzing: merges and reverts
// dropped, the most recent third preferred, moderate-size diffs first.
func SampleCommits(commits []event.Commit, n int) []event.Commit {
	if n <= 0 || len(commits) == 0 {
		return nil
	}

	candidates := make([]event.Commit, 0, len(commits))
	for _, c := range commits {
		if isMerge(c.Message) || IsRevert(c.Message) {
			continue
		}
		candidates = append(candidates, c)
	}
	if len(candidates) == 0 {
		candidates = append(candidates, commits...)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].CommittedAt.After(candidates[j].CommittedAt)
	})

	recent := max(1, int(float64(len(candidates))*recentFraction))
	if recent < n {
		recent = min(len(candidates), n*2)
	}
	candidates = candidates[:recent]

	var moderate, rest []event.Commit
	for _, c := range candidates {
		if lines := c.Additions + c.Deletions; lines >= minSampleLines && lines <= maxSampleLines {
			moderate = append(moderate, c)
		} else {
			rest = append(rest, c)
		}
	}

	sampled := moderate
	if len(sampled) > n {
		sampled = sampled[:n]
	} else if len(sampled) < n {
		sampled = append(sampled, rest[:min(len(rest), n-len(sampled))]...)
	}
	return sampled
}

// SampleReviews picks up to n of the most recent substantive reviews, i.e.
// ones that carry body text or a non-approval state.
func SampleReviews(reviews []event.Review, n int) []event.Review {
	if n <= 0 || len(reviews) == 0 {
		return nil
	}

	candidates := make([]event.Review, 0, len(reviews))
	for _, r := range reviews {
		if strings.TrimSpace(r.Body) != "" || r.State == "CHANGES_REQUESTED" {
			candidates = append(candidates, r)
		}
	}
	if len(candidates) == 0 {
		candidates = append(candidates, reviews...)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].SubmittedAt.After(candidates[j].SubmittedAt)
	})

	if len(candidates) > n {
		candidates = candidates[:n]
	}
	return candidates
}
