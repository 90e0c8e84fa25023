// Package githubapi collects raw contribution events from the GitHub REST
// API for one organization and time window.
package githubapi

import "errors"

// Sentinel kinds for collection errors.
var (
	ErrListRepos    = errors.New("list organization repositories")
	ErrRateLimit    = errors.New("rate limit check")
	ErrQuotaLow     = errors.New("remaining API quota below buffer")
	ErrNoRepos      = errors.New("no repositories visible for organization")
	ErrAllReposFail = errors.New("every repository fetch failed")
)
