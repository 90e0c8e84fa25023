package identity

import "strings"

// Known bot accounts, matched exactly after lowercasing.
var botAccounts = map[string]struct{}{
	"claude":              {},
	"dependabot":          {},
	"github-code-quality": {},
	"renovate":            {},
	"snyk":                {},
	"greenkeeper":         {},
	"codecov":             {},
	"sonarcloud":          {},
}

var botPatterns = []string{"[bot]", "-bot", "bot-", "bot_"}

// IsBot reports whether a login belongs to an automation account. Bot
// identities are excluded from individual reports and qualitative analysis.
func IsBot(login string) bool {
	l := strings.ToLower(login)

	if _, ok := botAccounts[l]; ok {
		return true
	}
	for _, p := range botPatterns {
		if strings.Contains(l, p) {
			return true
		}
	}
	return strings.HasSuffix(l, "bot") || strings.HasSuffix(l, "agent")
}
