// Package identity matches source identities (code-host logins) against
// ticket identities (free-text assignee names) across their two naming
// conventions.
package identity

import (
	"context"
	"strings"

	"github.com/teamlens/teamlens/pkg/logger"
	"github.com/teamlens/teamlens/pkg/metrics"
)

// Match methods, in the order the resolver applies them.
const (
	MethodExact  = "exact_case_insensitive"
	MethodManual = "manual_mapping"
	MethodFuzzy  = "fuzzy"
)

const defaultFuzzyThreshold = 0.70

// Match is one resolved pairing. Confidence is the similarity ratio for
// fuzzy matches and 1.0 otherwise.
type Match struct {
	SourceID   string
	TicketID   string
	Method     string
	Confidence float64
}

// Resolution partitions the two identity sets. Every input identity appears
// in exactly one of Matched, SourceOnly or TicketOnly.
type Resolution struct {
	Matched    []Match
	SourceOnly []string
	TicketOnly []string
}

// Resolver pairs ticket identities with source identities using three
// cascading passes: exact, manual mapping, fuzzy.
type Resolver struct {
	manual    map[string]string // ticket name -> source login
	threshold float64
}

// Option applies a configuration option to the Resolver.
type Option func(*Resolver)

// WithManualMap installs the manual override mapping.
func WithManualMap(m map[string]string) Option {
	return func(r *Resolver) {
		if m != nil {
			r.manual = m
		}
	}
}

// WithThreshold overrides the fuzzy similarity threshold.
func WithThreshold(t float64) Option {
	return func(r *Resolver) {
		if t > 0 && t < 1 {
			r.threshold = t
		}
	}
}

// NewResolver constructs a Resolver.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		manual:    map[string]string{},
		threshold: defaultFuzzyThreshold,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve runs the three passes. Each pass receives the identities still
// unclaimed by earlier passes and returns the next remaining state; input
// order is preserved throughout, which also fixes fuzzy tie-breaking to
// first-encountered order.
func (r *Resolver) Resolve(ctx context.Context, sourceIDs, ticketIDs []string) Resolution {
	log := logger.Named("identity")

	var matched []Match
	remSource := append([]string(nil), sourceIDs...)
	remTicket := append([]string(nil), ticketIDs...)

	matched, remSource, remTicket = r.exactPass(matched, remSource, remTicket)
	matched, remSource, remTicket = r.manualPass(matched, remSource, remTicket)
	matched, remSource, remTicket = r.fuzzyPass(ctx, log, matched, remSource, remTicket)

	for _, m := range matched {
		metrics.RecordIdentityMatch(m.Method)
	}
	log.Info(ctx, "identity resolution complete",
		logger.Int("matched", len(matched)),
		logger.Int("source_only", len(remSource)),
		logger.Int("ticket_only", len(remTicket)))

	return Resolution{Matched: matched, SourceOnly: remSource, TicketOnly: remTicket}
}

func (r *Resolver) exactPass(matched []Match, sources, tickets []string) ([]Match, []string, []string) {
	var remTickets []string
	for _, t := range tickets {
		idx := -1
		for i, s := range sources {
			if strings.EqualFold(t, s) {
				idx = i
				break
			}
		}
		if idx < 0 {
			remTickets = append(remTickets, t)
			continue
		}
		matched = append(matched, Match{SourceID: sources[idx], TicketID: t, Method: MethodExact, Confidence: 1.0})
		sources = append(sources[:idx:idx], sources[idx+1:]...)
	}
	return matched, sources, remTickets
}

func (r *Resolver) manualPass(matched []Match, sources, tickets []string) ([]Match, []string, []string) {
	var remTickets []string
	for _, t := range tickets {
		mapped, ok := r.manual[t]
		idx := -1
		if ok {
			for i, s := range sources {
				if s == mapped {
					idx = i
					break
				}
			}
		}
		if idx < 0 {
			remTickets = append(remTickets, t)
			continue
		}
		matched = append(matched, Match{SourceID: mapped, TicketID: t, Method: MethodManual, Confidence: 1.0})
		sources = append(sources[:idx:idx], sources[idx+1:]...)
	}
	return matched, sources, remTickets
}

// fuzzyPass is greedy: each ticket identity claims its best still-available
// source identity without reconsidering earlier pairings.
func (r *Resolver) fuzzyPass(ctx context.Context, log logger.Logger, matched []Match, sources, tickets []string) ([]Match, []string, []string) {
	var remTickets []string
	for _, t := range tickets {
		bestIdx := -1
		bestRatio := r.threshold
		tNorm := strings.ReplaceAll(strings.ToLower(t), " ", "")
		for i, s := range sources {
			sNorm := strings.NewReplacer("-", "", "_", "").Replace(strings.ToLower(s))
			if ratio := Ratio(tNorm, sNorm); ratio > bestRatio {
				bestRatio = ratio
				bestIdx = i
			}
		}
		if bestIdx < 0 {
			remTickets = append(remTickets, t)
			continue
		}
		log.Info(ctx, "fuzzy matched identities",
			logger.String("ticket", t),
			logger.String("source", sources[bestIdx]),
			logger.Float64("ratio", bestRatio))
		matched = append(matched, Match{SourceID: sources[bestIdx], TicketID: t, Method: MethodFuzzy, Confidence: bestRatio})
		sources = append(sources[:bestIdx:bestIdx], sources[bestIdx+1:]...)
	}
	return matched, sources, remTickets
}
