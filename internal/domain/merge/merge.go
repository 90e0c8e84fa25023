// Package merge flattens per-identity source metrics and ticket metrics into
// combined records keyed by a single identity.
package merge

import (
	"context"

	"github.com/teamlens/teamlens/internal/domain/aggregate"
	"github.com/teamlens/teamlens/internal/domain/identity"
	"github.com/teamlens/teamlens/internal/domain/ticket"
	"github.com/teamlens/teamlens/pkg/logger"
	"github.com/teamlens/teamlens/pkg/metrics"
)

// Provenance values describe which sides contributed to a record.
const (
	ProvenanceBoth       = "both"
	ProvenanceSourceOnly = "source-only"
	ProvenanceTicketOnly = "ticket-only"
)

// CombinedRecord holds one identity's source and ticket metrics side by
// side. Later stages append derived and ranking fields without touching the
// merged ones.
type CombinedRecord struct {
	Key        string
	SourceID   string
	TicketID   string
	Provenance string

	MatchMethod     string
	MatchConfidence float64

	Source aggregate.Metrics
	Ticket ticket.UserMetrics

	// Appended by the derive stage.
	CommitsPerTicket  float64
	ActivityScore     float64
	TicketClosureRate float64
}

// Merger builds combined records from a resolution and the two per-identity
// metric maps.
type Merger struct{}

// NewMerger constructs a Merger.
func NewMerger() *Merger {
	return &Merger{}
}

// Merge emits exactly one record per identity in the resolution: one for
// every matched pair, one per source-only identity and one per ticket-only
// identity. The absent side keeps its zero value. The record key is the
// source identity when present, the ticket name otherwise.
func (m *Merger) Merge(ctx context.Context, res identity.Resolution, source map[string]aggregate.Metrics, tickets map[string]ticket.UserMetrics) []CombinedRecord {
	records := make([]CombinedRecord, 0, len(res.Matched)+len(res.SourceOnly)+len(res.TicketOnly))

	for _, pair := range res.Matched {
		records = append(records, CombinedRecord{
			Key:             pair.SourceID,
			SourceID:        pair.SourceID,
			TicketID:        pair.TicketID,
			Provenance:      ProvenanceBoth,
			MatchMethod:     pair.Method,
			MatchConfidence: pair.Confidence,
			Source:          source[pair.SourceID],
			Ticket:          tickets[pair.TicketID],
		})
		metrics.RecordRecordMerged(ProvenanceBoth)
	}
	for _, id := range res.SourceOnly {
		records = append(records, CombinedRecord{
			Key:        id,
			SourceID:   id,
			Provenance: ProvenanceSourceOnly,
			Source:     source[id],
		})
		metrics.RecordRecordMerged(ProvenanceSourceOnly)
	}
	for _, id := range res.TicketOnly {
		records = append(records, CombinedRecord{
			Key:        id,
			TicketID:   id,
			Provenance: ProvenanceTicketOnly,
			Ticket:     tickets[id],
		})
		metrics.RecordRecordMerged(ProvenanceTicketOnly)
	}

	logger.Named("merge").Info(ctx, "records merged", logger.Int("records", len(records)))

	return records
}
