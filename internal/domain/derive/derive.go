// Package derive appends cross-source ratio metrics to combined records.
package derive

import (
	"math"

	"github.com/teamlens/teamlens/internal/domain/merge"
)

// Fixed activity weights. These are policy constants, not tunables.
const (
	weightCommit = 1.0
	weightPR     = 2.0
	weightReview = 1.5
	weightTicket = 1.0
)

// Enrich returns a copy of the records with commits-per-ticket, activity
// score and ticket closure rate filled in. The input slice is not modified.
func Enrich(records []merge.CombinedRecord) []merge.CombinedRecord {
	out := make([]merge.CombinedRecord, len(records))
	for i, r := range records {
		if r.Ticket.TotalTickets > 0 {
			r.CommitsPerTicket = round1(float64(r.Source.TotalCommits) / float64(r.Ticket.TotalTickets))
			r.TicketClosureRate = round1(float64(r.Ticket.TicketsClosed) / float64(r.Ticket.TotalTickets) * 100)
		}
		r.ActivityScore = round1(float64(r.Source.TotalCommits)*weightCommit +
			float64(r.Source.PRsCreated)*weightPR +
			float64(r.Source.ReviewsGiven)*weightReview +
			float64(r.Ticket.TotalTickets)*weightTicket)
		out[i] = r
	}
	return out
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
