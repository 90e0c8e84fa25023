package ticket

import (
	"math"
	"strings"
)

// UserMetrics is the per-assignee ticket aggregate, the spreadsheet-side
// analogue of the source-event metrics bundle.
type UserMetrics struct {
	Assignee string

	TotalTickets   int
	TicketsOpen    int
	TicketsClosed  int
	HighPriority   int
	MediumPriority int
	LowPriority    int

	Types map[string]int

	AvgResolutionHours    float64
	AvgFirstResponseHours float64
	CrossReferenced       int
}

// MetricsByUser aggregates tickets into one UserMetrics per assignee.
// Unassigned tickets are skipped.
func MetricsByUser(tickets []Ticket) map[string]UserMetrics {
	type acc struct {
		m          UserMetrics
		resolution []float64
		response   []float64
	}
	accs := make(map[string]*acc)

	for i := range tickets {
		t := &tickets[i]
		assigned := strings.TrimSpace(t.Assigned)
		if assigned == "" {
			continue
		}

		a, ok := accs[assigned]
		if !ok {
			a = &acc{m: UserMetrics{Assignee: assigned, Types: make(map[string]int)}}
			accs[assigned] = a
		}

		a.m.TotalTickets++
		if t.Closed() {
			a.m.TicketsClosed++
		} else {
			a.m.TicketsOpen++
		}

		switch prio := strings.ToLower(t.Priority); {
		case strings.Contains(prio, "high"):
			a.m.HighPriority++
		case strings.Contains(prio, "med"):
			a.m.MediumPriority++
		case strings.Contains(prio, "low"):
			a.m.LowPriority++
		}

		if typ := strings.TrimSpace(t.Type); typ != "" {
			a.m.Types[typ]++
		}

		if t.ReportedAt != nil && t.ClosedAt != nil {
			a.resolution = append(a.resolution, t.ClosedAt.Sub(*t.ReportedAt).Hours())
		}
		if t.ReportedAt != nil && t.FirstResponseAt != nil {
			a.response = append(a.response, t.FirstResponseAt.Sub(*t.ReportedAt).Hours())
		}
		if t.CrossReference != "" {
			a.m.CrossReferenced++
		}
	}

	out := make(map[string]UserMetrics, len(accs))
	for assigned, a := range accs {
		a.m.AvgResolutionHours = roundedMean(a.resolution)
		a.m.AvgFirstResponseHours = roundedMean(a.response)
		out[assigned] = a.m
	}
	return out
}

func roundedMean(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, v := range samples {
		sum += v
	}
	return math.Round(sum/float64(len(samples))*10) / 10
}
