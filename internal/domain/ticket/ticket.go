// Package ticket normalizes rows from the ticketing spreadsheet and
// aggregates them into per-assignee metrics.
package ticket

import (
	"context"
	"strings"
	"time"

	"github.com/teamlens/teamlens/pkg/logger"
	"github.com/teamlens/teamlens/pkg/metrics"
)

// Canonical column keys and the header names they map to, matched
// case-insensitively against the sheet's header row.
var expectedColumns = map[string]string{
	"title":               "Title",
	"priority":            "Priority",
	"type":                "Type",
	"assigned":            "Assigned",
	"reported_by":         "Reported by",
	"reported_time":       "Reported time (M/D/Y T(24))",
	"first_response_time": "First response time (M/D/Y T(24))",
	"closed_time":         "Closed time (M/D/Y T(24))",
	"duration":            "Duration",
	"bucket":              "Bucket",
	"github_issue":        "GitHub Issue",
	"notes":               "Notes",
	"root_cause_status":   "Root cause status",
}

// Date layouts seen in the sheet, tried in order.
var dateLayouts = []string{
	"1/2/2006 15:04",
	"1/2/2006 15:04:05",
	"1/2/06 15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Ticket is one normalized spreadsheet row.
type Ticket struct {
	Title           string
	Priority        string
	Type            string
	Assigned        string
	ReportedBy      string
	Duration        string
	Bucket          string
	CrossReference  string // e.g. a linked source-tracker issue
	Notes           string
	RootCauseStatus string

	ReportedAt      *time.Time
	FirstResponseAt *time.Time
	ClosedAt        *time.Time
}

// Closed reports whether the ticket has a closed timestamp.
func (t *Ticket) Closed() bool { return t.ClosedAt != nil }

// Normalize maps a rectangular table (header row + data rows) onto Tickets.
// Rows without a title are discarded; unparseable cells degrade to empty
// values rather than failing the row.
func Normalize(ctx context.Context, headers []string, rows [][]string) []Ticket {
	log := logger.Named("ticket")

	cols := mapColumns(headers)
	if _, ok := cols["title"]; !ok {
		log.Warn(ctx, "sheet has no recognizable title column; discarding all rows",
			logger.Int("rows", len(rows)))
		return nil
	}

	tickets := make([]Ticket, 0, len(rows))
	for i, row := range rows {
		t, ok := parseRow(cols, row)
		if !ok {
			metrics.RecordTicketDiscarded()
			log.Debug(ctx, "discarding titleless row", logger.Int("row", i+2))
			continue
		}
		metrics.RecordTicketNormalized()
		tickets = append(tickets, t)
	}

	log.Info(ctx, "normalized tickets",
		logger.Int("tickets", len(tickets)),
		logger.Int("rows", len(rows)))
	return tickets
}

// mapColumns resolves canonical keys to column indices, case-insensitively.
func mapColumns(headers []string) map[string]int {
	cols := make(map[string]int)
	for key, name := range expectedColumns {
		for i, h := range headers {
			if strings.EqualFold(strings.TrimSpace(h), name) {
				cols[key] = i
				break
			}
		}
	}
	return cols
}

func parseRow(cols map[string]int, row []string) (Ticket, bool) {
	cell := func(key string) string {
		idx, ok := cols[key]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	title := cell("title")
	if title == "" {
		return Ticket{}, false
	}

	return Ticket{
		Title:           title,
		Priority:        cell("priority"),
		Type:            cell("type"),
		Assigned:        cell("assigned"),
		ReportedBy:      cell("reported_by"),
		Duration:        cell("duration"),
		Bucket:          cell("bucket"),
		CrossReference:  cell("github_issue"),
		Notes:           cell("notes"),
		RootCauseStatus: cell("root_cause_status"),
		ReportedAt:      parseTime(cell("reported_time")),
		FirstResponseAt: parseTime(cell("first_response_time")),
		ClosedAt:        parseTime(cell("closed_time")),
	}, true
}

func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
