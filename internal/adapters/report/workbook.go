package report

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/teamlens/teamlens/internal/domain/rank"
	"github.com/teamlens/teamlens/pkg/logger"
)

// Sheet names, in workbook order.
const (
	sheetSummary = "Summary"
	sheetTeam    = "Team Metrics"
	sheetRepos   = "Repository Breakdown"
	sheetTickets = "Ticket Details"
)

const (
	headerStyleFill = "4472C4"
	timeLayout      = "2006-01-02 15:04"
)

// WorkbookWriter renders the four-sheet Excel workbook.
type WorkbookWriter struct{}

// NewWorkbookWriter constructs a WorkbookWriter.
func NewWorkbookWriter() *WorkbookWriter {
	return &WorkbookWriter{}
}

// Write renders the workbook to path.
func (w *WorkbookWriter) Write(ctx context.Context, path string, in Input) error {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{headerStyleFill}},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return fmt.Errorf("workbook style: %w", err)
	}

	if err := w.summarySheet(f, in, headerStyle); err != nil {
		return err
	}
	if err := w.teamSheet(f, in, headerStyle); err != nil {
		return err
	}
	if err := w.repoSheet(f, in, headerStyle); err != nil {
		return err
	}
	if err := w.ticketSheet(f, in, headerStyle); err != nil {
		return err
	}

	// Drop the default sheet excelize creates.
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("delete default sheet: %w", err)
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}

	logger.Named("report").Info(ctx, "workbook written",
		logger.String("path", path),
		logger.Int("records", len(in.Records)))

	return nil
}

func (w *WorkbookWriter) summarySheet(f *excelize.File, in Input, headerStyle int) error {
	if _, err := f.NewSheet(sheetSummary); err != nil {
		return err
	}

	f.SetCellValue(sheetSummary, "A1", "Team Performance Summary")

	var commits, prs, reviews, tickets int
	var complexity float64
	for _, r := range in.Records {
		commits += r.Source.TotalCommits
		prs += r.Source.PRsCreated
		reviews += r.Source.ReviewsGiven
		tickets += r.Ticket.TotalTickets
		complexity += r.Source.TotalComplexity
	}

	rows := [][]any{
		{"Report Period", fmt.Sprintf("%s to %s",
			in.Window.Start.Format("2006-01-02"), in.Window.End.Format("2006-01-02"))},
		{"Generated", in.GeneratedAt.Format(timeLayout)},
		{"Run ID", in.RunID},
		{"Team Members", len(in.Records)},
		{"Total Commits", commits},
		{"Total PRs Created", prs},
		{"Total Reviews Given", reviews},
		{"Total Tickets", tickets},
		{"Total Complexity Score", complexity},
	}
	for i, row := range rows {
		cell := fmt.Sprintf("A%d", i+3)
		if err := f.SetSheetRow(sheetSummary, cell, &row); err != nil {
			return err
		}
	}

	top := topByActivity(in.Records, 5)
	headerRow := len(rows) + 5
	f.SetCellValue(sheetSummary, fmt.Sprintf("A%d", headerRow-1), "Top Contributors")
	header := []any{"Name", "Commits", "PRs", "Reviews", "Tickets", "Complexity", "Activity Score"}
	if err := f.SetSheetRow(sheetSummary, fmt.Sprintf("A%d", headerRow), &header); err != nil {
		return err
	}
	f.SetCellStyle(sheetSummary,
		fmt.Sprintf("A%d", headerRow), fmt.Sprintf("G%d", headerRow), headerStyle)
	for i, r := range top {
		row := []any{
			displayName(r), r.Source.TotalCommits, r.Source.PRsCreated,
			r.Source.ReviewsGiven, r.Ticket.TotalTickets,
			r.Source.TotalComplexity, r.ActivityScore,
		}
		if err := f.SetSheetRow(sheetSummary, fmt.Sprintf("A%d", headerRow+1+i), &row); err != nil {
			return err
		}
	}
	return nil
}

func (w *WorkbookWriter) teamSheet(f *excelize.File, in Input, headerStyle int) error {
	if _, err := f.NewSheet(sheetTeam); err != nil {
		return err
	}

	header := []any{
		"Username", "Display Name", "Email", "Provenance",
		"Commits", "Commit Freq", "Lines Added", "Lines Deleted", "Lines Changed",
		"PRs Created", "PRs Merged", "PR Merge Rate %", "Avg PR Size",
		"Issues Closed", "Complexity Score",
		"Reviews Given", "Reviews Received", "Review Participation", "Avg Review Time (hrs)",
		"Tickets", "Tickets Open", "Tickets Closed",
		"High Priority", "Medium Priority", "Low Priority",
		"Avg Resolution (hrs)", "Avg First Response (hrs)", "Cross-Referenced",
		"Commits/Ticket", "Ticket Closure Rate %", "Activity Score",
		"Composite Score", "Rank", "Percentile", "Tier", "Active Repos",
	}
	if err := f.SetSheetRow(sheetTeam, "A1", &header); err != nil {
		return err
	}
	last, _ := excelize.ColumnNumberToName(len(header))
	f.SetCellStyle(sheetTeam, "A1", last+"1", headerStyle)

	for i, r := range in.Records {
		row := []any{
			r.SourceID, displayName(r), r.Source.Email, r.Provenance,
			r.Source.TotalCommits, r.Source.CommitFrequency,
			r.Source.LinesAdded, r.Source.LinesDeleted, r.Source.LinesChanged,
			r.Source.PRsCreated, r.Source.PRsMerged, r.Source.PRMergeRate, r.Source.AvgPRSize,
			r.Source.IssuesClosed, r.Source.TotalComplexity,
			r.Source.ReviewsGiven, r.Source.ReviewsReceived,
			r.Source.ReviewParticipation, r.Source.AvgReviewLatency,
			r.Ticket.TotalTickets, r.Ticket.TicketsOpen, r.Ticket.TicketsClosed,
			r.Ticket.HighPriority, r.Ticket.MediumPriority, r.Ticket.LowPriority,
			r.Ticket.AvgResolutionHours, r.Ticket.AvgFirstResponseHours, r.Ticket.CrossReferenced,
			r.CommitsPerTicket, r.TicketClosureRate, r.ActivityScore,
			r.CompositeScore, r.Rank, r.Percentile, r.Tier,
			strings.Join(r.Source.ActiveRepos, ", "),
		}
		if err := f.SetSheetRow(sheetTeam, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return err
		}
	}

	if err := f.SetPanes(sheetTeam, &excelize.Panes{
		Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft",
	}); err != nil {
		return err
	}
	return f.AutoFilter(sheetTeam, "A1:"+last+"1", nil)
}

func (w *WorkbookWriter) repoSheet(f *excelize.File, in Input, headerStyle int) error {
	if _, err := f.NewSheet(sheetRepos); err != nil {
		return err
	}

	type repoAgg struct {
		commits      int
		contributors map[string]struct{}
	}
	byRepo := make(map[string]*repoAgg)
	for _, c := range in.Commits {
		agg, ok := byRepo[c.Repo]
		if !ok {
			agg = &repoAgg{contributors: make(map[string]struct{})}
			byRepo[c.Repo] = agg
		}
		agg.commits++
		if c.Author.Login != "" {
			agg.contributors[c.Author.Login] = struct{}{}
		}
	}

	header := []any{"Repository", "Commits", "Contributors", "Status"}
	if err := f.SetSheetRow(sheetRepos, "A1", &header); err != nil {
		return err
	}
	f.SetCellStyle(sheetRepos, "A1", "D1", headerStyle)

	for i, repo := range in.Repos {
		status := "Active"
		if repo.Archived {
			status = "Archived"
		}
		var commits, contributors int
		if agg, ok := byRepo[repo.FullName]; ok {
			commits = agg.commits
			contributors = len(agg.contributors)
		}
		row := []any{repo.FullName, commits, contributors, status}
		if err := f.SetSheetRow(sheetRepos, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return err
		}
	}
	return nil
}

func (w *WorkbookWriter) ticketSheet(f *excelize.File, in Input, headerStyle int) error {
	if _, err := f.NewSheet(sheetTickets); err != nil {
		return err
	}

	header := []any{
		"Title", "Priority", "Type", "Assigned", "Reported By",
		"Reported", "First Response", "Closed", "Duration", "Bucket",
		"Cross-Reference", "Notes", "Root Cause Status",
	}
	if err := f.SetSheetRow(sheetTickets, "A1", &header); err != nil {
		return err
	}
	f.SetCellStyle(sheetTickets, "A1", "M1", headerStyle)

	for i, t := range in.Tickets {
		row := []any{
			t.Title, t.Priority, t.Type, t.Assigned, t.ReportedBy,
			formatTime(t.ReportedAt), formatTime(t.FirstResponseAt), formatTime(t.ClosedAt),
			t.Duration, t.Bucket, t.CrossReference, t.Notes, t.RootCauseStatus,
		}
		if err := f.SetSheetRow(sheetTickets, fmt.Sprintf("A%d", i+2), &row); err != nil {
			return err
		}
	}
	return nil
}

func topByActivity(records []rank.RankedRecord, n int) []rank.RankedRecord {
	top := make([]rank.RankedRecord, len(records))
	copy(top, records)
	sort.SliceStable(top, func(i, j int) bool {
		return top[i].ActivityScore > top[j].ActivityScore
	})
	if len(top) > n {
		top = top[:n]
	}
	return top
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(timeLayout)
}

func displayName(r rank.RankedRecord) string {
	switch {
	case r.Source.DisplayName != "":
		return r.Source.DisplayName
	case r.SourceID != "":
		return r.SourceID
	default:
		return r.TicketID
	}
}
