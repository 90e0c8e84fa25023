package report

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/go-pdf/fpdf"

	"github.com/teamlens/teamlens/internal/domain/rank"
	"github.com/teamlens/teamlens/pkg/logger"
)

// PDFWriter renders one performance report document per engineer.
type PDFWriter struct {
	outputDir string
}

// NewPDFWriter constructs a PDFWriter targeting outputDir.
func NewPDFWriter(outputDir string) *PDFWriter {
	return &PDFWriter{outputDir: outputDir}
}

// Write renders the report for one ranked record and returns the file path.
func (p *PDFWriter) Write(ctx context.Context, in Input, r rank.RankedRecord) (string, error) {
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetTitle(fmt.Sprintf("Performance Report: %s", displayName(r)), false)
	doc.AddPage()

	p.titleBlock(doc, in, r)
	p.metricsBlock(doc, r)
	p.analysisBlock(doc, r)
	p.insightsBlock(doc, r)
	p.rankingBlock(doc, r, in.Summary.Total)

	name := TimestampedFilename("report_"+displayName(r), in.GeneratedAt, "pdf")
	path := filepath.Join(p.outputDir, name)
	if err := doc.OutputFileAndClose(path); err != nil {
		return "", fmt.Errorf("write pdf %s: %w", path, err)
	}

	logger.Named("report").Debug(ctx, "pdf written",
		logger.String("path", path),
		logger.String("identity", r.Key))

	return path, nil
}

func (p *PDFWriter) titleBlock(doc *fpdf.Fpdf, in Input, r rank.RankedRecord) {
	doc.SetFont("Helvetica", "B", 20)
	doc.CellFormat(0, 12, "Engineering Performance Report", "", 1, "C", false, 0, "")

	doc.SetFont("Helvetica", "", 14)
	doc.CellFormat(0, 10, displayName(r), "", 1, "C", false, 0, "")

	doc.SetFont("Helvetica", "", 10)
	period := fmt.Sprintf("Period: %s to %s",
		in.Window.Start.Format("2006-01-02"), in.Window.End.Format("2006-01-02"))
	doc.CellFormat(0, 8, period, "", 1, "C", false, 0, "")
	doc.Ln(6)
}

func (p *PDFWriter) metricsBlock(doc *fpdf.Fpdf, r rank.RankedRecord) {
	p.sectionTitle(doc, "Quantitative Metrics")

	rows := [][2]string{
		{"Commits", fmt.Sprintf("%d (%.2f/day)", r.Source.TotalCommits, r.Source.CommitFrequency)},
		{"Lines Changed", fmt.Sprintf("+%d / -%d", r.Source.LinesAdded, r.Source.LinesDeleted)},
		{"Pull Requests", fmt.Sprintf("%d created, %d merged (%.1f%%)",
			r.Source.PRsCreated, r.Source.PRsMerged, r.Source.PRMergeRate)},
		{"Reviews", fmt.Sprintf("%d given, %d received", r.Source.ReviewsGiven, r.Source.ReviewsReceived)},
		{"Issues Closed", fmt.Sprintf("%d", r.Source.IssuesClosed)},
		{"Complexity Score", fmt.Sprintf("%.1f", r.Source.TotalComplexity)},
		{"Tickets", fmt.Sprintf("%d total, %d closed", r.Ticket.TotalTickets, r.Ticket.TicketsClosed)},
		{"Activity Score", fmt.Sprintf("%.1f", r.ActivityScore)},
	}
	doc.SetFont("Helvetica", "", 10)
	for _, row := range rows {
		doc.SetFont("Helvetica", "B", 10)
		doc.CellFormat(60, 7, row[0], "1", 0, "L", false, 0, "")
		doc.SetFont("Helvetica", "", 10)
		doc.CellFormat(0, 7, row[1], "1", 1, "L", false, 0, "")
	}
	doc.Ln(4)
}

func (p *PDFWriter) analysisBlock(doc *fpdf.Fpdf, r rank.RankedRecord) {
	p.sectionTitle(doc, "Qualitative Analysis")

	doc.SetFont("Helvetica", "", 10)
	if !r.Analysis.Available {
		doc.MultiCell(0, 6, "Qualitative analysis was not available for this run.", "", "L", false)
		doc.Ln(4)
		return
	}

	doc.MultiCell(0, 6, fmt.Sprintf("Code quality %.1f/10, maintainability %.1f/10. %s",
		r.Analysis.Code.QualityScore, r.Analysis.Code.MaintainabilityScore,
		r.Analysis.Code.Summary), "", "L", false)
	doc.Ln(2)
	doc.MultiCell(0, 6, fmt.Sprintf("Review thoroughness %.1f/10, helpfulness %.1f/10. %s",
		r.Analysis.Review.ThoroughnessScore, r.Analysis.Review.HelpfulnessScore,
		r.Analysis.Review.Summary), "", "L", false)
	doc.Ln(4)
}

func (p *PDFWriter) insightsBlock(doc *fpdf.Fpdf, r rank.RankedRecord) {
	if !r.Analysis.Available {
		return
	}

	p.sectionTitle(doc, "Strengths")
	p.bulletList(doc, r.Analysis.Insights.Strengths)

	p.sectionTitle(doc, "Areas for Improvement")
	p.bulletList(doc, r.Analysis.Insights.Improvements)

	if r.Analysis.Insights.OverallSummary != "" {
		p.sectionTitle(doc, "Summary")
		doc.SetFont("Helvetica", "", 10)
		doc.MultiCell(0, 6, r.Analysis.Insights.OverallSummary, "", "L", false)
		doc.Ln(4)
	}
}

func (p *PDFWriter) rankingBlock(doc *fpdf.Fpdf, r rank.RankedRecord, cohort int) {
	p.sectionTitle(doc, "Performance Ranking")

	doc.SetFont("Helvetica", "", 10)
	doc.MultiCell(0, 6, fmt.Sprintf(
		"Rank %d of %d (percentile %.1f, tier %s). Composite score %.2f: complexity component %.2f, other component %.2f.",
		r.Rank, cohort, r.Percentile, r.Tier,
		r.CompositeScore, r.ComplexityComponent, r.OtherComponent), "", "L", false)
}

func (p *PDFWriter) sectionTitle(doc *fpdf.Fpdf, title string) {
	doc.SetFont("Helvetica", "B", 13)
	doc.CellFormat(0, 9, title, "", 1, "L", false, 0, "")
}

func (p *PDFWriter) bulletList(doc *fpdf.Fpdf, items []string) {
	doc.SetFont("Helvetica", "", 10)
	if len(items) == 0 {
		doc.MultiCell(0, 6, "- none recorded", "", "L", false)
	}
	for _, item := range items {
		doc.MultiCell(0, 6, "- "+item, "", "L", false)
	}
	doc.Ln(2)
}
