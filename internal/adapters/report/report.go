// Package report renders the final ranked records into an Excel workbook
// and optional per-engineer PDF reports.
package report

import (
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/teamlens/teamlens/internal/domain/event"
	"github.com/teamlens/teamlens/internal/domain/rank"
	"github.com/teamlens/teamlens/internal/domain/ticket"
)

// Input is everything the renderers consume. Read-only.
type Input struct {
	RunID       string
	GeneratedAt time.Time
	Window      event.Window
	Records     []rank.RankedRecord
	Summary     rank.Summary
	Repos       []event.Repository
	Commits     []event.Commit
	Tickets     []ticket.Ticket
}

// NewInput stamps the run identity onto the renderer input.
func NewInput(window event.Window, records []rank.RankedRecord, summary rank.Summary) Input {
	return Input{
		RunID:       uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
		Window:      window,
		Records:     records,
		Summary:     summary,
	}
}

var (
	invalidFilenameChars = regexp.MustCompile(`[<>:"/\\|?*]`)
	spaceRun             = regexp.MustCompile(`\s+`)
	underscoreRun        = regexp.MustCompile(`_+`)
)

// SanitizeFilename strips characters the filesystem rejects and collapses
// whitespace into single underscores.
func SanitizeFilename(name string) string {
	name = invalidFilenameChars.ReplaceAllString(name, "")
	name = spaceRun.ReplaceAllString(name, "_")
	return underscoreRun.ReplaceAllString(name, "_")
}

// TimestampedFilename appends the generation time to a base name.
func TimestampedFilename(base string, at time.Time, ext string) string {
	return fmt.Sprintf("%s_%s.%s", SanitizeFilename(base), at.Format("20060102_150405"), ext)
}
