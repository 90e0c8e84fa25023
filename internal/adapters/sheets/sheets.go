// Package sheets reads the ticketing spreadsheet through the Google Sheets
// API and hands the raw table to the ticket normalizer.
package sheets

import (
	"context"
	"fmt"
	"os"

	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/teamlens/teamlens/pkg/logger"
	"github.com/teamlens/teamlens/pkg/metrics"
)

// Columns A through Z cover every sheet layout seen so far.
const readRange = "!A:Z"

// Table is one rectangular sheet read: a header row plus data rows.
type Table struct {
	Headers []string
	Rows    [][]string
}

// Reader fetches spreadsheet tabs.
type Reader struct {
	svc *sheetsapi.Service
}

// NewReader builds a Reader authenticated with a service account key file.
func NewReader(ctx context.Context, credentialsPath string) (*Reader, error) {
	if _, err := os.Stat(credentialsPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: credentials file %s not found", ErrCredentials, credentialsPath)
	}

	svc, err := sheetsapi.NewService(ctx,
		option.WithCredentialsFile(credentialsPath),
		option.WithScopes(sheetsapi.SpreadsheetsReadonlyScope))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCredentials, err)
	}

	return &Reader{svc: svc}, nil
}

// Read fetches one tab of a spreadsheet. An empty sheet returns an empty
// table, not an error.
func (r *Reader) Read(ctx context.Context, spreadsheetID, sheetName string) (Table, error) {
	log := logger.Named("sheets")

	metrics.RecordAPIRequest("sheets")
	resp, err := r.svc.Spreadsheets.Values.
		Get(spreadsheetID, sheetName+readRange).
		Context(ctx).
		Do()
	if err != nil {
		metrics.RecordAPIError("sheets")
		return Table{}, fmt.Errorf("%w: %s/%s: %v", ErrReadSheet, spreadsheetID, sheetName, err)
	}

	if len(resp.Values) == 0 {
		log.Warn(ctx, "spreadsheet tab is empty",
			logger.String("sheet", sheetName))
		return Table{}, nil
	}

	t := Table{Headers: toStrings(resp.Values[0])}
	for _, row := range resp.Values[1:] {
		t.Rows = append(t.Rows, toStrings(row))
	}

	log.Info(ctx, "spreadsheet read",
		logger.String("sheet", sheetName),
		logger.Int("rows", len(t.Rows)))

	return t, nil
}

func toStrings(row []interface{}) []string {
	out := make([]string, len(row))
	for i, cell := range row {
		out[i] = fmt.Sprint(cell)
	}
	return out
}
