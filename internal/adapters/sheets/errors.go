package sheets

import "errors"

var (
	// ErrCredentials indicates the service account key is missing or unusable.
	ErrCredentials = errors.New("sheets credentials")
	// ErrReadSheet indicates the spreadsheet fetch itself failed.
	ErrReadSheet = errors.New("read spreadsheet")
)
