package mapping

import "errors"

var (
	// ErrReadMapping indicates the mapping file exists but could not be read.
	ErrReadMapping = errors.New("read identity mapping")
	// ErrParseMapping indicates the mapping file is not a JSON string map.
	ErrParseMapping = errors.New("parse identity mapping")
)
