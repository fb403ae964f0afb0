package textio

import "errors"

// Sentinel errors for stage files.
var (
	ErrNotFound  = errors.New("input not found")
	ErrShortRow  = errors.New("row has too few fields")
	ErrBadNumber = errors.New("row has a malformed number")
)
