package scoring

import "errors"

// Sentinel errors for building the node table.
var (
	ErrEmptyNodeTable = errors.New("node table is empty")
	ErrInvalidNode    = errors.New("invalid node row")
)
