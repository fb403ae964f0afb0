package validate

import "errors"

// Rejection classes. Every error returned by Parse wraps exactly one of them.
var (
	ErrMalformed        = errors.New("malformed record")
	ErrMissingField     = errors.New("missing field")
	ErrInvalidField     = errors.New("invalid field")
	ErrDeckCardinality  = errors.New("deck cardinality")
	ErrInvalidTimestamp = errors.New("invalid timestamp")
)

// Reason maps a rejection to a stable label for counters.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMalformed):
		return "malformed"
	case errors.Is(err, ErrMissingField):
		return "missing_field"
	case errors.Is(err, ErrInvalidField):
		return "invalid_field"
	case errors.Is(err, ErrDeckCardinality):
		return "deck_cardinality"
	case errors.Is(err, ErrInvalidTimestamp):
		return "invalid_timestamp"
	default:
		return "unknown"
	}
}
