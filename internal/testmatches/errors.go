package testmatches

import "errors"

// Sentinel errors.
var (
	ErrInvalidConfig = errors.New("invalid generator config")
	ErrVerify        = errors.New("verification failed")
)
