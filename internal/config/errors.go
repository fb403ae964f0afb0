package config

import "errors"

// ErrInvalidConfig wraps every Validate failure; ErrLoadConfig wraps file,
// parser and env layer failures.
var (
	ErrInvalidConfig = errors.New("invalid pipeline config")
	ErrLoadConfig    = errors.New("load pipeline config")
)
