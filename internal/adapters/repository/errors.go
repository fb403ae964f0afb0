package repository

import "errors"

// Sentinel kinds for repository errors.
var (
	ErrStoreClosed    = errors.New("store closed")
	ErrUnknownKind    = errors.New("unknown key kind")
	ErrCorruptKey     = errors.New("corrupt store key")
	ErrCorruptValue   = errors.New("corrupt store value")
	ErrUnknownBackend = errors.New("unknown store backend")
	ErrInvalidLimit   = errors.New("invalid limit")
	ErrUnknownOrder   = errors.New("unknown report order")
)
