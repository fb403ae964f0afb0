package app

import (
	"errors"
	"fmt"
)

// Sentinel errors for fatal stage failures.
var (
	ErrEmptyInput        = errors.New("input has no records")
	ErrNoOutput          = errors.New("stage produced no output")
	ErrNodesTableMissing = errors.New("nodes table missing")
)

// StageError is a fatal failure of one pipeline stage.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// stageError wraps err for stage unless it already names a stage.
func stageError(stage string, err error) error {
	if err == nil {
		return nil
	}
	var se *StageError
	if errors.As(err, &se) {
		return err
	}
	return &StageError{Stage: stage, Err: err}
}
