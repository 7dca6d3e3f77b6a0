package report

import (
	"errors"
	"fmt"
)

// Stage identifies which phase of report generation failed, so callers can
// react differently (retry the upload vs retry the request).
type Stage string

const (
	StageIngest   Stage = "ingestion"
	StageAllocate Stage = "allocation"
	StageRender   Stage = "rendering"
)

// StageError wraps a failure with the pipeline stage it occurred in.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// StageOf returns the failing stage, or "" when err carries no stage.
func StageOf(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}
