package generation

import "fmt"

// Stage identifies a pipeline stage, used to tag failures.
type Stage string

const (
	StageLookup    Stage = "lookup"
	StageSetup     Stage = "setup"
	StageSchema    Stage = "schema"
	StageValidate  Stage = "validate"
	StageRecompute Stage = "recompute"
	StageExport    Stage = "export"
	StageRender    Stage = "render"
)

// UnknownModelError indicates a request for a model not in the catalog.
type UnknownModelError struct {
	Model string
	Known []string
}

func (e *UnknownModelError) Error() string {
	return fmt.Sprintf("unknown model %q, must be one of %v", e.Model, e.Known)
}

// StageError wraps a failure with the stage it occurred at. Stages after the
// failed one never ran.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("generation failed at stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
