package document

import "fmt"

// SchemaError indicates the document's parameter table is absent or
// unreadable.
type SchemaError struct {
	Path string
	Err  error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("failed to read parameter schema from %s: %v", e.Path, e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// UnknownParameterError indicates a requested parameter name that does not
// exist in the document's schema.
type UnknownParameterError struct {
	Name string
}

func (e *UnknownParameterError) Error() string {
	return fmt.Sprintf("unknown parameter %q", e.Name)
}

// InvalidParameterValueError indicates a requested value that fails
// per-parameter validation.
type InvalidParameterValueError struct {
	Name   string
	Value  float64
	Reason string
}

func (e *InvalidParameterValueError) Error() string {
	return fmt.Sprintf("invalid value %v for parameter %q: %s", e.Value, e.Name, e.Reason)
}

// RecomputeError indicates the document could not be recomputed with the
// applied parameters. This is an expected failure mode for jointly
// infeasible parameter combinations, not an internal fault.
type RecomputeError struct {
	Code    int
	Message string
}

func (e *RecomputeError) Error() string {
	return fmt.Sprintf("recompute failed (code %d): %s", e.Code, e.Message)
}

// ExportError indicates mesh export failed. Degenerate is true when the
// document regenerated cleanly but produced no exportable solids.
type ExportError struct {
	Reason     string
	Degenerate bool
	Err        error
}

func (e *ExportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("mesh export failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("mesh export failed: %s", e.Reason)
}

func (e *ExportError) Unwrap() error { return e.Err }
