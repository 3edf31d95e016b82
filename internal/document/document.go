package document

import (
	"context"
	"sort"
)

// ParameterSpec describes one user-tunable parameter discovered in a CAD
// document's parameter table.
type ParameterSpec struct {
	Name    string   `json:"name"`
	Default float64  `json:"default"`
	Min     *float64 `json:"min,omitempty"`
	Max     *float64 `json:"max,omitempty"`
	Unit    string   `json:"unit,omitempty"`
}

// Schema is the set of tunable parameters of a document, keyed by name.
type Schema map[string]ParameterSpec

// Specs returns the parameter specs sorted by name.
func (s Schema) Specs() []ParameterSpec {
	specs := make([]ParameterSpec, 0, len(s))
	for _, spec := range s {
		specs = append(specs, spec)
	}

	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs
}

// Constraint carries optional bounds and unit metadata declared outside the
// document itself, merged into the schema when the document is opened.
type Constraint struct {
	Min  *float64 `yaml:"min"`
	Max  *float64 `yaml:"max"`
	Unit string   `yaml:"unit"`
}

// MergeConstraints overlays externally declared bounds onto a schema read
// from a document. Constraints for parameters absent from the schema are
// ignored; the document is the authority on which parameters exist.
func MergeConstraints(schema Schema, constraints map[string]Constraint) {
	for name, constraint := range constraints {
		spec, ok := schema[name]
		if !ok {
			continue
		}

		spec.Min = constraint.Min
		spec.Max = constraint.Max
		if constraint.Unit != "" {
			spec.Unit = constraint.Unit
		}

		schema[name] = spec
	}
}

// Document is a request-scoped handle on a CAD source document. A handle is
// never shared between requests; all mutation stays in the request's private
// working copy and the on-disk source is never written.
type Document interface {
	// Schema returns the tunable parameters read from the document.
	Schema() Schema

	// Apply validates the requested values against the schema and stages
	// them on the handle. Parameters not present keep their defaults.
	Apply(values map[string]float64) error

	// Regenerate recomputes all geometry dependent on the staged values.
	Regenerate(ctx context.Context) error

	// ExportMesh writes the regenerated solids as a mesh file at outputPath.
	ExportMesh(ctx context.Context, outputPath string) error

	// Close releases the handle. It never touches the source document.
	Close() error
}

// Opener opens a request-scoped Document for a catalog source file, using
// workdir as the handle's private scratch space.
type Opener interface {
	Open(ctx context.Context, sourcePath, workdir string, constraints map[string]Constraint) (Document, error)
}
