package fcstd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/cadforge/meshgen/internal/config"
	"github.com/cadforge/meshgen/internal/document"

	"go.uber.org/zap"
)

const (
	workingName     = "source.FCStd"
	regeneratedName = "regenerated.FCStd"
	paramsName      = "params.json"
	resultName      = "result.json"
)

// Opener opens FreeCAD .FCStd documents. One Opener serves all requests; the
// handles it returns are single-request.
type Opener struct {
	bin     string
	timeout time.Duration
	logger  *zap.Logger
}

func NewOpener(cfg config.FreeCADConfig, logger *zap.Logger) *Opener {
	return &Opener{
		bin:     cfg.Bin,
		timeout: time.Duration(cfg.TimeoutSec) * time.Second,
		logger:  logger,
	}
}

func (o *Opener) Open(ctx context.Context, sourcePath, workdir string, constraints map[string]document.Constraint) (document.Document, error) {
	schema, err := ReadSchema(sourcePath)
	if err != nil {
		return nil, err
	}
	document.MergeConstraints(schema, constraints)

	// FreeCAD mutates the document it opens in place. All parameter writes
	// and recomputes run against a copy in the request workdir; the shared
	// source file is never handed to freecadcmd.
	workingPath := filepath.Join(workdir, workingName)
	if err := copyFile(sourcePath, workingPath); err != nil {
		return nil, fmt.Errorf("failed to copy source document into workdir: %w", err)
	}

	return &Document{
		sourcePath:  sourcePath,
		workingPath: workingPath,
		workdir:     workdir,
		schema:      schema,
		staged:      map[string]float64{},
		bin:         o.bin,
		timeout:     o.timeout,
		logger:      o.logger,
	}, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}

	return out.Close()
}

// Document is a request-scoped handle on one .FCStd source file. Parameter
// writes are staged in memory and applied inside a freecadcmd run against
// the workdir copy, which also receives the regenerated document; the
// source file is never written.
type Document struct {
	sourcePath  string
	workingPath string
	workdir     string
	schema      document.Schema
	staged      map[string]float64
	bin         string
	timeout     time.Duration
	logger      *zap.Logger

	regeneratedPath string
	closed          bool
}

func (d *Document) Schema() document.Schema {
	return d.schema
}

var errDocumentClosed = errors.New("document handle is closed")

func (d *Document) Apply(values map[string]float64) error {
	if d.closed {
		return errDocumentClosed
	}

	for name, value := range values {
		spec, ok := d.schema[name]
		if !ok {
			return &document.UnknownParameterError{Name: name}
		}

		if math.IsNaN(value) || math.IsInf(value, 0) {
			return &document.InvalidParameterValueError{
				Name: name, Value: value, Reason: "value must be finite",
			}
		}

		if spec.Min != nil && value < *spec.Min {
			return &document.InvalidParameterValueError{
				Name: name, Value: value,
				Reason: fmt.Sprintf("below minimum %v", *spec.Min),
			}
		}

		if spec.Max != nil && value > *spec.Max {
			return &document.InvalidParameterValueError{
				Name: name, Value: value,
				Reason: fmt.Sprintf("above maximum %v", *spec.Max),
			}
		}
	}

	for name, value := range values {
		d.staged[name] = value
	}

	return nil
}

func (d *Document) Regenerate(ctx context.Context) error {
	if d.closed {
		return errDocumentClosed
	}

	paramsPath := filepath.Join(d.workdir, paramsName)
	data, err := json.Marshal(d.staged)
	if err != nil {
		return fmt.Errorf("failed to marshal staged parameters: %w", err)
	}
	if err := os.WriteFile(paramsPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write staged parameters: %w", err)
	}

	paths := macroPaths{
		SourcePath: d.workingPath,
		ParamsPath: paramsPath,
		OutputPath: filepath.Join(d.workdir, regeneratedName),
		ResultPath: filepath.Join(d.workdir, resultName),
	}

	macroPath := filepath.Join(d.workdir, "regenerate.py")
	if err := writeMacro(regenerateTemplate, macroPath, paths); err != nil {
		return fmt.Errorf("failed to write regenerate macro: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	d.logger.Debug("recomputing document",
		zap.String("source", d.sourcePath),
		zap.Int("parameters", len(d.staged)))

	result, err := runMacro(ctx, d.bin, macroPath, paths.ResultPath)
	if err != nil {
		return err
	}

	if !result.OK {
		switch result.Stage {
		case "schema":
			return &document.SchemaError{Path: d.sourcePath, Err: fmt.Errorf("%s", result.Message)}
		default:
			return &document.RecomputeError{Code: result.Code, Message: result.Message}
		}
	}

	d.regeneratedPath = paths.OutputPath
	return nil
}

func (d *Document) ExportMesh(ctx context.Context, outputPath string) error {
	if d.closed {
		return errDocumentClosed
	}

	sourcePath := d.regeneratedPath
	if sourcePath == "" {
		// Nothing was regenerated; export the workdir copy as opened.
		sourcePath = d.workingPath
	}

	paths := macroPaths{
		SourcePath: sourcePath,
		OutputPath: outputPath,
		ResultPath: filepath.Join(d.workdir, resultName),
	}

	macroPath := filepath.Join(d.workdir, "export.py")
	if err := writeMacro(exportTemplate, macroPath, paths); err != nil {
		return fmt.Errorf("failed to write export macro: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	result, err := runMacro(ctx, d.bin, macroPath, paths.ResultPath)
	if err != nil {
		return &document.ExportError{Reason: "export process failed", Err: err}
	}

	if !result.OK {
		return &document.ExportError{Reason: result.Message, Degenerate: result.Objects == 0}
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return &document.ExportError{Reason: "export produced no output file", Err: err}
	}
	if info.Size() == 0 {
		return &document.ExportError{Reason: "export produced an empty mesh", Degenerate: true}
	}

	d.logger.Debug("exported mesh",
		zap.String("output", outputPath),
		zap.Int("objects", result.Objects),
		zap.Int64("bytes", info.Size()))

	return nil
}

func (d *Document) Close() error {
	d.closed = true
	d.staged = nil
	return nil
}
