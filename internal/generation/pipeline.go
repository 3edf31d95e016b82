package generation

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cadforge/meshgen/internal/catalog"
	"github.com/cadforge/meshgen/internal/config"
	"github.com/cadforge/meshgen/internal/document"
	"github.com/cadforge/meshgen/internal/mq"
	"github.com/cadforge/meshgen/internal/utils/hashutil"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Request is one generation job: a catalog model plus parameter overrides.
// Parameters left out keep the document's defaults.
type Request struct {
	Model         string
	Parameters    map[string]float64
	Preview       bool
	PreviewWidth  int
	PreviewHeight int
}

// Artifact holds the outputs of one successful pipeline run. The files live
// in a workdir owned exclusively by the originating request; Release removes
// them and must be called on every path once the response has been sent.
type Artifact struct {
	RequestID   string
	MeshPath    string
	MeshName    string
	PreviewPath string
	Warnings    []string

	workdir     string
	releaseOnce sync.Once
}

func (a *Artifact) Release() error {
	var err error
	a.releaseOnce.Do(func() {
		err = os.RemoveAll(a.workdir)
	})
	return err
}

// Renderer produces a raster preview of a mesh file.
type Renderer interface {
	Render(ctx context.Context, meshPath, imagePath string, width, height int) error
}

// Pipeline drives a request through schema loading, validation, mutation,
// regeneration, export and preview rendering, in that fixed order. Failure
// at any stage aborts the remaining stages and releases everything acquired;
// render failure alone is downgraded to a warning so the mesh is still
// delivered.
type Pipeline struct {
	catalog  *catalog.Catalog
	opener   document.Opener
	renderer Renderer
	mq       mq.MQ
	logger   *zap.Logger

	tempDir       string
	previewWidth  int
	previewHeight int
}

func NewPipeline(cfg *config.Config, cat *catalog.Catalog, opener document.Opener, renderer Renderer, queue mq.MQ, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		catalog:       cat,
		opener:        opener,
		renderer:      renderer,
		mq:            queue,
		logger:        logger,
		tempDir:       cfg.TempDir,
		previewWidth:  cfg.OpenSCAD.Width,
		previewHeight: cfg.OpenSCAD.Height,
	}
}

func (p *Pipeline) Generate(ctx context.Context, req Request) (*Artifact, error) {
	start := time.Now()
	requestID := uuid.NewString()
	paramsHash := hashutil.ParamsHash(req.Parameters)

	logger := p.logger.With(
		zap.String("id", requestID),
		zap.String("model", req.Model),
		zap.String("params_hash", paramsHash))

	fail := func(stage Stage, err error) (*Artifact, error) {
		logger.Warn("generation failed",
			zap.String("stage", string(stage)), zap.Error(err))

		p.publishEvent(ctx, Event{
			ID:         requestID,
			Model:      req.Model,
			ParamsHash: paramsHash,
			Parameters: req.Parameters,
			Status:     StatusFailed,
			Stage:      string(stage),
			Error:      err.Error(),
			DurationMs: time.Since(start).Milliseconds(),
		})

		return nil, &StageError{Stage: stage, Err: err}
	}

	// The catalog is consulted before anything is acquired; an unknown
	// model must not open a document or touch the filesystem.
	entry, ok := p.catalog.Get(req.Model)
	if !ok {
		return fail(StageLookup, &UnknownModelError{Model: req.Model, Known: p.catalog.Names()})
	}

	logger.Info("generation started", zap.Int("parameters", len(req.Parameters)))

	if err := os.MkdirAll(p.tempDir, os.ModePerm); err != nil {
		return fail(StageSetup, fmt.Errorf("failed to create temp dir: %w", err))
	}

	workdir := filepath.Join(p.tempDir, "gen-"+requestID)
	if err := os.Mkdir(workdir, 0o755); err != nil {
		return fail(StageSetup, fmt.Errorf("failed to create workdir: %w", err))
	}

	cleanup := func() { os.RemoveAll(workdir) }

	doc, err := p.opener.Open(ctx, entry.Path, workdir, entry.Constraints)
	if err != nil {
		cleanup()
		return fail(StageSchema, err)
	}
	defer doc.Close()

	if err := doc.Apply(req.Parameters); err != nil {
		cleanup()
		return fail(StageValidate, err)
	}

	if err := doc.Regenerate(ctx); err != nil {
		cleanup()
		return fail(StageRecompute, err)
	}

	meshName := fmt.Sprintf("%s_%s.stl", req.Model, paramsHash)
	meshPath := filepath.Join(workdir, meshName)

	if err := doc.ExportMesh(ctx, meshPath); err != nil {
		cleanup()
		return fail(StageExport, err)
	}

	artifact := &Artifact{
		RequestID: requestID,
		MeshPath:  meshPath,
		MeshName:  meshName,
		workdir:   workdir,
	}

	if req.Preview {
		p.renderPreview(ctx, req, artifact, logger)
	}

	logger.Info("generation completed",
		zap.String("mesh", meshName),
		zap.Bool("preview", artifact.PreviewPath != ""),
		zap.Duration("elapsed", time.Since(start)))

	p.publishEvent(ctx, Event{
		ID:         requestID,
		Model:      req.Model,
		ParamsHash: paramsHash,
		Parameters: req.Parameters,
		Status:     StatusCompleted,
		Preview:    artifact.PreviewPath != "",
		DurationMs: time.Since(start).Milliseconds(),
	})

	return artifact, nil
}

// renderPreview runs the external renderer. Render failures never fail the
// pipeline: the mesh is still deliverable without a preview.
func (p *Pipeline) renderPreview(ctx context.Context, req Request, artifact *Artifact, logger *zap.Logger) {
	width, height := req.PreviewWidth, req.PreviewHeight
	if width <= 0 {
		width = p.previewWidth
	}
	if height <= 0 {
		height = p.previewHeight
	}

	imagePath := strings.TrimSuffix(artifact.MeshPath, filepath.Ext(artifact.MeshPath)) + ".png"

	if err := p.renderer.Render(ctx, artifact.MeshPath, imagePath, width, height); err != nil {
		logger.Warn("preview render failed, delivering mesh without preview", zap.Error(err))
		artifact.Warnings = append(artifact.Warnings, fmt.Sprintf("preview render failed: %v", err))
		return
	}

	artifact.PreviewPath = imagePath
}
