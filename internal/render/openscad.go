package render

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/cadforge/meshgen/internal/config"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/anthonynsimon/bild/transform"
	"go.uber.org/zap"
)

// Error reports a failed preview render. Renders require an offscreen
// display surface; providing one (Xvfb or similar) is the deployment
// environment's job, and a missing display surfaces here as a process error.
type Error struct {
	ExitCode int
	Output   string
	Timeout  bool
}

func (e *Error) Error() string {
	if e.Timeout {
		return "render process timed out"
	}
	return fmt.Sprintf("render process failed (exit code %d): %s", e.ExitCode, e.Output)
}

// Renderer produces raster previews of mesh files by running OpenSCAD
// against a generated wrapper model that imports the mesh.
type Renderer struct {
	bin     string
	timeout time.Duration
	logger  *zap.Logger
}

func NewRenderer(cfg config.OpenSCADConfig, logger *zap.Logger) *Renderer {
	return &Renderer{
		bin:     cfg.Bin,
		timeout: time.Duration(cfg.TimeoutSec) * time.Second,
		logger:  logger,
	}
}

func (r *Renderer) Render(ctx context.Context, meshPath, imagePath string, width, height int) error {
	meshPath, err := filepath.Abs(meshPath)
	if err != nil {
		return fmt.Errorf("failed to resolve mesh path: %w", err)
	}
	imagePath, err = filepath.Abs(imagePath)
	if err != nil {
		return fmt.Errorf("failed to resolve image path: %w", err)
	}

	scratch, err := os.MkdirTemp("", "meshgen-render-")
	if err != nil {
		return fmt.Errorf("failed to create render scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	wrapperPath := filepath.Join(scratch, "preview.scad")
	wrapper := fmt.Sprintf("import(%q, convexity=1);", filepath.ToSlash(meshPath))
	if err := os.WriteFile(wrapperPath, []byte(wrapper), 0o644); err != nil {
		return fmt.Errorf("failed to write wrapper model: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.bin,
		"-o", imagePath,
		"--autocenter",
		"--viewall",
		fmt.Sprintf("--imgsize=%d,%d", width, height),
		wrapperPath,
	)

	r.logger.Debug("rendering preview", zap.Strings("args", cmd.Args))

	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return &Error{Timeout: true}
		}
		if exitErr, ok := err.(*exec.ExitError); ok {
			return &Error{ExitCode: exitErr.ExitCode(), Output: strings.TrimSpace(string(output))}
		}
		return &Error{ExitCode: -1, Output: err.Error()}
	}

	// OpenSCAD reports some failures on stdout while still exiting zero.
	if strings.Contains(string(output), "ERROR:") {
		os.Remove(imagePath)
		return &Error{Output: strings.TrimSpace(string(output))}
	}

	return r.normalizeSize(imagePath, width, height)
}

// normalizeSize resizes the rendered image when OpenSCAD ignores the exact
// requested imgsize, which it does for some aspect ratios.
func (r *Renderer) normalizeSize(imagePath string, width, height int) error {
	img, err := imgio.Open(imagePath)
	if err != nil {
		return &Error{Output: fmt.Sprintf("render produced an unreadable image: %v", err)}
	}

	bounds := img.Bounds()
	if bounds.Dx() == width && bounds.Dy() == height {
		return nil
	}

	r.logger.Debug("resizing preview",
		zap.Int("got_width", bounds.Dx()), zap.Int("got_height", bounds.Dy()),
		zap.Int("width", width), zap.Int("height", height))

	resized := transform.Resize(img, width, height, transform.Linear)
	if err := imgio.Save(imagePath, resized, imgio.PNGEncoder()); err != nil {
		return fmt.Errorf("failed to save resized preview: %w", err)
	}

	return nil
}
