package api

import (
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cadforge/meshgen/internal/app"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
)

// RenderPreview renders an uploaded mesh file to a PNG without going through
// the generation pipeline. The upload is the "mesh" form file; optional
// "width" and "height" form fields override the configured image size.
func RenderPreview(c *gin.Context) {
	app := c.MustGet("app").(*app.App)
	cfg := app.Config()

	upload, err := c.FormFile("mesh")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "missing mesh form file"})
		return
	}

	if !strings.EqualFold(filepath.Ext(upload.Filename), ".stl") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported_mesh", "message": "only .stl uploads are supported"})
		return
	}

	width, err := formInt(c, "width", cfg.OpenSCAD.Width)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}
	height, err := formInt(c, "height", cfg.OpenSCAD.Height)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}

	if err := os.MkdirAll(cfg.TempDir, os.ModePerm); err != nil {
		writeError(c, err)
		return
	}
	workdir, err := os.MkdirTemp(cfg.TempDir, "preview-")
	if err != nil {
		writeError(c, err)
		return
	}
	defer os.RemoveAll(workdir)

	meshPath := filepath.Join(workdir, "upload.stl")
	if err := c.SaveUploadedFile(upload, meshPath); err != nil {
		writeError(c, err)
		return
	}

	// Uploads claiming to be meshes but detected as something structured,
	// like an archive or an image, are rejected before hitting the renderer.
	mtype, err := mimetype.DetectFile(meshPath)
	if err != nil {
		writeError(c, err)
		return
	}
	if mtype.Is("application/zip") || strings.HasPrefix(mtype.String(), "image/") {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "unsupported_mesh",
			"message": "upload is " + mtype.String() + ", not a mesh",
		})
		return
	}

	imagePath := filepath.Join(workdir, "preview.png")
	if err := app.Renderer().Render(c.Request.Context(), meshPath, imagePath, width, height); err != nil {
		writeError(c, err)
		return
	}

	name := strings.TrimSuffix(upload.Filename, filepath.Ext(upload.Filename)) + ".png"
	c.FileAttachment(imagePath, name)
}

func formInt(c *gin.Context, field string, fallback int) (int, error) {
	raw := c.PostForm(field)
	if raw == "" {
		return fallback, nil
	}

	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return 0, &formFieldError{field: field, raw: raw}
	}

	return value, nil
}

type formFieldError struct {
	field string
	raw   string
}

func (e *formFieldError) Error() string {
	return e.field + " must be a positive integer, got " + strconv.Quote(e.raw)
}
