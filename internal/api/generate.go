package api

import (
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/cadforge/meshgen/internal/app"
	"github.com/cadforge/meshgen/internal/generation"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type PreviewSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type GenerateParams struct {
	Model       string             `json:"model" binding:"required"`
	Parameters  map[string]float64 `json:"parameters"`
	Preview     bool               `json:"preview"`
	PreviewSize *PreviewSize       `json:"preview_size"`
}

// GenerateModel runs the full generation pipeline for one request and streams
// the resulting mesh back. With preview enabled the response is a multipart
// body carrying both the mesh and the rendered image; a failed render is
// reported in the X-Preview-Error header instead of failing the request.
func GenerateModel(c *gin.Context) {
	app := c.MustGet("app").(*app.App)

	params := GenerateParams{}
	if err := c.ShouldBindJSON(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}

	req := generation.Request{
		Model:      params.Model,
		Parameters: params.Parameters,
		Preview:    params.Preview,
	}
	if params.PreviewSize != nil {
		req.PreviewWidth = params.PreviewSize.Width
		req.PreviewHeight = params.PreviewSize.Height
	}

	artifact, err := app.Pipeline().Generate(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	defer artifact.Release()

	if len(artifact.Warnings) > 0 {
		c.Header("X-Preview-Error", strings.Join(artifact.Warnings, "; "))
	}

	if artifact.PreviewPath == "" {
		c.FileAttachment(artifact.MeshPath, artifact.MeshName)
		return
	}

	if err := writeMultipartArtifact(c, artifact); err != nil {
		app.Logger.Warn("failed to stream generation artifact", zap.Error(err))
	}
}

// writeMultipartArtifact streams mesh and preview as two file parts. Headers
// go out before the first byte of the body, so pipeline errors can no longer
// change the status code here.
func writeMultipartArtifact(c *gin.Context, artifact *generation.Artifact) error {
	mw := multipart.NewWriter(c.Writer)
	c.Header("Content-Type", mw.FormDataContentType())
	c.Status(http.StatusOK)

	if err := writeFilePart(mw, "mesh", artifact.MeshPath, artifact.MeshName); err != nil {
		return err
	}
	if err := writeFilePart(mw, "preview", artifact.PreviewPath, filepath.Base(artifact.PreviewPath)); err != nil {
		return err
	}

	return mw.Close()
}

func writeFilePart(mw *multipart.Writer, field, path, name string) error {
	part, err := mw.CreateFormFile(field, name)
	if err != nil {
		return err
	}

	fh, err := os.Open(path)
	if err != nil {
		return err
	}
	defer fh.Close()

	_, err = io.Copy(part, fh)
	return err
}
