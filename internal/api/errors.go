package api

import (
	"errors"
	"net/http"

	"github.com/cadforge/meshgen/internal/document"
	"github.com/cadforge/meshgen/internal/generation"
	"github.com/cadforge/meshgen/internal/render"

	"github.com/gin-gonic/gin"
)

// writeError maps a pipeline error onto an HTTP status and a stable machine
// readable code. Client mistakes are 4xx; anything the CAD or render backends
// got wrong is 5xx.
func writeError(c *gin.Context, err error) {
	status, code := classifyError(err)
	c.JSON(status, gin.H{"error": code, "message": err.Error()})
}

func classifyError(err error) (int, string) {
	var (
		unknownModel *generation.UnknownModelError
		unknownParam *document.UnknownParameterError
		invalidValue *document.InvalidParameterValueError
		schemaErr    *document.SchemaError
		recomputeErr *document.RecomputeError
		exportErr    *document.ExportError
		renderErr    *render.Error
	)

	switch {
	case errors.As(err, &unknownModel):
		return http.StatusNotFound, "unknown_model"
	case errors.As(err, &unknownParam):
		return http.StatusBadRequest, "unknown_parameter"
	case errors.As(err, &invalidValue):
		return http.StatusBadRequest, "invalid_parameter_value"
	case errors.As(err, &schemaErr):
		return http.StatusInternalServerError, "schema_error"
	case errors.As(err, &recomputeErr):
		return http.StatusInternalServerError, "recompute_failed"
	case errors.As(err, &exportErr):
		return http.StatusInternalServerError, "export_failed"
	case errors.As(err, &renderErr):
		return http.StatusInternalServerError, "render_failed"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
