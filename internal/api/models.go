package api

import (
	"net/http"

	"github.com/cadforge/meshgen/internal/app"
	"github.com/cadforge/meshgen/internal/document"
	"github.com/cadforge/meshgen/internal/document/fcstd"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type modelInfo struct {
	Name       string                   `json:"name"`
	Parameters []document.ParameterSpec `json:"parameters"`
}

// ListModels reports every catalog model with its current parameter schema.
// Schemas are re-read per request so edits to a model file on disk show up
// without a restart; the catalog itself only pins name and path.
func ListModels(c *gin.Context) {
	app := c.MustGet("app").(*app.App)

	names := app.Catalog().Names()
	models := make([]modelInfo, 0, len(names))
	for _, name := range names {
		entry, ok := app.Catalog().Get(name)
		if !ok {
			continue
		}

		schema, err := fcstd.ReadSchema(entry.Path)
		if err != nil {
			app.Logger.Warn("skipping model with unreadable schema",
				zap.String("model", name), zap.Error(err))
			continue
		}
		document.MergeConstraints(schema, entry.Constraints)

		models = append(models, modelInfo{Name: name, Parameters: schema.Specs()})
	}

	c.JSON(http.StatusOK, gin.H{"models": models})
}
