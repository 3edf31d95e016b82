package server

import (
	"net/http"

	"github.com/cadforge/meshgen/internal/api"
	"github.com/cadforge/meshgen/internal/app"

	"github.com/gin-gonic/gin"
)

func (s *Server) SetupRoutes(app *app.App) {
	s.ginEngine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	apiV1 := s.ginEngine.Group("/api/v1")

	apiV1.GET("/models", handlerWrapper(app, api.ListModels))
	apiV1.POST("/generate", handlerWrapper(app, api.GenerateModel))
	apiV1.POST("/preview", handlerWrapper(app, api.RenderPreview))
}

func handlerWrapper(app *app.App, f func(c *gin.Context)) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		ctx.Set("app", app)
		f(ctx)
	}
}

// Engine exposes the underlying router, used by tests to drive requests
// without a listening socket.
func (s *Server) Engine() *gin.Engine {
	return s.ginEngine
}
