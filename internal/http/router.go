package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// NewRouter creates and configures the HTTP router with all endpoints.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	health := NewHealthController(cfg.Database, cfg.Version)
	router.GET("/health", health.Status)
	router.GET("/ping", func(c *gin.Context) {
		c.IndentedJSON(http.StatusOK, gin.H{"message": "pong"})
	})

	imports := NewImportsController(
		cfg.Manager,
		cfg.TaskClient,
		cfg.Runs,
		cfg.NewGateway,
		cfg.UploadsDir,
		cfg.FileWorkers,
	)
	router.POST("/api/imports", imports.Start)
	router.GET("/api/imports", imports.List)
	router.GET("/api/imports/:id", imports.Progress)
	router.POST("/api/imports/:id/cancel", imports.Cancel)

	return router
}
