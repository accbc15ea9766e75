package http

import (
	"github.com/nself-org/chat-importer/internal/database"
	"github.com/nself-org/chat-importer/internal/importer"
	"github.com/nself-org/chat-importer/internal/tasks"
)

// RouterConfig groups all dependencies the router needs, improving
// testability and reducing parameter count.
type RouterConfig struct {
	// Core dependencies
	Database   *database.Database
	Manager    *importer.Manager
	Runs       *database.RunRepository
	NewGateway func(cfg importer.Config) importer.Gateway

	// Background task queue. Nil makes every upload run synchronously.
	TaskClient *tasks.Client

	// Upload staging
	UploadsDir string

	// Import tuning
	FileWorkers int

	// Application info
	Version string
}
