package config

// Default paths
const (
	// DefaultDatabasePath is the default path for the workspace database
	DefaultDatabasePath = "./chat-importer.db"

	// DefaultUploadsDir is where staged export payloads are written
	// before a background import run picks them up
	DefaultUploadsDir = "./uploads"
)
