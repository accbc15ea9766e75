package importer

import (
	"context"
	"time"
)

// Metadata accompanies every entity handed to the gateway. It is the
// only durable trace of the ID mapping table after a run ends and is
// what downstream deduplication/auditing keys on.
type Metadata struct {
	ImportSource string    `json:"import_source"`
	ImportedID   string    `json:"imported_id"`
	ImportedAt   time.Time `json:"imported_at"`
}

// Gateway creates entities in the target system. The orchestrator only
// calls it with fully resolved internal references; it never sees
// source-native ids outside of Metadata.
//
// Implementations:
//   - database.Gateway - sqlite-backed reference store
//   - test doubles in orchestrator tests
type Gateway interface {
	CreateUser(ctx context.Context, email, handle, displayName, avatarURL string, meta Metadata) (string, error)
	CreateChannel(ctx context.Context, name, topic string, private bool, creatorID string, meta Metadata) (string, error)
	AddChannelMembers(ctx context.Context, channelID string, memberIDs []string) error
	CreateMessage(ctx context.Context, content, authorID, channelID, parentID string, createdAt time.Time, meta Metadata) (string, error)
	CreateReaction(ctx context.Context, messageID, userID, emoji string) error
	CreateFile(ctx context.Context, messageID, sourceURL, filename, mimeType string, sizeBytes int64) error
}
