package entities

import (
	"time"
)

// User is an imported workspace member. The (ImportSource, ImportedID)
// pair carries the source-native identity for deduplication and
// auditing; it is the only durable trace of the import's id mapping.
type User struct {
	ID          string `gorm:"primaryKey;size:64" json:"id"`
	Email       string `gorm:"index;size:255" json:"email,omitempty"`
	Handle      string `gorm:"index;size:100" json:"handle"`
	DisplayName string `gorm:"size:255" json:"display_name"`
	AvatarURL   string `gorm:"size:2048" json:"avatar_url,omitempty"`

	ImportSource string    `gorm:"size:50;uniqueIndex:idx_users_imported" json:"import_source"`
	ImportedID   string    `gorm:"size:256;uniqueIndex:idx_users_imported" json:"imported_id"`
	ImportedAt   time.Time `json:"imported_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Channel is an imported conversation container.
type Channel struct {
	ID        string `gorm:"primaryKey;size:64" json:"id"`
	Name      string `gorm:"index;size:255" json:"name"`
	Topic     string `gorm:"type:text" json:"topic,omitempty"`
	Private   bool   `json:"private"`
	CreatorID string `gorm:"index;size:64" json:"creator_id,omitempty"`

	ImportSource string    `gorm:"size:50;uniqueIndex:idx_channels_imported" json:"import_source"`
	ImportedID   string    `gorm:"size:256;uniqueIndex:idx_channels_imported" json:"imported_id"`
	ImportedAt   time.Time `json:"imported_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ChannelMember links a user into a channel.
type ChannelMember struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	ChannelID string `gorm:"size:64;uniqueIndex:idx_channel_members" json:"channel_id"`
	UserID    string `gorm:"size:64;uniqueIndex:idx_channel_members" json:"user_id"`

	CreatedAt time.Time `json:"created_at"`
}

// Message is an imported message. ParentID is empty for channel-level
// messages and references the thread root for replies.
type Message struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	ChannelID string    `gorm:"index;size:64" json:"channel_id"`
	AuthorID  string    `gorm:"index;size:64" json:"author_id"`
	ParentID  string    `gorm:"index;size:64" json:"parent_id,omitempty"`
	Content   string    `gorm:"type:text" json:"content"`
	SentAt    time.Time `gorm:"index" json:"sent_at"`

	ImportSource string    `gorm:"size:50;uniqueIndex:idx_messages_imported" json:"import_source"`
	ImportedID   string    `gorm:"size:256;uniqueIndex:idx_messages_imported" json:"imported_id"`
	ImportedAt   time.Time `json:"imported_at"`

	CreatedAt time.Time `json:"created_at"`
}

// Reaction is an emoji reaction attributed to a user.
type Reaction struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	MessageID string `gorm:"size:64;uniqueIndex:idx_reactions" json:"message_id"`
	UserID    string `gorm:"size:64;uniqueIndex:idx_reactions" json:"user_id"`
	Emoji     string `gorm:"size:64;uniqueIndex:idx_reactions" json:"emoji"`

	CreatedAt time.Time `json:"created_at"`
}

// File is a message attachment. SourceURL points at the original
// platform's copy; downloading it is a storage concern outside this
// store.
type File struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	MessageID string `gorm:"index;size:64" json:"message_id"`
	SourceURL string `gorm:"size:2048" json:"source_url"`
	Filename  string `gorm:"size:512" json:"filename"`
	MimeType  string `gorm:"size:128" json:"mime_type,omitempty"`
	SizeBytes int64  `json:"size_bytes"`

	CreatedAt time.Time `json:"created_at"`
}
