package database

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nself-org/chat-importer/internal/entities"
	"github.com/nself-org/chat-importer/internal/importer"
)

// GatewayOptions control how the store handles collisions with entities
// imported by a previous run over the same export.
type GatewayOptions struct {
	// PreserveIDs reuses the source-native id as the internal id when
	// it is free.
	PreserveIDs bool
	// OverwriteExisting updates an already-imported entity in place
	// instead of leaving it untouched.
	OverwriteExisting bool
}

// Gateway is the sqlite-backed persistence gateway. Re-importing the
// same export is idempotent: entities are keyed on their
// (import_source, imported_id) pair, and an existing row is returned
// (or updated, per options) instead of duplicated.
type Gateway struct {
	db   *gorm.DB
	opts GatewayOptions
}

// NewGateway creates a gateway over the given database.
func NewGateway(db *Database, opts GatewayOptions) *Gateway {
	return &Gateway{db: db.DB, opts: opts}
}

func (g *Gateway) CreateUser(ctx context.Context, email, handle, displayName, avatarURL string, meta importer.Metadata) (string, error) {
	var existing entities.User
	err := g.db.WithContext(ctx).
		Where("import_source = ? AND imported_id = ?", meta.ImportSource, meta.ImportedID).
		First(&existing).Error
	if err == nil {
		if g.opts.OverwriteExisting {
			existing.Email = email
			existing.Handle = handle
			existing.DisplayName = displayName
			existing.AvatarURL = avatarURL
			existing.ImportedAt = meta.ImportedAt
			if err := g.db.WithContext(ctx).Save(&existing).Error; err != nil {
				return "", err
			}
		}
		return existing.ID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", err
	}

	user := entities.User{
		ID:           g.newID(meta),
		Email:        email,
		Handle:       handle,
		DisplayName:  displayName,
		AvatarURL:    avatarURL,
		ImportSource: meta.ImportSource,
		ImportedID:   meta.ImportedID,
		ImportedAt:   meta.ImportedAt,
	}
	if err := g.db.WithContext(ctx).Create(&user).Error; err != nil {
		return "", err
	}
	return user.ID, nil
}

func (g *Gateway) CreateChannel(ctx context.Context, name, topic string, private bool, creatorID string, meta importer.Metadata) (string, error) {
	var existing entities.Channel
	err := g.db.WithContext(ctx).
		Where("import_source = ? AND imported_id = ?", meta.ImportSource, meta.ImportedID).
		First(&existing).Error
	if err == nil {
		if g.opts.OverwriteExisting {
			existing.Name = name
			existing.Topic = topic
			existing.Private = private
			existing.CreatorID = creatorID
			existing.ImportedAt = meta.ImportedAt
			if err := g.db.WithContext(ctx).Save(&existing).Error; err != nil {
				return "", err
			}
		}
		return existing.ID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", err
	}

	channel := entities.Channel{
		ID:           g.newID(meta),
		Name:         name,
		Topic:        topic,
		Private:      private,
		CreatorID:    creatorID,
		ImportSource: meta.ImportSource,
		ImportedID:   meta.ImportedID,
		ImportedAt:   meta.ImportedAt,
	}
	if err := g.db.WithContext(ctx).Create(&channel).Error; err != nil {
		return "", err
	}
	return channel.ID, nil
}

func (g *Gateway) AddChannelMembers(ctx context.Context, channelID string, memberIDs []string) error {
	for _, userID := range memberIDs {
		member := entities.ChannelMember{ChannelID: channelID, UserID: userID}
		err := g.db.WithContext(ctx).
			Where("channel_id = ? AND user_id = ?", channelID, userID).
			FirstOrCreate(&member).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func (g *Gateway) CreateMessage(ctx context.Context, content, authorID, channelID, parentID string, createdAt time.Time, meta importer.Metadata) (string, error) {
	var existing entities.Message
	err := g.db.WithContext(ctx).
		Where("import_source = ? AND imported_id = ?", meta.ImportSource, meta.ImportedID).
		First(&existing).Error
	if err == nil {
		if g.opts.OverwriteExisting {
			existing.Content = content
			existing.SentAt = createdAt
			existing.ImportedAt = meta.ImportedAt
			if err := g.db.WithContext(ctx).Save(&existing).Error; err != nil {
				return "", err
			}
		}
		return existing.ID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", err
	}

	message := entities.Message{
		ID:           g.newID(meta),
		ChannelID:    channelID,
		AuthorID:     authorID,
		ParentID:     parentID,
		Content:      content,
		SentAt:       createdAt,
		ImportSource: meta.ImportSource,
		ImportedID:   meta.ImportedID,
		ImportedAt:   meta.ImportedAt,
	}
	if err := g.db.WithContext(ctx).Create(&message).Error; err != nil {
		return "", err
	}
	return message.ID, nil
}

func (g *Gateway) CreateReaction(ctx context.Context, messageID, userID, emoji string) error {
	reaction := entities.Reaction{MessageID: messageID, UserID: userID, Emoji: emoji}
	return g.db.WithContext(ctx).
		Where("message_id = ? AND user_id = ? AND emoji = ?", messageID, userID, emoji).
		FirstOrCreate(&reaction).Error
}

func (g *Gateway) CreateFile(ctx context.Context, messageID, sourceURL, filename, mimeType string, sizeBytes int64) error {
	file := entities.File{
		MessageID: messageID,
		SourceURL: sourceURL,
		Filename:  filename,
		MimeType:  mimeType,
		SizeBytes: sizeBytes,
	}
	return g.db.WithContext(ctx).
		Where("message_id = ? AND source_url = ?", messageID, sourceURL).
		FirstOrCreate(&file).Error
}

func (g *Gateway) newID(meta importer.Metadata) string {
	if g.opts.PreserveIDs && meta.ImportedID != "" {
		return meta.ImportedID
	}
	return uuid.NewString()
}

// Compile-time interface check
var _ importer.Gateway = (*Gateway)(nil)
