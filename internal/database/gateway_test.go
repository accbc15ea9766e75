package database

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nself-org/chat-importer/internal/entities"
	"github.com/nself-org/chat-importer/internal/importer"
)

func setupTestDB(t *testing.T) (*Database, func()) {
	t.Helper()

	dbPath := "./test_gateway_" + strings.ReplaceAll(t.Name(), "/", "_") + ".db"
	db, err := NewDatabase(dbPath)
	require.NoError(t, err)

	cleanup := func() {
		db.Close()
		os.Remove(dbPath)
	}
	return db, cleanup
}

func meta(source, id string) importer.Metadata {
	return importer.Metadata{
		ImportSource: source,
		ImportedID:   id,
		ImportedAt:   time.Now().UTC(),
	}
}

func TestGateway_CreateUser(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	gw := NewGateway(db, GatewayOptions{})
	ctx := context.Background()

	id, err := gw.CreateUser(ctx, "alice@example.com", "alice", "Alice", "", meta("discord", "U1"))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	var user entities.User
	require.NoError(t, db.DB.First(&user, "id = ?", id).Error)
	assert.Equal(t, "alice", user.Handle)
	assert.Equal(t, "discord", user.ImportSource)
	assert.Equal(t, "U1", user.ImportedID)
}

func TestGateway_CreateUser_DedupesOnSourceIdentity(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	gw := NewGateway(db, GatewayOptions{})
	ctx := context.Background()

	first, err := gw.CreateUser(ctx, "alice@example.com", "alice", "Alice", "", meta("discord", "U1"))
	require.NoError(t, err)

	// Same source identity again: existing id comes back, no new row,
	// and without OverwriteExisting the fields stay as they were.
	second, err := gw.CreateUser(ctx, "other@example.com", "alice2", "Alice Two", "", meta("discord", "U1"))
	require.NoError(t, err)
	assert.Equal(t, first, second)

	var count int64
	db.DB.Model(&entities.User{}).Count(&count)
	assert.Equal(t, int64(1), count)

	var user entities.User
	require.NoError(t, db.DB.First(&user, "id = ?", first).Error)
	assert.Equal(t, "alice", user.Handle)

	// A different source namespace is a different identity.
	third, err := gw.CreateUser(ctx, "alice@example.com", "alice", "Alice", "", meta("slack", "U1"))
	require.NoError(t, err)
	assert.NotEqual(t, first, third)
}

func TestGateway_CreateUser_OverwriteExisting(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	gw := NewGateway(db, GatewayOptions{OverwriteExisting: true})
	ctx := context.Background()

	first, err := gw.CreateUser(ctx, "alice@example.com", "alice", "Alice", "", meta("discord", "U1"))
	require.NoError(t, err)

	second, err := gw.CreateUser(ctx, "new@example.com", "alice", "Alice Renamed", "", meta("discord", "U1"))
	require.NoError(t, err)
	assert.Equal(t, first, second)

	var user entities.User
	require.NoError(t, db.DB.First(&user, "id = ?", first).Error)
	assert.Equal(t, "new@example.com", user.Email)
	assert.Equal(t, "Alice Renamed", user.DisplayName)
}

func TestGateway_PreserveIDs(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	gw := NewGateway(db, GatewayOptions{PreserveIDs: true})
	ctx := context.Background()

	id, err := gw.CreateUser(ctx, "", "alice", "Alice", "", meta("discord", "U1"))
	require.NoError(t, err)
	assert.Equal(t, "U1", id)

	channelID, err := gw.CreateChannel(ctx, "general", "", false, id, meta("discord", "C1"))
	require.NoError(t, err)
	assert.Equal(t, "C1", channelID)
}

func TestGateway_CreateChannelAndMembers(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	gw := NewGateway(db, GatewayOptions{})
	ctx := context.Background()

	u1, err := gw.CreateUser(ctx, "", "alice", "Alice", "", meta("slack", "U1"))
	require.NoError(t, err)
	u2, err := gw.CreateUser(ctx, "", "bob", "Bob", "", meta("slack", "U2"))
	require.NoError(t, err)

	channelID, err := gw.CreateChannel(ctx, "general", "talk", false, u1, meta("slack", "C1"))
	require.NoError(t, err)

	require.NoError(t, gw.AddChannelMembers(ctx, channelID, []string{u1, u2}))
	// Adding the same members twice is a no-op.
	require.NoError(t, gw.AddChannelMembers(ctx, channelID, []string{u1, u2}))

	var count int64
	db.DB.Model(&entities.ChannelMember{}).Where("channel_id = ?", channelID).Count(&count)
	assert.Equal(t, int64(2), count)
}

func TestGateway_CreateMessageWithThread(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	gw := NewGateway(db, GatewayOptions{})
	ctx := context.Background()
	sentAt := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	rootID, err := gw.CreateMessage(ctx, "root", "author-1", "channel-1", "", sentAt, meta("discord", "M1"))
	require.NoError(t, err)

	replyID, err := gw.CreateMessage(ctx, "reply", "author-2", "channel-1", rootID, sentAt.Add(time.Minute), meta("discord", "M2"))
	require.NoError(t, err)

	var reply entities.Message
	require.NoError(t, db.DB.First(&reply, "id = ?", replyID).Error)
	assert.Equal(t, rootID, reply.ParentID)
	assert.Equal(t, "channel-1", reply.ChannelID)
	assert.True(t, reply.SentAt.Equal(sentAt.Add(time.Minute)))
}

func TestGateway_CreateReaction_Dedupes(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	gw := NewGateway(db, GatewayOptions{})
	ctx := context.Background()

	require.NoError(t, gw.CreateReaction(ctx, "m1", "u1", "👍"))
	require.NoError(t, gw.CreateReaction(ctx, "m1", "u1", "👍"))
	require.NoError(t, gw.CreateReaction(ctx, "m1", "u1", "🎉"))

	var count int64
	db.DB.Model(&entities.Reaction{}).Where("message_id = ?", "m1").Count(&count)
	assert.Equal(t, int64(2), count)
}

func TestGateway_CreateFile_Dedupes(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	gw := NewGateway(db, GatewayOptions{})
	ctx := context.Background()

	require.NoError(t, gw.CreateFile(ctx, "m1", "https://cdn/a.png", "a.png", "image/png", 512))
	require.NoError(t, gw.CreateFile(ctx, "m1", "https://cdn/a.png", "a.png", "image/png", 512))

	var count int64
	db.DB.Model(&entities.File{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestRunRepository_SaveAndList(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewRunRepository(db)
	started := time.Now().Add(-time.Minute)

	result := &importer.Result{
		Success: true,
		Progress: importer.Progress{
			Status: importer.StatusCompleted,
			Warnings: []importer.Warning{
				{Kind: importer.WarningKindSkipped, Message: "user skipped: bot account", Item: "U9"},
			},
		},
		Stats: importer.Stats{UsersImported: 3, Duration: 42 * time.Second},
	}
	require.NoError(t, repo.SaveResult("run-1", "slack", started, result))

	runs, err := repo.List(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].ID)
	assert.Equal(t, "slack", runs[0].Platform)
	assert.True(t, runs[0].Success)
	assert.Contains(t, runs[0].Stats, `"users_imported":3`)
	assert.Contains(t, runs[0].Warnings, "bot account")

	got, err := repo.Get("run-1")
	require.NoError(t, err)
	assert.Equal(t, "completed", got.Status)

	_, err = repo.Get("missing")
	assert.Error(t, err)
}

func TestRunRepository_DeleteFinishedBefore(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewRunRepository(db)

	old := &importer.Result{Progress: importer.Progress{Status: importer.StatusCompleted}}
	require.NoError(t, repo.SaveResult("old-run", "discord", time.Now().Add(-72*time.Hour), old))
	require.NoError(t, repo.SaveResult("new-run", "discord", time.Now(), old))

	deleted, err := repo.DeleteFinishedBefore(time.Now().Add(-24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	runs, err := repo.List(0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "new-run", runs[0].ID)
}
