package adapters

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nself-org/chat-importer/internal/importer"
)

func TestGenericAdapter_Parse_Envelope(t *testing.T) {
	a := &GenericAdapter{}
	payload := `{
	  "users": [{"user_id": "u1", "username": "alice", "email": "alice@example.com"}],
	  "channels": [{"channel_id": "c1", "name": "general", "topic": "talk"}],
	  "messages": [{"id": "m1", "user_id": "u1", "channel_id": "c1", "text": "hello", "created_at": "2024-06-01T12:00:00Z"}]
	}`
	require.NoError(t, a.Parse([]byte(payload)))

	users := a.ExtractUsers()
	require.Len(t, users, 1)
	assert.Equal(t, "u1", users[0].SourceID)
	assert.Equal(t, "alice", users[0].Handle)
	assert.Equal(t, "alice@example.com", users[0].Email)

	channels := a.ExtractChannels()
	require.Len(t, channels, 1)
	assert.Equal(t, "c1", channels[0].SourceID)
	assert.Equal(t, "talk", channels[0].Topic)

	messages := a.ExtractMessages()
	require.Len(t, messages, 1)
	assert.Equal(t, "m1", messages[0].SourceID)
	assert.Equal(t, "u1", messages[0].AuthorSourceID)
	assert.Equal(t, "c1", messages[0].ChannelSourceID)
	assert.Equal(t, "hello", messages[0].Content)
	assert.Equal(t, time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC), messages[0].Timestamp)
}

func TestGenericAdapter_Parse_RejectsUnrecognizedObject(t *testing.T) {
	a := &GenericAdapter{}
	err := a.Parse([]byte(`{"books": []}`))
	require.Error(t, err)

	var ierr *importer.Error
	require.ErrorAs(t, err, &ierr)
	assert.Equal(t, importer.ErrorKindValidation, ierr.Kind)
}

func TestGenericAdapter_Parse_RejectsEmptyPayload(t *testing.T) {
	a := &GenericAdapter{}
	assert.Error(t, a.Parse(nil))
	assert.Error(t, a.Parse([]byte("   ")))
}

func TestGenericAdapter_Parse_MessageArrayWithDerivedRoster(t *testing.T) {
	a := &GenericAdapter{}
	payload := `[
	  {"sender": "alice", "body": "first", "date": "2024-06-01 10:00:00"},
	  {"sender": "bob", "body": "second", "date": "2024-06-01 10:01:00"},
	  {"sender": "alice", "body": "third", "date": "2024-06-01 10:02:00"}
	]`
	require.NoError(t, a.Parse([]byte(payload)))

	// Authors become the roster, first occurrence wins.
	users := a.ExtractUsers()
	require.Len(t, users, 2)
	assert.Equal(t, "alice", users[0].SourceID)
	assert.Equal(t, "bob", users[1].SourceID)

	// Messages with no channel reference land in the default channel.
	channels := a.ExtractChannels()
	require.Len(t, channels, 1)
	assert.Equal(t, genericDefaultChannel, channels[0].SourceID)

	messages := a.ExtractMessages()
	require.Len(t, messages, 3)
	for _, m := range messages {
		assert.Equal(t, genericDefaultChannel, m.ChannelSourceID)
	}
	// Rows without an id get a positional one.
	assert.Equal(t, "row-1", messages[0].SourceID)
}

func TestGenericAdapter_Parse_CSVMessages(t *testing.T) {
	a := &GenericAdapter{}
	payload := "id,author,channel,content,timestamp,parent_id\n" +
		"m1,alice,general,hello there,2024-06-01T10:00:00Z,\n" +
		"m2,bob,general,a reply,2024-06-01T10:01:00Z,m1\n" +
		"m3,alice,random,elsewhere,1717236000,\n"
	require.NoError(t, a.Parse([]byte(payload)))

	messages := a.ExtractMessages()
	require.Len(t, messages, 3)

	assert.Equal(t, "m1", messages[0].SourceID)
	assert.Equal(t, "alice", messages[0].AuthorSourceID)
	assert.Equal(t, "general", messages[0].ChannelSourceID)
	assert.Equal(t, "hello there", messages[0].Content)

	assert.Equal(t, "m1", messages[1].ThreadParentSourceID)

	// Numeric epoch timestamps parse too.
	assert.Equal(t, time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC), messages[2].Timestamp)

	// Channels referenced by name are synthesized.
	channels := a.ExtractChannels()
	require.Len(t, channels, 2)
	names := []string{channels[0].Name, channels[1].Name}
	assert.Contains(t, names, "general")
	assert.Contains(t, names, "random")
}

func TestGenericAdapter_Parse_CSVUsers(t *testing.T) {
	a := &GenericAdapter{}
	payload := "user_id,username,email,full_name,is_bot\n" +
		"u1,alice,alice@example.com,Alice A,false\n" +
		"u2,bot1,,Bot One,true\n" +
		"u1,alice,alice@example.com,Alice A,false\n"
	require.NoError(t, a.Parse([]byte(payload)))

	users := a.ExtractUsers()
	// The duplicate u1 row is dropped.
	require.Len(t, users, 2)
	assert.Equal(t, "Alice A", users[0].DisplayName)
	assert.True(t, users[1].Bot)
	assert.Empty(t, a.ExtractMessages())
}

func TestGenericAdapter_Parse_MessageWithoutContentRetained(t *testing.T) {
	a := &GenericAdapter{}
	payload := `[
	  {"id": "m1", "sender": "alice", "text": "has content"},
	  {"id": "m2", "sender": "alice", "text": "", "attachment_url": "https://cdn/x/file.bin"}
	]`
	require.NoError(t, a.Parse([]byte(payload)))

	messages := a.ExtractMessages()
	require.Len(t, messages, 2)
	// The empty row stays; the run decides whether to skip it.
	assert.Empty(t, messages[1].Content)
	require.Len(t, messages[1].Attachments, 1)
	assert.Equal(t, "file.bin", messages[1].Attachments[0].Filename)
}

func TestClassifyRows(t *testing.T) {
	assert.Equal(t, "users", classifyRows([]map[string]any{{"email": "x", "username": "y"}}))
	assert.Equal(t, "messages", classifyRows([]map[string]any{{"content": "x", "user_name": "y"}}))
	assert.Equal(t, "channels", classifyRows([]map[string]any{{"topic": "x", "members": "a,b"}}))
	assert.Equal(t, "", classifyRows([]map[string]any{{"foo": 1}}))
	assert.Equal(t, "", classifyRows(nil))
}

func TestFieldValue_ExactMatchBeatsSubstring(t *testing.T) {
	row := map[string]any{
		"message_id": "sub",
		"id":         "exact",
	}
	got := stringField(row, "id", "message_id")
	assert.Equal(t, "exact", got)

	// Only a substring match available.
	row = map[string]any{"the_message_id_col": "fuzzy"}
	assert.Equal(t, "fuzzy", stringField(row, "id", "message_id"))
}

func TestBoolField(t *testing.T) {
	assert.True(t, boolField(map[string]any{"is_bot": true}, "is_bot"))
	assert.True(t, boolField(map[string]any{"is_bot": "yes"}, "is_bot"))
	assert.True(t, boolField(map[string]any{"is_bot": "true"}, "is_bot"))
	assert.True(t, boolField(map[string]any{"is_bot": float64(1)}, "is_bot"))
	assert.False(t, boolField(map[string]any{"is_bot": "no"}, "is_bot"))
	assert.False(t, boolField(map[string]any{}, "is_bot"))
}

func TestListField(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, listField(map[string]any{"members": "a, b"}, "members"))
	assert.Equal(t, []string{"a", "b"}, listField(map[string]any{"members": []any{"a", "b"}}, "members"))
	assert.Nil(t, listField(map[string]any{"members": ""}, "members"))
}

func TestParseGenericTimestamp(t *testing.T) {
	assert.Equal(t, time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		parseGenericTimestamp("2024-06-01T12:00:00Z"))
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		parseGenericTimestamp("2024-06-01"))
	assert.Equal(t, time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		parseGenericTimestamp("1717243200"))
	// Millisecond epochs are recognized by magnitude.
	assert.Equal(t, time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		parseGenericTimestamp("1717243200000"))
	assert.True(t, parseGenericTimestamp("soon").IsZero())
	assert.True(t, parseGenericTimestamp("").IsZero())
}
