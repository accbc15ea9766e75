package adapters

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nself-org/chat-importer/internal/importer"
)

const slackFixture = `{
  "users": [
    {"id": "U1", "name": "alice", "real_name": "Alice A", "profile": {"email": "alice@example.com", "display_name": "ally", "image_192": "https://img/alice.png"}},
    {"id": "U2", "name": "bob", "deleted": true, "profile": {}},
    {"id": "U3", "name": "slackbot", "is_bot": true, "profile": {"display_name": "Slackbot"}}
  ],
  "channels": [
    {"id": "C1", "name": "general", "topic": {"value": "company talk"}, "creator": "U1", "members": ["U1", "U2"], "is_private": false},
    {"id": "C2", "name": "secret", "purpose": {"value": "private planning"}, "is_private": true, "is_archived": true}
  ],
  "messages": {
    "general": [
      {"type": "message", "user": "U1", "text": "morning", "ts": "1717243200.000100"},
      {"type": "message", "user": "U2", "text": "in a thread", "ts": "1717243260.000200", "thread_ts": "1717243200.000100"},
      {"type": "message", "subtype": "channel_join", "user": "U2", "text": "bob joined", "ts": "1717243300.000000"},
      {"type": "message", "user": "U1", "text": "thread root", "ts": "1717243400.000300", "thread_ts": "1717243400.000300",
       "reactions": [{"name": "tada", "users": ["U2"], "count": 1}],
       "files": [{"name": "doc.pdf", "mimetype": "application/pdf", "size": 1024, "url_private": "https://files/doc.pdf"}]}
    ],
    "offtopic": [
      {"type": "message", "user": "U1", "text": "no roster entry for this channel", "ts": "1717243500.000000"}
    ]
  }
}`

func parseSlack(t *testing.T, raw string) *SlackAdapter {
	t.Helper()
	a := &SlackAdapter{}
	require.NoError(t, a.Parse([]byte(raw)))
	return a
}

func TestSlackAdapter_Parse_RejectsEmptyExport(t *testing.T) {
	a := &SlackAdapter{}
	err := a.Parse([]byte(`{}`))
	require.Error(t, err)

	var ierr *importer.Error
	require.ErrorAs(t, err, &ierr)
	assert.Equal(t, importer.ErrorKindValidation, ierr.Kind)
}

func TestSlackAdapter_ExtractUsers(t *testing.T) {
	a := parseSlack(t, slackFixture)

	users := a.ExtractUsers()
	require.Len(t, users, 3)

	alice := users[0]
	assert.Equal(t, "U1", alice.SourceID)
	assert.Equal(t, "alice@example.com", alice.Email)
	assert.Equal(t, "alice", alice.Handle)
	assert.Equal(t, "ally", alice.DisplayName)
	assert.Equal(t, "https://img/alice.png", alice.AvatarURL)

	// Display name falls back to the handle when the profile is empty.
	assert.Equal(t, "bob", users[1].DisplayName)
	assert.True(t, users[1].Deleted)
	assert.True(t, users[2].Bot)
}

func TestSlackAdapter_ExtractChannels_SynthesizesUnknownNames(t *testing.T) {
	a := parseSlack(t, slackFixture)

	channels := a.ExtractChannels()
	require.Len(t, channels, 3)

	assert.Equal(t, "C1", channels[0].SourceID)
	assert.Equal(t, "company talk", channels[0].Topic)
	assert.Equal(t, "U1", channels[0].CreatorSourceID)
	assert.Equal(t, []string{"U1", "U2"}, channels[0].MemberSourceIDs)

	// Purpose backfills a missing topic.
	assert.Equal(t, "private planning", channels[1].Topic)
	assert.True(t, channels[1].Private)
	assert.True(t, channels[1].Archived)

	// "offtopic" only exists in the message files.
	assert.Equal(t, "synthesized:offtopic", channels[2].SourceID)
	assert.Equal(t, "offtopic", channels[2].Name)
}

func TestSlackAdapter_ExtractMessages(t *testing.T) {
	a := parseSlack(t, slackFixture)

	messages := a.ExtractMessages()
	// channel_join is dropped; 3 from general + 1 from offtopic.
	require.Len(t, messages, 4)

	byID := make(map[string]importer.NormalizedMessage)
	for _, m := range messages {
		byID[m.SourceID] = m
	}

	root := byID["C1:1717243200.000100"]
	assert.Equal(t, "U1", root.AuthorSourceID)
	assert.Equal(t, "C1", root.ChannelSourceID)
	assert.Equal(t, "morning", root.Content)
	assert.Empty(t, root.ThreadParentSourceID)

	reply := byID["C1:1717243260.000200"]
	assert.Equal(t, "C1:1717243200.000100", reply.ThreadParentSourceID)

	// thread_ts == ts marks a root, not a reply.
	threadRoot := byID["C1:1717243400.000300"]
	assert.Empty(t, threadRoot.ThreadParentSourceID)
	require.Len(t, threadRoot.Reactions, 1)
	assert.Equal(t, "tada", threadRoot.Reactions[0].Emoji)
	require.Len(t, threadRoot.Attachments, 1)
	assert.Equal(t, "doc.pdf", threadRoot.Attachments[0].Filename)
	assert.Equal(t, "application/pdf", threadRoot.Attachments[0].MimeType)

	// Messages in an unrostered channel attach to the synthesized one.
	orphan := byID["synthesized:offtopic:1717243500.000000"]
	assert.Equal(t, "synthesized:offtopic", orphan.ChannelSourceID)
}

func TestParseSlackTimestamp(t *testing.T) {
	got := parseSlackTimestamp("1717243200.000100")
	assert.Equal(t, time.Date(2024, 6, 1, 12, 0, 0, 100000, time.UTC), got)

	assert.True(t, parseSlackTimestamp("").IsZero())
	assert.True(t, parseSlackTimestamp("not-a-ts").IsZero())

	// No fractional part is fine.
	assert.Equal(t, time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC), parseSlackTimestamp("1717243200"))
}
