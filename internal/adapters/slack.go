package adapters

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/nself-org/chat-importer/internal/importer"
)

// slackExport is the aggregated form of a Slack workspace export:
// users.json, channels.json and the per-channel message files merged
// into one document, messages keyed by channel name.
type slackExport struct {
	Users    []slackUser               `json:"users"`
	Channels []slackChannel            `json:"channels"`
	Messages map[string][]slackMessage `json:"messages"`
}

type slackUser struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	RealName string `json:"real_name"`
	Deleted  bool   `json:"deleted"`
	IsBot    bool   `json:"is_bot"`
	Profile  struct {
		Email       string `json:"email"`
		DisplayName string `json:"display_name"`
		Image192    string `json:"image_192"`
	} `json:"profile"`
}

type slackChannel struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Topic struct {
		Value string `json:"value"`
	} `json:"topic"`
	Purpose struct {
		Value string `json:"value"`
	} `json:"purpose"`
	Creator    string   `json:"creator"`
	Members    []string `json:"members"`
	IsPrivate  bool     `json:"is_private"`
	IsArchived bool     `json:"is_archived"`
}

type slackFile struct {
	Name       string `json:"name"`
	Mimetype   string `json:"mimetype"`
	Size       int64  `json:"size"`
	URLPrivate string `json:"url_private"`
}

type slackReaction struct {
	Name  string   `json:"name"`
	Users []string `json:"users"`
	Count int      `json:"count"`
}

type slackMessage struct {
	Type      string          `json:"type"`
	Subtype   string          `json:"subtype"`
	User      string          `json:"user"`
	Text      string          `json:"text"`
	TS        string          `json:"ts"`
	ThreadTS  string          `json:"thread_ts"`
	Reactions []slackReaction `json:"reactions"`
	Files     []slackFile     `json:"files"`
	Pinned    []string        `json:"pinned_to"`
}

// SlackAdapter parses aggregated Slack workspace exports. Users come
// from the explicit roster; message ids are synthesized from channel id
// and the Slack ts, which is unique per channel.
type SlackAdapter struct {
	export        slackExport
	channelByName map[string]string
	extraChannels []importer.NormalizedChannel
}

func (a *SlackAdapter) Platform() string { return PlatformSlack }

func (a *SlackAdapter) Parse(raw []byte) error {
	if err := json.Unmarshal(raw, &a.export); err != nil {
		return importer.ValidationError("not a Slack export: %v", err)
	}
	if len(a.export.Users) == 0 && len(a.export.Channels) == 0 && len(a.export.Messages) == 0 {
		return importer.ValidationError("not a Slack export: no users, channels or messages")
	}

	// Message files are keyed by channel name; resolve them to channel
	// ids up front and synthesize a channel for any name missing from
	// the roster so its messages do not dangle.
	a.channelByName = make(map[string]string, len(a.export.Channels))
	for _, c := range a.export.Channels {
		a.channelByName[c.Name] = c.ID
	}
	for name := range a.export.Messages {
		if _, ok := a.channelByName[name]; !ok {
			id := "synthesized:" + name
			a.channelByName[name] = id
			a.extraChannels = append(a.extraChannels, importer.NormalizedChannel{
				SourceID: id,
				Name:     name,
			})
		}
	}
	return nil
}

func (a *SlackAdapter) ExtractUsers() []importer.NormalizedUser {
	seen := make(map[string]bool)
	var users []importer.NormalizedUser
	for _, u := range a.export.Users {
		if u.ID == "" || seen[u.ID] {
			continue
		}
		seen[u.ID] = true
		display := u.Profile.DisplayName
		if display == "" {
			display = u.RealName
		}
		if display == "" {
			display = u.Name
		}
		users = append(users, importer.NormalizedUser{
			SourceID:    u.ID,
			Email:       u.Profile.Email,
			Handle:      u.Name,
			DisplayName: display,
			AvatarURL:   u.Profile.Image192,
			Bot:         u.IsBot,
			Deleted:     u.Deleted,
		})
	}
	return users
}

func (a *SlackAdapter) ExtractChannels() []importer.NormalizedChannel {
	var channels []importer.NormalizedChannel
	for _, c := range a.export.Channels {
		channels = append(channels, importer.NormalizedChannel{
			SourceID:        c.ID,
			Name:            c.Name,
			Topic:           firstNonEmpty(c.Topic.Value, c.Purpose.Value),
			Private:         c.IsPrivate,
			CreatorSourceID: c.Creator,
			MemberSourceIDs: c.Members,
			Archived:        c.IsArchived,
		})
	}
	return append(channels, a.extraChannels...)
}

func (a *SlackAdapter) ExtractMessages() []importer.NormalizedMessage {
	var messages []importer.NormalizedMessage
	for name, channelMessages := range a.export.Messages {
		channelID := a.channelByName[name]
		for _, m := range channelMessages {
			if m.Subtype == "channel_join" || m.Subtype == "channel_leave" {
				continue
			}

			msg := importer.NormalizedMessage{
				SourceID:        slackMessageID(channelID, m.TS),
				AuthorSourceID:  m.User,
				ChannelSourceID: channelID,
				Content:         m.Text,
				Timestamp:       parseSlackTimestamp(m.TS),
				Pinned:          len(m.Pinned) > 0,
			}
			// thread_ts equal to ts marks a thread root, not a reply.
			if m.ThreadTS != "" && m.ThreadTS != m.TS {
				msg.ThreadParentSourceID = slackMessageID(channelID, m.ThreadTS)
			}
			for _, f := range m.Files {
				msg.Attachments = append(msg.Attachments, importer.NormalizedAttachment{
					URL:       f.URLPrivate,
					Filename:  f.Name,
					MimeType:  f.Mimetype,
					SizeBytes: f.Size,
				})
			}
			for _, r := range m.Reactions {
				msg.Reactions = append(msg.Reactions, importer.NormalizedReaction{
					Emoji:         r.Name,
					UserSourceIDs: r.Users,
					Count:         r.Count,
				})
			}

			messages = append(messages, msg)
		}
	}
	return messages
}

func slackMessageID(channelID, ts string) string {
	return channelID + ":" + ts
}

// parseSlackTimestamp converts Slack's "1633036800.000200" epoch format.
func parseSlackTimestamp(ts string) time.Time {
	if ts == "" {
		return time.Time{}
	}
	parts := strings.SplitN(ts, ".", 2)
	secs, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return time.Time{}
	}
	var micros int64
	if len(parts) == 2 {
		padded := fmt.Sprintf("%-6s", parts[1])
		micros, _ = strconv.ParseInt(strings.ReplaceAll(padded, " ", "0"), 10, 64)
	}
	return time.Unix(secs, micros*1000).UTC()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Compile-time interface check
var _ Adapter = (*SlackAdapter)(nil)
