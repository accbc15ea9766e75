package adapters

import (
	"encoding/json"
	"time"

	"github.com/nself-org/chat-importer/internal/importer"
)

// discordExport mirrors the DiscordChatExporter JSON layout: one file
// per exported channel, with guild and channel objects at the root.
type discordExport struct {
	Guild    *discordGuild    `json:"guild"`
	Channel  *discordChannel  `json:"channel"`
	Messages []discordMessage `json:"messages"`
}

type discordGuild struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type discordChannel struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Topic    string `json:"topic"`
	Category string `json:"category"`
}

type discordUser struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Nickname  string `json:"nickname"`
	IsBot     bool   `json:"isBot"`
	AvatarURL string `json:"avatarUrl"`
}

type discordAttachment struct {
	URL           string `json:"url"`
	FileName      string `json:"fileName"`
	FileSizeBytes int64  `json:"fileSizeBytes"`
}

type discordEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
}

type discordReaction struct {
	Emoji struct {
		Name string `json:"name"`
	} `json:"emoji"`
	Count int           `json:"count"`
	Users []discordUser `json:"users"`
}

type discordReference struct {
	MessageID string `json:"messageId"`
}

type discordMessage struct {
	ID          string              `json:"id"`
	Type        string              `json:"type"`
	Timestamp   string              `json:"timestamp"`
	Content     string              `json:"content"`
	Author      discordUser         `json:"author"`
	Attachments []discordAttachment `json:"attachments"`
	Embeds      []discordEmbed      `json:"embeds"`
	Reactions   []discordReaction   `json:"reactions"`
	Mentions    []discordUser       `json:"mentions"`
	IsPinned    bool                `json:"isPinned"`
	Reference   *discordReference   `json:"reference"`
}

// DiscordAdapter parses DiscordChatExporter JSON exports. Discord
// exports carry no user roster, so users are derived from message
// authors, mention lists and reaction users, first occurrence wins.
type DiscordAdapter struct {
	export discordExport
}

func (a *DiscordAdapter) Platform() string { return PlatformDiscord }

func (a *DiscordAdapter) Parse(raw []byte) error {
	if err := json.Unmarshal(raw, &a.export); err != nil {
		return importer.ValidationError("not a Discord export: %v", err)
	}
	if a.export.Guild == nil && a.export.Channel == nil {
		return importer.ValidationError("not a Discord export: missing guild and channel")
	}
	return nil
}

func (a *DiscordAdapter) ExtractUsers() []importer.NormalizedUser {
	seen := make(map[string]bool)
	var users []importer.NormalizedUser

	add := func(u discordUser) {
		if u.ID == "" || seen[u.ID] {
			return
		}
		seen[u.ID] = true
		display := u.Nickname
		if display == "" {
			display = u.Name
		}
		users = append(users, importer.NormalizedUser{
			SourceID:    u.ID,
			Handle:      u.Name,
			DisplayName: display,
			AvatarURL:   u.AvatarURL,
			Bot:         u.IsBot,
		})
	}

	for _, m := range a.export.Messages {
		add(m.Author)
		for _, mention := range m.Mentions {
			add(mention)
		}
		for _, r := range m.Reactions {
			for _, u := range r.Users {
				add(u)
			}
		}
	}
	return users
}

func (a *DiscordAdapter) ExtractChannels() []importer.NormalizedChannel {
	if a.export.Channel == nil {
		return nil
	}
	var members []string
	for _, u := range a.ExtractUsers() {
		members = append(members, u.SourceID)
	}
	return []importer.NormalizedChannel{{
		SourceID:        a.export.Channel.ID,
		Name:            a.export.Channel.Name,
		Topic:           a.export.Channel.Topic,
		MemberSourceIDs: members,
	}}
}

func (a *DiscordAdapter) ExtractMessages() []importer.NormalizedMessage {
	var channelID string
	if a.export.Channel != nil {
		channelID = a.export.Channel.ID
	}

	var messages []importer.NormalizedMessage
	for _, m := range a.export.Messages {
		// System messages (joins, pins, boosts) are not content.
		if m.Type != "" && m.Type != "Default" && m.Type != "Reply" {
			continue
		}

		msg := importer.NormalizedMessage{
			SourceID:        m.ID,
			AuthorSourceID:  m.Author.ID,
			ChannelSourceID: channelID,
			Content:         m.Content,
			Timestamp:       parseDiscordTimestamp(m.Timestamp),
			Pinned:          m.IsPinned,
		}
		if m.Reference != nil && m.Reference.MessageID != "" {
			msg.ThreadParentSourceID = m.Reference.MessageID
		}
		for _, e := range m.Embeds {
			msg.Embeds = append(msg.Embeds, importer.NormalizedEmbed{
				Title:       e.Title,
				Description: e.Description,
				URL:         e.URL,
			})
		}
		for _, att := range m.Attachments {
			msg.Attachments = append(msg.Attachments, importer.NormalizedAttachment{
				URL:       att.URL,
				Filename:  att.FileName,
				SizeBytes: att.FileSizeBytes,
			})
		}
		for _, r := range m.Reactions {
			reaction := importer.NormalizedReaction{
				Emoji: r.Emoji.Name,
				Count: r.Count,
			}
			for _, u := range r.Users {
				reaction.UserSourceIDs = append(reaction.UserSourceIDs, u.ID)
			}
			msg.Reactions = append(msg.Reactions, reaction)
		}

		messages = append(messages, msg)
	}
	return messages
}

func parseDiscordTimestamp(ts string) time.Time {
	if ts == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, ts); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02T15:04:05.999-07:00", ts); err == nil {
		return t
	}
	return time.Time{}
}

// Compile-time interface check
var _ Adapter = (*DiscordAdapter)(nil)
