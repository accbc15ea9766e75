package adapters

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/nself-org/chat-importer/internal/importer"
)

// Platform names accepted by ForPlatform and reported by Detect.
const (
	PlatformDiscord = "discord"
	PlatformSlack   = "slack"
	PlatformGeneric = "generic"
)

// Adapter parses one platform's export dialect into the normalized
// representation. Parse validates the top-level shape and loads the
// adapter's state; the Extract methods read from that state. A fresh
// adapter is used per payload.
//
// Implementations:
//   - DiscordAdapter (discord.go) - DiscordChatExporter JSON
//   - SlackAdapter (slack.go) - aggregated Slack workspace export
//   - GenericAdapter (generic.go) - schema-sniffed CSV/JSON dumps
type Adapter interface {
	Platform() string
	Parse(raw []byte) error
	ExtractUsers() []importer.NormalizedUser
	ExtractChannels() []importer.NormalizedChannel
	ExtractMessages() []importer.NormalizedMessage
}

// ForPlatform returns a fresh adapter for the named platform.
func ForPlatform(name string) (Adapter, error) {
	switch name {
	case PlatformDiscord:
		return &DiscordAdapter{}, nil
	case PlatformSlack:
		return &SlackAdapter{}, nil
	case PlatformGeneric, "csv", "json":
		return &GenericAdapter{}, nil
	default:
		return nil, fmt.Errorf("unsupported platform %q", name)
	}
}

// Load runs an adapter over a raw payload and assembles the normalized
// export the orchestrator consumes.
func Load(a Adapter, raw []byte) (*importer.NormalizedExport, error) {
	if err := a.Parse(raw); err != nil {
		return nil, err
	}
	return &importer.NormalizedExport{
		Platform: a.Platform(),
		Users:    a.ExtractUsers(),
		Channels: a.ExtractChannels(),
		Messages: a.ExtractMessages(),
	}, nil
}

// Detect sniffs a payload and guesses its platform. An explicit format
// parameter always wins; this only backs the upload endpoint's
// auto-detection convenience.
func Detect(raw []byte) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || (trimmed[0] != '{' && trimmed[0] != '[') {
		// Anything that is not a JSON document is treated as CSV.
		return PlatformGeneric
	}
	if trimmed[0] == '[' {
		return PlatformGeneric
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &probe); err != nil {
		return PlatformGeneric
	}
	if _, ok := probe["guild"]; ok {
		return PlatformDiscord
	}
	if _, ok := probe["channel"]; ok {
		if _, ok := probe["messages"]; ok {
			return PlatformDiscord
		}
	}
	// A Slack aggregate keys messages by channel name; a generic JSON
	// object carries them as an array.
	if msgs, ok := probe["messages"]; ok {
		trimmedMsgs := bytes.TrimSpace(msgs)
		if len(trimmedMsgs) > 0 && trimmedMsgs[0] == '{' {
			return PlatformSlack
		}
	}
	return PlatformGeneric
}
