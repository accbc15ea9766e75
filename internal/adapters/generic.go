package adapters

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/nself-org/chat-importer/internal/importer"
)

// GenericAdapter ingests loosely structured CSV or JSON dumps. The
// dataset kind (users, channels, messages) is sniffed from the key set,
// and ambiguous field names are mapped to canonical fields by
// case-insensitive substring matching, exact key matches taking
// priority. Unmapped required fields are not fatal here; the row is
// retained and fails per-item validation during the run.
type GenericAdapter struct {
	users    []importer.NormalizedUser
	channels []importer.NormalizedChannel
	messages []importer.NormalizedMessage
}

const genericDefaultChannel = "imported"

func (a *GenericAdapter) Platform() string { return PlatformGeneric }

func (a *GenericAdapter) Parse(raw []byte) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return importer.ValidationError("empty payload")
	}

	switch trimmed[0] {
	case '{':
		if err := a.parseObject(trimmed); err != nil {
			return err
		}
	case '[':
		rows, err := decodeJSONRows(trimmed)
		if err != nil {
			return importer.ValidationError("invalid JSON payload: %v", err)
		}
		if err := a.assignRows(rows); err != nil {
			return err
		}
	default:
		rows, err := decodeCSVRows(trimmed)
		if err != nil {
			return importer.ValidationError("invalid CSV payload: %v", err)
		}
		if err := a.assignRows(rows); err != nil {
			return err
		}
	}

	a.deriveUsers()
	a.synthesizeChannels()
	return nil
}

func (a *GenericAdapter) ExtractUsers() []importer.NormalizedUser       { return a.users }
func (a *GenericAdapter) ExtractChannels() []importer.NormalizedChannel { return a.channels }
func (a *GenericAdapter) ExtractMessages() []importer.NormalizedMessage { return a.messages }

// parseObject handles the {users, channels, messages} envelope form.
func (a *GenericAdapter) parseObject(raw []byte) error {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return importer.ValidationError("invalid JSON payload: %v", err)
	}

	found := false
	for _, key := range []string{"users", "channels", "messages"} {
		section, ok := doc[key]
		if !ok {
			continue
		}
		rows, err := decodeJSONRows(section)
		if err != nil {
			return importer.ValidationError("invalid %s section: %v", key, err)
		}
		found = true
		switch key {
		case "users":
			a.users = convertGenericUsers(rows)
		case "channels":
			a.channels = convertGenericChannels(rows)
		case "messages":
			a.messages = convertGenericMessages(rows)
		}
	}
	if !found {
		return importer.ValidationError("unrecognized payload: neither channels nor users/messages present")
	}
	return nil
}

// assignRows sniffs a single flat dataset and converts it.
func (a *GenericAdapter) assignRows(rows []map[string]any) error {
	kind := classifyRows(rows)
	switch kind {
	case "users":
		a.users = convertGenericUsers(rows)
	case "channels":
		a.channels = convertGenericChannels(rows)
	case "messages":
		a.messages = convertGenericMessages(rows)
	default:
		return importer.ValidationError("could not classify dataset as users, channels or messages")
	}
	return nil
}

// classifyRows decides the dataset kind from the first row's key names.
func classifyRows(rows []map[string]any) string {
	if len(rows) == 0 {
		return ""
	}
	keys := make([]string, 0, len(rows[0]))
	for k := range rows[0] {
		keys = append(keys, strings.ToLower(k))
	}
	hasAny := func(subs ...string) bool {
		for _, k := range keys {
			for _, sub := range subs {
				if strings.Contains(k, sub) {
					return true
				}
			}
		}
		return false
	}

	switch {
	case hasAny("email", "username", "user_name", "handle", "real_name") && !hasAny("content", "text", "body", "message"):
		return "users"
	case hasAny("content", "text", "body", "message"):
		return "messages"
	case hasAny("topic", "members", "private", "archived", "channel"):
		return "channels"
	}
	return ""
}

func convertGenericUsers(rows []map[string]any) []importer.NormalizedUser {
	users := make([]importer.NormalizedUser, 0, len(rows))
	seen := make(map[string]bool)
	for _, r := range rows {
		id := stringField(r, "id", "user_id", "userid", "uid")
		handle := stringField(r, "username", "handle", "login", "user_name")
		email := stringField(r, "email", "mail")
		if id == "" {
			// Fall back on something stable; a row with nothing to key
			// on is retained and fails per-item validation later.
			id = firstNonEmpty(handle, email)
		}
		if id != "" && seen[id] {
			continue
		}
		seen[id] = true

		users = append(users, importer.NormalizedUser{
			SourceID:    id,
			Email:       email,
			Handle:      handle,
			DisplayName: firstNonEmpty(stringField(r, "display_name", "full_name", "real_name", "name"), handle),
			AvatarURL:   stringField(r, "avatar_url", "avatar", "image", "picture"),
			Bot:         boolField(r, "is_bot", "bot"),
			Deleted:     boolField(r, "is_deleted", "deleted"),
		})
	}
	return users
}

func convertGenericChannels(rows []map[string]any) []importer.NormalizedChannel {
	channels := make([]importer.NormalizedChannel, 0, len(rows))
	for _, r := range rows {
		name := stringField(r, "name", "channel_name", "channel")
		id := stringField(r, "id", "channel_id")
		if id == "" {
			id = name
		}
		channels = append(channels, importer.NormalizedChannel{
			SourceID:        id,
			Name:            name,
			Topic:           stringField(r, "topic", "description", "purpose"),
			Private:         boolField(r, "is_private", "private"),
			CreatorSourceID: stringField(r, "creator", "created_by", "owner"),
			MemberSourceIDs: listField(r, "members", "member_ids"),
			Archived:        boolField(r, "is_archived", "archived"),
		})
	}
	return channels
}

func convertGenericMessages(rows []map[string]any) []importer.NormalizedMessage {
	messages := make([]importer.NormalizedMessage, 0, len(rows))
	for n, r := range rows {
		id := stringField(r, "id", "message_id", "msg_id")
		if id == "" {
			id = fmt.Sprintf("row-%d", n+1)
		}

		msg := importer.NormalizedMessage{
			SourceID:        id,
			AuthorSourceID:  stringField(r, "author", "author_id", "user_id", "user", "sender", "from"),
			ChannelSourceID: stringField(r, "channel", "channel_id", "channel_name", "room"),
			Content:         stringField(r, "content", "text", "body", "message"),
			Timestamp:       timeField(r, "timestamp", "ts", "created_at", "sent_at", "date", "time"),
		}

		parent := stringField(r, "thread_ts", "parent_id", "thread_id", "reply_to", "parent")
		if parent != "" && parent != id {
			msg.ThreadParentSourceID = parent
		}

		if url := stringField(r, "attachment_url", "file_url", "attachment", "file"); url != "" {
			msg.Attachments = append(msg.Attachments, importer.NormalizedAttachment{
				URL:      url,
				Filename: path.Base(url),
			})
		}

		messages = append(messages, msg)
	}
	return messages
}

// deriveUsers builds a roster from message authors when the dump did not
// carry one, first occurrence wins.
func (a *GenericAdapter) deriveUsers() {
	if len(a.users) > 0 || len(a.messages) == 0 {
		return
	}
	seen := make(map[string]bool)
	for _, m := range a.messages {
		if m.AuthorSourceID == "" || seen[m.AuthorSourceID] {
			continue
		}
		seen[m.AuthorSourceID] = true
		a.users = append(a.users, importer.NormalizedUser{
			SourceID:    m.AuthorSourceID,
			Handle:      m.AuthorSourceID,
			DisplayName: m.AuthorSourceID,
		})
	}
}

// synthesizeChannels ensures every message lands in a channel: messages
// without one go to a default channel, and referenced channels missing
// from the dump are created by name.
func (a *GenericAdapter) synthesizeChannels() {
	known := make(map[string]bool, len(a.channels))
	for _, c := range a.channels {
		known[c.SourceID] = true
	}

	needDefault := false
	for i := range a.messages {
		if a.messages[i].ChannelSourceID == "" {
			a.messages[i].ChannelSourceID = genericDefaultChannel
			needDefault = true
			continue
		}
		if !known[a.messages[i].ChannelSourceID] {
			id := a.messages[i].ChannelSourceID
			known[id] = true
			a.channels = append(a.channels, importer.NormalizedChannel{SourceID: id, Name: id})
		}
	}
	if needDefault && !known[genericDefaultChannel] {
		a.channels = append(a.channels, importer.NormalizedChannel{
			SourceID: genericDefaultChannel,
			Name:     genericDefaultChannel,
		})
	}
}

func decodeJSONRows(raw []byte) ([]map[string]any, error) {
	var rows []map[string]any
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func decodeCSVRows(raw []byte) ([]map[string]any, error) {
	reader := csv.NewReader(bytes.NewReader(raw))
	reader.FieldsPerRecord = -1 // Allow variable number of fields

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var rows []map[string]any
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		row := make(map[string]any, len(header))
		for i, h := range header {
			if i < len(record) {
				row[h] = strings.TrimSpace(record[i])
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// fieldValue finds the best matching key for any of the candidate names.
// Exact (case-insensitive) key matches across all candidates precede
// fuzzy substring matches; candidate order breaks ties.
func fieldValue(r map[string]any, candidates ...string) (any, bool) {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, c := range candidates {
		for _, k := range keys {
			if strings.EqualFold(k, c) {
				return r[k], true
			}
		}
	}
	for _, c := range candidates {
		lc := strings.ToLower(c)
		for _, k := range keys {
			if strings.Contains(strings.ToLower(k), lc) {
				return r[k], true
			}
		}
	}
	return nil, false
}

func stringField(r map[string]any, candidates ...string) string {
	v, ok := fieldValue(r, candidates...)
	if !ok || v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

func boolField(r map[string]any, candidates ...string) bool {
	v, ok := fieldValue(r, candidates...)
	if !ok || v == nil {
		return false
	}
	switch val := v.(type) {
	case bool:
		return val
	case string:
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
		switch strings.ToLower(val) {
		case "yes", "y":
			return true
		}
	case float64:
		return val != 0
	}
	return false
}

func listField(r map[string]any, candidates ...string) []string {
	v, ok := fieldValue(r, candidates...)
	if !ok || v == nil {
		return nil
	}
	switch val := v.(type) {
	case []any:
		var out []string
		for _, item := range val {
			if s := strings.TrimSpace(fmt.Sprintf("%v", item)); s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if val == "" {
			return nil
		}
		var out []string
		for _, part := range strings.Split(val, ",") {
			if s := strings.TrimSpace(part); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func timeField(r map[string]any, candidates ...string) time.Time {
	v, ok := fieldValue(r, candidates...)
	if !ok || v == nil {
		return time.Time{}
	}
	switch val := v.(type) {
	case float64:
		return epochToTime(val)
	case string:
		return parseGenericTimestamp(val)
	}
	return time.Time{}
}

func epochToTime(v float64) time.Time {
	if v <= 0 {
		return time.Time{}
	}
	// Values past the year ~33658 in seconds are millisecond epochs.
	if v > 1e12 {
		return time.UnixMilli(int64(v)).UTC()
	}
	secs := int64(v)
	nanos := int64((v - float64(secs)) * 1e9)
	return time.Unix(secs, nanos).UTC()
}

func parseGenericTimestamp(ts string) time.Time {
	ts = strings.TrimSpace(ts)
	if ts == "" {
		return time.Time{}
	}
	if f, err := strconv.ParseFloat(ts, 64); err == nil {
		return epochToTime(f)
	}

	formats := []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05-07:00",
		"2006-01-02 15:04:05",
		"2006-01-02",
	}
	for _, format := range formats {
		if t, err := time.Parse(format, ts); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Compile-time interface check
var _ Adapter = (*GenericAdapter)(nil)
