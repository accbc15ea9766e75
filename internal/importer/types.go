package importer

import (
	"fmt"
	"time"
)

// NormalizedUser is a user as extracted from a platform export.
// All cross-reference fields in the normalized types hold source-native
// identifiers; translation to internal identifiers only happens through
// the IDMap during a run.
type NormalizedUser struct {
	SourceID    string
	Email       string
	Handle      string
	DisplayName string
	AvatarURL   string
	Bot         bool
	Deleted     bool
	Metadata    map[string]any
}

// NormalizedChannel is a channel as extracted from a platform export.
type NormalizedChannel struct {
	SourceID        string
	Name            string
	Topic           string
	Private         bool
	CreatorSourceID string
	MemberSourceIDs []string
	Archived        bool
}

// NormalizedEmbed is a rich embed attached to a message. Embeds are
// flattened into the message body during import.
type NormalizedEmbed struct {
	Title       string
	Description string
	URL         string
}

// NormalizedAttachment is a file attached to a message.
type NormalizedAttachment struct {
	URL       string
	Filename  string
	MimeType  string
	SizeBytes int64
}

// NormalizedReaction is an emoji reaction on a message. Either
// UserSourceIDs names the reactors, or Count carries a bare total when
// the export does not attribute reactions to users.
type NormalizedReaction struct {
	Emoji         string
	UserSourceIDs []string
	Count         int
}

// NormalizedMessage is a message as extracted from a platform export.
type NormalizedMessage struct {
	SourceID             string
	AuthorSourceID       string
	ChannelSourceID      string
	Content              string
	Embeds               []NormalizedEmbed
	Attachments          []NormalizedAttachment
	Timestamp            time.Time
	ThreadParentSourceID string
	Reactions            []NormalizedReaction
	Pinned               bool
}

// NormalizedExport is the format-agnostic representation produced by a
// source adapter. The orchestrator only ever sees this shape.
type NormalizedExport struct {
	Platform string
	Users    []NormalizedUser
	Channels []NormalizedChannel
	Messages []NormalizedMessage
}

// Config controls which stages run and how items are filtered.
type Config struct {
	ImportUsers     bool `json:"import_users"`
	ImportChannels  bool `json:"import_channels"`
	ImportMessages  bool `json:"import_messages"`
	ImportFiles     bool `json:"import_files"`
	ImportReactions bool `json:"import_reactions"`
	ImportThreads   bool `json:"import_threads"`

	PreserveIDs       bool `json:"preserve_ids"`
	OverwriteExisting bool `json:"overwrite_existing"`

	// ChannelFilter is an allow-list of channel names. Nil means all
	// channels are eligible.
	ChannelFilter []string `json:"channel_filter"`

	DateRangeStart *time.Time `json:"date_range_start"`
	DateRangeEnd   *time.Time `json:"date_range_end"`
}

// DefaultConfig enables every stage with no filters.
func DefaultConfig() Config {
	return Config{
		ImportUsers:     true,
		ImportChannels:  true,
		ImportMessages:  true,
		ImportFiles:     true,
		ImportReactions: true,
		ImportThreads:   true,
	}
}

// Status is the lifecycle state of an import run. Completed, error and
// cancelled are terminal.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusImporting Status = "importing"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
	StatusCancelled Status = "cancelled"
)

// ErrorKind classifies an import error. Validation and unknown errors
// are fatal to the run; the per-entity kinds are recoverable.
type ErrorKind string

const (
	ErrorKindValidation ErrorKind = "validation"
	ErrorKindUser       ErrorKind = "user"
	ErrorKindChannel    ErrorKind = "channel"
	ErrorKindMessage    ErrorKind = "message"
	ErrorKindFile       ErrorKind = "file"
	ErrorKindUnknown    ErrorKind = "unknown"
)

// Error is an error recorded against an import run.
type Error struct {
	Kind        ErrorKind `json:"kind"`
	Message     string    `json:"message"`
	Details     string    `json:"details,omitempty"`
	Item        string    `json:"item,omitempty"`
	Recoverable bool      `json:"recoverable"`
}

func (e *Error) Error() string {
	if e.Item != "" {
		return fmt.Sprintf("%s: %s (item %s)", e.Kind, e.Message, e.Item)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// ValidationError builds the fatal error adapters and the Validate stage
// report for a malformed export.
func ValidationError(format string, args ...any) *Error {
	return &Error{
		Kind:        ErrorKindValidation,
		Message:     fmt.Sprintf(format, args...),
		Recoverable: false,
	}
}

// WarningKind classifies an import warning.
type WarningKind string

const (
	WarningKindSkipped  WarningKind = "skipped"
	WarningKindModified WarningKind = "modified"
)

// Warning is a non-fatal note recorded against an import run, kept for
// post-run auditing.
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Message string      `json:"message"`
	Item    string      `json:"item,omitempty"`
}

// Progress is the externally observable state of a run. A snapshot of it
// is handed to the progress callback after every processed item and at
// every stage transition.
type Progress struct {
	Status         Status    `json:"status"`
	CurrentStep    int       `json:"current_step"`
	TotalSteps     int       `json:"total_steps"`
	CurrentStage   string    `json:"current_stage"`
	ItemsProcessed int       `json:"items_processed"`
	ItemsTotal     int       `json:"items_total"`
	Percent        float64   `json:"percent"`
	Errors         []Error   `json:"errors"`
	Warnings       []Warning `json:"warnings"`
}

// Stats are the per-entity-type counters for a run. They only ever grow
// within a run.
type Stats struct {
	UsersImported    int `json:"users_imported"`
	UsersSkipped     int `json:"users_skipped"`
	UsersFailed      int `json:"users_failed"`
	ChannelsImported int `json:"channels_imported"`
	ChannelsSkipped  int `json:"channels_skipped"`
	ChannelsFailed   int `json:"channels_failed"`
	MessagesImported int `json:"messages_imported"`
	MessagesSkipped  int `json:"messages_skipped"`
	MessagesFailed   int `json:"messages_failed"`
	FilesImported    int `json:"files_imported"`
	FilesSkipped     int `json:"files_skipped"`
	FilesFailed      int `json:"files_failed"`

	ReactionsImported int `json:"reactions_imported"`
	ThreadsImported   int `json:"threads_imported"`

	Duration time.Duration `json:"duration"`
}

// Result is what a run always returns, including after fatal errors and
// cancellation. Success is true only for status completed.
type Result struct {
	Success  bool     `json:"success"`
	Progress Progress `json:"progress"`
	Stats    Stats    `json:"stats"`
}

// ProgressFunc receives progress snapshots during a run.
type ProgressFunc func(Progress)
