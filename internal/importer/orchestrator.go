package importer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Importer drives one import run through the fixed stage order:
// Validate → Users → Channels → Messages (root pass) → Messages (thread
// replies) → Files → Finalize. Stages execute strictly in sequence
// because later stages depend on the id mappings written by earlier
// ones. An Importer owns all of its run state; concurrent imports use
// independent Importer values.
type Importer struct {
	gateway     Gateway
	cfg         Config
	onProgress  ProgressFunc
	fileWorkers int

	ids       *IDMap
	cancelled atomic.Bool

	mu       sync.Mutex
	progress Progress
	stats    Stats
}

// Option configures an Importer.
type Option func(*Importer)

// WithProgressFunc installs a progress sink. It is invoked after every
// processed item and at every stage transition, from the importing
// goroutine and, during the files stage, from worker goroutines.
func WithProgressFunc(fn ProgressFunc) Option {
	return func(i *Importer) { i.onProgress = fn }
}

// WithFileWorkers bounds the worker pool used by the files stage.
func WithFileWorkers(n int) Option {
	return func(i *Importer) { i.fileWorkers = n }
}

// New creates an importer for a single run against the given gateway.
func New(gateway Gateway, cfg Config, opts ...Option) *Importer {
	imp := &Importer{
		gateway:     gateway,
		cfg:         cfg,
		ids:         NewIDMap(),
		fileWorkers: 4,
	}
	imp.progress.Status = StatusIdle
	for _, opt := range opts {
		opt(imp)
	}
	return imp
}

// Cancel requests cooperative cancellation. It halts dispatch of new
// items; it does not interrupt an in-flight gateway call.
func (i *Importer) Cancel() {
	i.cancelled.Store(true)
}

// Snapshot returns a copy of the current progress.
func (i *Importer) Snapshot() Progress {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.snapshotLocked()
}

// StatsSnapshot returns a copy of the current statistics.
func (i *Importer) StatsSnapshot() Stats {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.stats
}

type stage struct {
	name  string
	total int
	run   func(ctx context.Context) error
}

// Run executes the import of a normalized export. It always returns a
// result, never a bare error: fatal conditions terminate the run with
// status error and whatever statistics had accumulated. Run may be
// called once per Importer.
func (i *Importer) Run(ctx context.Context, export *NormalizedExport) (result *Result) {
	started := time.Now()

	i.mu.Lock()
	if i.progress.Status != StatusIdle {
		snap := i.snapshotLocked()
		stats := i.stats
		i.mu.Unlock()
		return &Result{Success: snap.Status == StatusCompleted, Progress: snap, Stats: stats}
	}
	i.progress.Status = StatusImporting
	i.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			i.recordError(&Error{
				Kind:        ErrorKindUnknown,
				Message:     fmt.Sprintf("unexpected failure: %v", r),
				Recoverable: false,
			})
			i.setTerminal(StatusError)
		}

		i.mu.Lock()
		i.stats.Duration = time.Since(started)
		if i.progress.Status == StatusImporting {
			i.progress.Status = StatusCompleted
			i.progress.Percent = 100
		}
		snap := i.snapshotLocked()
		stats := i.stats
		i.mu.Unlock()

		i.notify(snap)
		log.Printf("import run finished: status=%s imported=%d/%d/%d/%d duration=%s",
			snap.Status, stats.UsersImported, stats.ChannelsImported,
			stats.MessagesImported, stats.FilesImported, stats.Duration.Round(time.Millisecond))
		result = &Result{Success: snap.Status == StatusCompleted, Progress: snap, Stats: stats}
	}()

	stages := i.plan(export)
	for idx, st := range stages {
		if i.isCancelled(ctx) {
			i.setTerminal(StatusCancelled)
			return
		}
		i.beginStage(idx+1, len(stages), st.name, st.total)
		if err := st.run(ctx); err != nil {
			ierr := asImportError(err)
			i.recordError(ierr)
			i.setTerminal(StatusError)
			return
		}
	}
	if i.isCancelled(ctx) {
		i.setTerminal(StatusCancelled)
	}
	return
}

// plan builds the enabled stage sequence for this export.
func (i *Importer) plan(export *NormalizedExport) []stage {
	var roots, replies []NormalizedMessage
	var attachments int
	if export != nil {
		for _, m := range export.Messages {
			if m.ThreadParentSourceID == "" {
				roots = append(roots, m)
			} else {
				replies = append(replies, m)
			}
			attachments += len(m.Attachments)
		}
	}

	stages := []stage{{name: "validate", total: 1, run: i.stageValidate(export)}}
	if export == nil {
		// The validate stage reports the fatal error; nothing else runs.
		return stages
	}

	if i.cfg.ImportUsers {
		stages = append(stages, stage{name: "users", total: len(export.Users), run: i.stageUsers(export)})
	}
	if i.cfg.ImportChannels {
		stages = append(stages, stage{name: "channels", total: len(export.Channels), run: i.stageChannels(export)})
	}
	if i.cfg.ImportMessages {
		stages = append(stages, stage{name: "messages", total: len(roots), run: i.stageMessages(export.Platform, roots, false)})
		if i.cfg.ImportThreads {
			stages = append(stages, stage{name: "threads", total: len(replies), run: i.stageMessages(export.Platform, replies, true)})
		}
	}
	if i.cfg.ImportFiles {
		stages = append(stages, stage{name: "files", total: attachments, run: i.stageFiles(export.Messages)})
	}
	stages = append(stages, stage{name: "finalize", total: 1, run: i.stageFinalize()})
	return stages
}

func (i *Importer) stageValidate(export *NormalizedExport) func(context.Context) error {
	return func(context.Context) error {
		if export == nil {
			return ValidationError("no export payload")
		}
		if len(export.Users) == 0 && len(export.Channels) == 0 && len(export.Messages) == 0 {
			return ValidationError("export contains no users, channels or messages")
		}
		i.advanceItem()
		return nil
	}
}

func (i *Importer) stageUsers(export *NormalizedExport) func(context.Context) error {
	return func(ctx context.Context) error {
		for _, u := range export.Users {
			if i.isCancelled(ctx) {
				return nil
			}
			i.importUser(ctx, export.Platform, u)
			i.advanceItem()
		}
		return nil
	}
}

func (i *Importer) stageChannels(export *NormalizedExport) func(context.Context) error {
	return func(ctx context.Context) error {
		for _, c := range export.Channels {
			if i.isCancelled(ctx) {
				return nil
			}
			i.importChannel(ctx, export.Platform, c)
			i.advanceItem()
		}
		return nil
	}
}

func (i *Importer) stageMessages(platform string, messages []NormalizedMessage, replyPass bool) func(context.Context) error {
	return func(ctx context.Context) error {
		for _, m := range messages {
			if i.isCancelled(ctx) {
				return nil
			}
			i.importMessage(ctx, platform, m, replyPass)
			i.advanceItem()
		}
		return nil
	}
}

func (i *Importer) stageFiles(messages []NormalizedMessage) func(context.Context) error {
	type item struct {
		messageSourceID string
		att             NormalizedAttachment
	}
	var items []item
	for _, m := range messages {
		for _, att := range m.Attachments {
			items = append(items, item{messageSourceID: m.SourceID, att: att})
		}
	}

	return func(ctx context.Context) error {
		workers := i.fileWorkers
		if workers < 1 {
			workers = 1
		}
		sem := make(chan struct{}, workers)
		var wg sync.WaitGroup
		for _, it := range items {
			// Checked before dispatch, so a cancellation mid-stage stops
			// new work without waiting on more than the in-flight items.
			if i.isCancelled(ctx) {
				break
			}
			sem <- struct{}{}
			wg.Add(1)
			go func(it item) {
				defer wg.Done()
				defer func() { <-sem }()
				i.importFile(ctx, it.messageSourceID, it.att)
				i.advanceItem()
			}(it)
		}
		wg.Wait()
		return nil
	}
}

func (i *Importer) stageFinalize() func(context.Context) error {
	return func(context.Context) error {
		i.advanceItem()
		return nil
	}
}

func (i *Importer) importUser(ctx context.Context, platform string, u NormalizedUser) {
	if u.Bot || u.Deleted {
		reason := "bot account"
		if u.Deleted {
			reason = "deleted account"
		}
		i.withStats(func(s *Stats) { s.UsersSkipped++ })
		i.addWarning(WarningKindSkipped, "user skipped: "+reason, u.SourceID)
		return
	}

	id, err := i.gateway.CreateUser(ctx, u.Email, u.Handle, u.DisplayName, u.AvatarURL, i.meta(platform, u.SourceID))
	if err != nil {
		i.withStats(func(s *Stats) { s.UsersFailed++ })
		i.recordError(&Error{Kind: ErrorKindUser, Message: "create user failed", Details: err.Error(), Item: u.SourceID, Recoverable: true})
		return
	}
	if err := i.ids.Bind(EntityUsers, u.SourceID, id); err != nil {
		i.withStats(func(s *Stats) { s.UsersFailed++ })
		i.recordError(&Error{Kind: ErrorKindUser, Message: "bind user id failed", Details: err.Error(), Item: u.SourceID, Recoverable: true})
		return
	}
	i.withStats(func(s *Stats) { s.UsersImported++ })
}

func (i *Importer) importChannel(ctx context.Context, platform string, c NormalizedChannel) {
	if !i.channelAllowed(c.Name) {
		i.withStats(func(s *Stats) { s.ChannelsSkipped++ })
		i.addWarning(WarningKindSkipped, "channel excluded by filter", c.SourceID)
		return
	}
	if c.Archived {
		i.withStats(func(s *Stats) { s.ChannelsSkipped++ })
		i.addWarning(WarningKindSkipped, "archived channel skipped", c.SourceID)
		return
	}

	res := resolver{ids: i.ids}
	// The creator may have been filtered or failed upstream; the channel
	// is still created, just without an owner reference.
	creatorID, _ := res.author(c.CreatorSourceID)

	id, err := i.gateway.CreateChannel(ctx, c.Name, c.Topic, c.Private, creatorID, i.meta(platform, c.SourceID))
	if err != nil {
		i.withStats(func(s *Stats) { s.ChannelsFailed++ })
		i.recordError(&Error{Kind: ErrorKindChannel, Message: "create channel failed", Details: err.Error(), Item: c.SourceID, Recoverable: true})
		return
	}
	if err := i.ids.Bind(EntityChannels, c.SourceID, id); err != nil {
		i.withStats(func(s *Stats) { s.ChannelsFailed++ })
		i.recordError(&Error{Kind: ErrorKindChannel, Message: "bind channel id failed", Details: err.Error(), Item: c.SourceID, Recoverable: true})
		return
	}

	var members []string
	for _, sourceID := range c.MemberSourceIDs {
		if memberID, ok := res.author(sourceID); ok {
			members = append(members, memberID)
		}
	}
	if len(members) > 0 {
		if err := i.gateway.AddChannelMembers(ctx, id, members); err != nil {
			// The channel itself was created; record the membership
			// failure but count the channel as imported.
			i.recordError(&Error{Kind: ErrorKindChannel, Message: "add channel members failed", Details: err.Error(), Item: c.SourceID, Recoverable: true})
		}
	}
	i.withStats(func(s *Stats) { s.ChannelsImported++ })
}

func (i *Importer) importMessage(ctx context.Context, platform string, m NormalizedMessage, reply bool) {
	if !i.withinDateRange(m.Timestamp) {
		i.withStats(func(s *Stats) { s.MessagesSkipped++ })
		i.addWarning(WarningKindSkipped, "message outside date range", m.SourceID)
		return
	}
	if m.Content == "" && len(m.Embeds) == 0 && len(m.Attachments) == 0 {
		i.withStats(func(s *Stats) { s.MessagesSkipped++ })
		i.addWarning(WarningKindSkipped, "message has no content", m.SourceID)
		return
	}

	res := resolver{ids: i.ids}
	authorID, ok := res.author(m.AuthorSourceID)
	if !ok {
		i.withStats(func(s *Stats) { s.MessagesSkipped++ })
		i.addWarning(WarningKindSkipped, "author not mapped", m.SourceID)
		return
	}
	channelID, ok := res.channel(m.ChannelSourceID)
	if !ok {
		i.withStats(func(s *Stats) { s.MessagesSkipped++ })
		i.addWarning(WarningKindSkipped, "no channel mapping", m.SourceID)
		return
	}

	var parentID string
	if reply {
		parentID, ok = res.message(m.ThreadParentSourceID)
		if !ok {
			i.withStats(func(s *Stats) { s.MessagesSkipped++ })
			i.addWarning(WarningKindSkipped, "parent message not found", m.SourceID)
			return
		}
	}

	content := m.Content
	if len(m.Embeds) > 0 {
		content = flattenEmbeds(m.Content, m.Embeds)
		i.addWarning(WarningKindModified, "embeds flattened into message body", m.SourceID)
	}

	id, err := i.gateway.CreateMessage(ctx, content, authorID, channelID, parentID, m.Timestamp, i.meta(platform, m.SourceID))
	if err != nil {
		i.withStats(func(s *Stats) { s.MessagesFailed++ })
		i.recordError(&Error{Kind: ErrorKindMessage, Message: "create message failed", Details: err.Error(), Item: m.SourceID, Recoverable: true})
		return
	}
	if err := i.ids.Bind(EntityMessages, m.SourceID, id); err != nil {
		i.withStats(func(s *Stats) { s.MessagesFailed++ })
		i.recordError(&Error{Kind: ErrorKindMessage, Message: "bind message id failed", Details: err.Error(), Item: m.SourceID, Recoverable: true})
		return
	}

	i.withStats(func(s *Stats) {
		s.MessagesImported++
		if reply {
			s.ThreadsImported++
		}
	})

	if i.cfg.ImportReactions {
		i.importReactions(ctx, id, m)
	}
}

func (i *Importer) importReactions(ctx context.Context, messageID string, m NormalizedMessage) {
	res := resolver{ids: i.ids}
	for _, r := range m.Reactions {
		for _, sourceID := range r.UserSourceIDs {
			// Unattributable reactors are dropped without a warning;
			// reactions only count when successfully attributed.
			userID, ok := res.author(sourceID)
			if !ok {
				continue
			}
			if err := i.gateway.CreateReaction(ctx, messageID, userID, r.Emoji); err != nil {
				i.recordError(&Error{Kind: ErrorKindMessage, Message: "create reaction failed", Details: err.Error(), Item: m.SourceID, Recoverable: true})
				continue
			}
			i.withStats(func(s *Stats) { s.ReactionsImported++ })
		}
	}
}

func (i *Importer) importFile(ctx context.Context, messageSourceID string, att NormalizedAttachment) {
	messageID, ok := resolver{ids: i.ids}.message(messageSourceID)
	if !ok {
		i.withStats(func(s *Stats) { s.FilesSkipped++ })
		i.addWarning(WarningKindSkipped, "owning message not imported", att.Filename)
		return
	}
	if err := i.gateway.CreateFile(ctx, messageID, att.URL, att.Filename, att.MimeType, att.SizeBytes); err != nil {
		i.withStats(func(s *Stats) { s.FilesFailed++ })
		i.recordError(&Error{Kind: ErrorKindFile, Message: "create file failed", Details: err.Error(), Item: att.Filename, Recoverable: true})
		return
	}
	i.withStats(func(s *Stats) { s.FilesImported++ })
}

// flattenEmbeds appends a delimiter block per embed to the message body.
// Lossy but deterministic.
func flattenEmbeds(content string, embeds []NormalizedEmbed) string {
	var b strings.Builder
	b.WriteString(content)
	for _, e := range embeds {
		b.WriteString("\n\n---\n")
		if e.Title != "" {
			b.WriteString(e.Title)
			b.WriteString("\n")
		}
		if e.Description != "" {
			b.WriteString(e.Description)
			b.WriteString("\n")
		}
		if e.URL != "" {
			b.WriteString(e.URL)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (i *Importer) channelAllowed(name string) bool {
	if i.cfg.ChannelFilter == nil {
		return true
	}
	for _, allowed := range i.cfg.ChannelFilter {
		if strings.EqualFold(allowed, name) {
			return true
		}
	}
	return false
}

func (i *Importer) withinDateRange(ts time.Time) bool {
	if i.cfg.DateRangeStart != nil && ts.Before(*i.cfg.DateRangeStart) {
		return false
	}
	if i.cfg.DateRangeEnd != nil && ts.After(*i.cfg.DateRangeEnd) {
		return false
	}
	return true
}

func (i *Importer) meta(platform, sourceID string) Metadata {
	return Metadata{
		ImportSource: platform,
		ImportedID:   sourceID,
		ImportedAt:   time.Now().UTC(),
	}
}

func (i *Importer) isCancelled(ctx context.Context) bool {
	if ctx != nil && ctx.Err() != nil {
		i.cancelled.Store(true)
	}
	return i.cancelled.Load()
}

func (i *Importer) beginStage(step, total int, name string, items int) {
	i.mu.Lock()
	i.progress.CurrentStep = step
	i.progress.TotalSteps = total
	i.progress.CurrentStage = name
	i.progress.ItemsProcessed = 0
	i.progress.ItemsTotal = items
	i.recomputeLocked()
	snap := i.snapshotLocked()
	i.mu.Unlock()
	i.notify(snap)
}

func (i *Importer) advanceItem() {
	i.mu.Lock()
	i.progress.ItemsProcessed++
	i.recomputeLocked()
	snap := i.snapshotLocked()
	i.mu.Unlock()
	i.notify(snap)
}

// recomputeLocked applies the overall progress formula: completed stages
// plus the fraction of the current stage, clamped to [0,100]. An empty
// stage counts as fully done the moment it begins.
func (i *Importer) recomputeLocked() {
	total := i.progress.TotalSteps
	if total == 0 {
		return
	}
	pct := float64(i.progress.CurrentStep-1) / float64(total) * 100
	if i.progress.ItemsTotal > 0 {
		done := float64(i.progress.ItemsProcessed)
		if done > float64(i.progress.ItemsTotal) {
			done = float64(i.progress.ItemsTotal)
		}
		pct += done / float64(i.progress.ItemsTotal) * (100 / float64(total))
	} else {
		pct += 100 / float64(total)
	}
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	i.progress.Percent = pct
}

func (i *Importer) setTerminal(status Status) {
	i.mu.Lock()
	if i.progress.Status == StatusImporting {
		i.progress.Status = status
	}
	i.mu.Unlock()
}

func (i *Importer) withStats(fn func(*Stats)) {
	i.mu.Lock()
	fn(&i.stats)
	i.mu.Unlock()
}

func (i *Importer) addWarning(kind WarningKind, message, item string) {
	i.mu.Lock()
	i.progress.Warnings = append(i.progress.Warnings, Warning{Kind: kind, Message: message, Item: item})
	i.mu.Unlock()
}

func (i *Importer) recordError(err *Error) {
	i.mu.Lock()
	i.progress.Errors = append(i.progress.Errors, *err)
	i.mu.Unlock()
}

func (i *Importer) snapshotLocked() Progress {
	snap := i.progress
	snap.Errors = append([]Error(nil), i.progress.Errors...)
	snap.Warnings = append([]Warning(nil), i.progress.Warnings...)
	return snap
}

func (i *Importer) notify(snap Progress) {
	if i.onProgress != nil {
		i.onProgress(snap)
	}
}

func asImportError(err error) *Error {
	var ierr *Error
	if errors.As(err, &ierr) {
		return ierr
	}
	return &Error{Kind: ErrorKindUnknown, Message: err.Error(), Recoverable: false}
}
