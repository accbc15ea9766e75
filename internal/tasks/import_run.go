package tasks

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/nself-org/chat-importer/internal/adapters"
	"github.com/nself-org/chat-importer/internal/database"
	"github.com/nself-org/chat-importer/internal/importer"
)

// ImportRunTask performs one import run over a staged export payload.
type ImportRunTask struct {
	RunID    string          `json:"run_id"`
	Platform string          `json:"platform"`
	Path     string          `json:"path"`
	Options  importer.Config `json:"config"`
}

// Config returns the queue configuration for import run tasks. A run is
// not safely repeatable after a partial failure, so it is attempted
// once; the gateway's imported-id dedup covers manual re-submission.
func (t ImportRunTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "import_run",
		MaxAttempts: 1,
		Timeout:     30 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// ImportRunDeps are the collaborators an import run task needs.
type ImportRunDeps struct {
	Manager     *importer.Manager
	Runs        *database.RunRepository
	NewGateway  func(cfg importer.Config) importer.Gateway
	FileWorkers int
}

// ImportRunProcessor creates the processor function for ImportRunTask.
func ImportRunProcessor(deps ImportRunDeps) backlite.QueueProcessor[ImportRunTask] {
	return func(ctx context.Context, task ImportRunTask) error {
		run, err := deps.Manager.Get(task.RunID)
		if err != nil {
			// The process restarted between enqueue and execution;
			// rebuild the run under its original id.
			imp := importer.New(deps.NewGateway(task.Options), task.Options,
				importer.WithFileWorkers(deps.FileWorkers))
			run = deps.Manager.Restore(task.RunID, task.Platform, imp)
		}

		raw, err := os.ReadFile(task.Path)
		if err != nil {
			return fmt.Errorf("read staged export %s: %w", task.Path, err)
		}

		started := time.Now()

		adapter, err := adapters.ForPlatform(task.Platform)
		var export *importer.NormalizedExport
		if err == nil {
			export, err = adapters.Load(adapter, raw)
		}
		if err != nil {
			// A malformed payload will not parse better on retry;
			// record the failed run and consume the task.
			result := failedResult(err)
			run.Finish(result)
			if saveErr := deps.Runs.SaveResult(task.RunID, task.Platform, started, result); saveErr != nil {
				log.Printf("[TASK ERROR] persist failed run %s: %v", task.RunID, saveErr)
			}
			os.Remove(task.Path)
			log.Printf("[TASK] import run %s failed to parse: %v", task.RunID, err)
			return nil
		}

		result := run.Importer().Run(ctx, export)
		run.Finish(result)
		if err := deps.Runs.SaveResult(task.RunID, task.Platform, started, result); err != nil {
			log.Printf("[TASK ERROR] persist run %s: %v", task.RunID, err)
		}
		os.Remove(task.Path)

		log.Printf("[TASK] import run %s finished: status=%s users=%d channels=%d messages=%d files=%d",
			task.RunID, result.Progress.Status,
			result.Stats.UsersImported, result.Stats.ChannelsImported,
			result.Stats.MessagesImported, result.Stats.FilesImported)
		return nil
	}
}

// NewImportRunQueue creates the backlite queue for import run tasks.
func NewImportRunQueue(deps ImportRunDeps) backlite.Queue {
	return backlite.NewQueue(ImportRunProcessor(deps))
}

func failedResult(err error) *importer.Result {
	var ierr *importer.Error
	if !errors.As(err, &ierr) {
		ierr = &importer.Error{
			Kind:        importer.ErrorKindValidation,
			Message:     err.Error(),
			Recoverable: false,
		}
	}
	return &importer.Result{
		Progress: importer.Progress{
			Status: importer.StatusError,
			Errors: []importer.Error{*ierr},
		},
	}
}
