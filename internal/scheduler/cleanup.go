package scheduler

import (
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/nself-org/chat-importer/internal/config"
	"github.com/nself-org/chat-importer/internal/database"
)

// RunCleanupScheduler periodically prunes finished import run records
// past their retention window.
type RunCleanupScheduler struct {
	runs *database.RunRepository
	cfg  config.Cleanup

	cron      *cron.Cron
	mu        sync.Mutex
	isRunning bool
}

// NewRunCleanupScheduler creates a new scheduler instance.
func NewRunCleanupScheduler(runs *database.RunRepository, cfg config.Cleanup) *RunCleanupScheduler {
	return &RunCleanupScheduler{
		runs: runs,
		cfg:  cfg,
		cron: cron.New(cron.WithParser(cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow))),
	}
}

// Start begins the scheduler if cleanup is enabled.
func (s *RunCleanupScheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}
	if !s.cfg.Enabled {
		log.Printf("Import run cleanup scheduler: disabled")
		return nil
	}

	_, err := s.cron.AddFunc(s.cfg.Schedule, s.cleanup)
	if err != nil {
		return err
	}

	s.cron.Start()
	s.isRunning = true
	log.Printf("Import run cleanup scheduler: started (schedule %q, retention %d days)",
		s.cfg.Schedule, s.cfg.RetentionDays)
	return nil
}

// Stop halts the scheduler and waits for a running cleanup to finish.
func (s *RunCleanupScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.isRunning = false
	log.Printf("Import run cleanup scheduler: stopped")
}

func (s *RunCleanupScheduler) cleanup() {
	cutoff := time.Now().AddDate(0, 0, -s.cfg.RetentionDays)
	removed, err := s.runs.DeleteFinishedBefore(cutoff)
	if err != nil {
		log.Printf("Import run cleanup failed: %v", err)
		return
	}
	if removed > 0 {
		log.Printf("Import run cleanup: removed %d records finished before %s",
			removed, cutoff.Format(time.RFC3339))
	}
}
