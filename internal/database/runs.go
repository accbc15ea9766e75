package database

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nself-org/chat-importer/internal/entities"
	"github.com/nself-org/chat-importer/internal/importer"
)

// RunRepository persists finished import run summaries.
type RunRepository struct {
	db *Database
}

// NewRunRepository creates a run history repository.
func NewRunRepository(db *Database) *RunRepository {
	return &RunRepository{db: db}
}

// SaveResult records a finished run.
func (r *RunRepository) SaveResult(id, platform string, startedAt time.Time, result *importer.Result) error {
	stats, err := json.Marshal(result.Stats)
	if err != nil {
		return fmt.Errorf("marshal stats: %w", err)
	}
	errs, err := json.Marshal(result.Progress.Errors)
	if err != nil {
		return fmt.Errorf("marshal errors: %w", err)
	}
	warnings, err := json.Marshal(result.Progress.Warnings)
	if err != nil {
		return fmt.Errorf("marshal warnings: %w", err)
	}

	run := entities.ImportRun{
		ID:         id,
		Platform:   platform,
		Status:     string(result.Progress.Status),
		Success:    result.Success,
		Stats:      string(stats),
		Errors:     string(errs),
		Warnings:   string(warnings),
		StartedAt:  startedAt,
		FinishedAt: startedAt.Add(result.Stats.Duration),
		Duration:   result.Stats.Duration,
	}
	return r.db.DB.Create(&run).Error
}

// List returns the most recent runs, newest first.
func (r *RunRepository) List(limit int) ([]entities.ImportRun, error) {
	if limit <= 0 {
		limit = 50
	}
	var runs []entities.ImportRun
	err := r.db.DB.Order("finished_at DESC").Limit(limit).Find(&runs).Error
	return runs, err
}

// Get returns one persisted run by id.
func (r *RunRepository) Get(id string) (*entities.ImportRun, error) {
	var run entities.ImportRun
	if err := r.db.DB.Where("id = ?", id).First(&run).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

// DeleteFinishedBefore prunes run records older than the cutoff and
// returns how many were removed.
func (r *RunRepository) DeleteFinishedBefore(cutoff time.Time) (int64, error) {
	result := r.db.DB.Where("finished_at < ?", cutoff).Delete(&entities.ImportRun{})
	return result.RowsAffected, result.Error
}
