package entities

import (
	"time"
)

// ImportRun is the persisted summary of one finished import run, kept
// for post-run auditing ("47 bot accounts skipped") and pruned by the
// retention scheduler. Statistics, errors and warnings are stored as
// JSON documents.
type ImportRun struct {
	ID       string `gorm:"primaryKey;size:64" json:"id"`
	Platform string `gorm:"index;size:50" json:"platform"`
	Status   string `gorm:"index;size:20" json:"status"`
	Success  bool   `json:"success"`

	Stats    string `gorm:"type:text" json:"stats"`
	Errors   string `gorm:"type:text" json:"errors,omitempty"`
	Warnings string `gorm:"type:text" json:"warnings,omitempty"`

	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `gorm:"index" json:"finished_at"`
	Duration   time.Duration `json:"duration"`

	CreatedAt time.Time `json:"created_at"`
}
