package models

import "time"

// ProcessingRun is the audit record of one poll-and-process pass for one
// account. Insertion is best-effort and never affects the run outcome.
type ProcessingRun struct {
	ID             string    `gorm:"column:id;primaryKey"`
	UserID         string    `gorm:"column:user_id;index"`
	GmailAccountID string    `gorm:"column:gmail_account_id;index"`
	StartedAt      time.Time `gorm:"column:started_at"`
	FinishedAt     time.Time `gorm:"column:finished_at"`
	Counts         JSONB     `gorm:"column:counts;type:jsonb"`
	LogJSON        JSONB     `gorm:"column:log_json;type:jsonb"`
}

// TableName specifies the table name for GORM
func (ProcessingRun) TableName() string {
	return "processing_runs"
}
