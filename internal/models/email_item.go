package models

import "time"

// Email item status constants (per-item state machine)
const (
	ItemStatusIngested    = "ingested"     // stored, not yet processed
	ItemStatusProcessed   = "processed"    // terminal: nothing for a human to do
	ItemStatusNeedsReview = "needs_review" // terminal for the pipeline: awaiting human review
	ItemStatusFailed      = "failed"       // terminal: processing error recorded
	ItemStatusSent        = "sent"         // a reply was sent from this item
)

// Categories written without an LLM call
const (
	CategoryIgnored      = "ignored"
	CategoryBucketRouted = "bucket_routed"
)

// EmailItem is one ingested email and its derived processing state.
type EmailItem struct {
	ID             string     `gorm:"column:id;primaryKey"`
	UserID         string     `gorm:"column:user_id;index"`
	GmailAccountID string     `gorm:"column:gmail_account_id;index"`
	GmailMessageID string     `gorm:"column:gmail_message_id"`
	ThreadID       string     `gorm:"column:thread_id"`
	FromEmail      *string    `gorm:"column:from_email"`
	Subject        *string    `gorm:"column:subject"`
	Snippet        *string    `gorm:"column:snippet"`
	BodyText       *string    `gorm:"column:body_text"`
	ReceivedAt     time.Time  `gorm:"column:received_at;index"`
	BucketID       *string    `gorm:"column:bucket_id"`
	IsRelevant     bool       `gorm:"column:is_relevant"`
	Confidence     float64    `gorm:"column:confidence"`
	Category       *string    `gorm:"column:category"`
	Reason         *string    `gorm:"column:reason"`
	SummaryJSON    JSONB      `gorm:"column:summary_json;type:jsonb"`
	Status         string     `gorm:"column:status;index"`
	ErrorMessage   *string    `gorm:"column:error_message"`
	SentMessageID  *string    `gorm:"column:sent_message_id"`
	SentAt         *time.Time `gorm:"column:sent_at"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (EmailItem) TableName() string {
	return "email_items"
}
