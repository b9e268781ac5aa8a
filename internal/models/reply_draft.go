package models

import "time"

// ReplyDraft is an append-only, versioned draft for one email item.
// Versions start at 1 and are never reused; Instruction is nil for the
// first auto-generated draft and records the revision request otherwise.
type ReplyDraft struct {
	ID          string    `gorm:"column:id;primaryKey"`
	EmailItemID string    `gorm:"column:email_item_id;index"`
	Version     int       `gorm:"column:version"`
	DraftText   string    `gorm:"column:draft_text"`
	Instruction *string   `gorm:"column:instruction"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName specifies the table name for GORM
func (ReplyDraft) TableName() string {
	return "reply_drafts"
}
