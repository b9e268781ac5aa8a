package models

import "time"

// PushSubscription is one browser push endpoint for a user device.
// Rows are deleted when delivery reports the endpoint gone (404/410).
type PushSubscription struct {
	ID         string     `gorm:"column:id;primaryKey"`
	UserID     string     `gorm:"column:user_id;index"`
	Endpoint   string     `gorm:"column:endpoint"`
	P256dh     string     `gorm:"column:p256dh"`
	Auth       string     `gorm:"column:auth"`
	LastUsedAt *time.Time `gorm:"column:last_used_at"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
}

// TableName specifies the table name for GORM
func (PushSubscription) TableName() string {
	return "push_subscriptions"
}
