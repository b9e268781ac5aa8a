package models

import "time"

// Gmail account status constants
const (
	AccountStatusActive   = "active"
	AccountStatusError    = "error"
	AccountStatusDisabled = "disabled"
)

// GmailAccount is a connected mailbox. The refresh token is stored
// encrypted (AES-256-GCM, base64url blob).
type GmailAccount struct {
	ID                    string     `gorm:"column:id;primaryKey"`
	UserID                string     `gorm:"column:user_id;index"`
	GoogleEmail           string     `gorm:"column:google_email"`
	RefreshTokenEncrypted string     `gorm:"column:refresh_token_encrypted"`
	Scopes                StringList `gorm:"column:scopes;type:jsonb"`
	Status                string     `gorm:"column:status;index"`
	ErrorMessage          *string    `gorm:"column:error_message"`
	LastPolledAt          *time.Time `gorm:"column:last_polled_at"`
	CreatedAt             time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (GmailAccount) TableName() string {
	return "gmail_accounts"
}
