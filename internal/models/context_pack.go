package models

import "time"

// ContextPack is the per-user brand/tone/policy bundle fed into LLM prompts.
// At most one per user; an absent pack means defaults apply.
type ContextPack struct {
	UserID           string     `gorm:"column:user_id;primaryKey"`
	BrandName        *string    `gorm:"column:brand_name"`
	BrandBlurb       *string    `gorm:"column:brand_blurb"`
	ProductsInfoJSON JSONB      `gorm:"column:products_info_json;type:jsonb"`
	PoliciesJSON     JSONB      `gorm:"column:policies_json;type:jsonb"`
	Tone             *string    `gorm:"column:tone"`
	Signature        *string    `gorm:"column:signature"`
	KeywordsArray    StringList `gorm:"column:keywords_array;type:jsonb"`
	CreatedAt        time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (ContextPack) TableName() string {
	return "context_packs"
}
