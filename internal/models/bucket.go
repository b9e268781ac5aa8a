package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// FallbackSlug is the slug of the always-present catch-all bucket. It is
// never matched by rule; the router returns it only when nothing else hits.
const FallbackSlug = "other"

// DefaultPriority is used when a bucket row carries no priority.
const DefaultPriority = 100

// Matchers holds the inclusion/exclusion rules of a bucket. All string
// comparisons are case-insensitive; exclusion always overrides inclusion.
type Matchers struct {
	Keywords             []string `json:"keywords"`
	SenderEmails         []string `json:"sender_emails"`
	SenderDomains        []string `json:"sender_domains"`
	ExcludeKeywords      []string `json:"exclude_keywords"`
	ExcludeSenderEmails  []string `json:"exclude_sender_emails"`
	ExcludeSenderDomains []string `json:"exclude_sender_domains"`
}

// Value implements driver.Valuer for Matchers
func (m Matchers) Value() (driver.Value, error) {
	return json.Marshal(m)
}

// Scan implements sql.Scanner for Matchers
func (m *Matchers) Scan(value interface{}) error {
	if value == nil {
		*m = Matchers{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(bytes, m)
}

// Actions is the per-bucket processing policy. The LLM/push switches default
// to true when absent, so they are pointers; Ignore defaults to false.
type Actions struct {
	Ignore             bool     `json:"ignore"`
	LLMClassify        *bool    `json:"llm_classify,omitempty"`
	LLMSummarize       *bool    `json:"llm_summarize,omitempty"`
	LLMDraft           *bool    `json:"llm_draft,omitempty"`
	Push               *bool    `json:"push,omitempty"`
	PushMinConfidence  *float64 `json:"push_min_confidence,omitempty"`
	DraftMinConfidence *float64 `json:"draft_min_confidence,omitempty"`
}

// Value implements driver.Valuer for Actions
func (a Actions) Value() (driver.Value, error) {
	return json.Marshal(a)
}

// Scan implements sql.Scanner for Actions
func (a *Actions) Scan(value interface{}) error {
	if value == nil {
		*a = Actions{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(bytes, a)
}

func boolOrTrue(b *bool) bool {
	return b == nil || *b
}

func floatOrZero(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}

// ClassifyEnabled reports whether the bucket wants LLM classification.
func (a Actions) ClassifyEnabled() bool { return boolOrTrue(a.LLMClassify) }

// SummarizeEnabled reports whether the bucket wants LLM summarization.
func (a Actions) SummarizeEnabled() bool { return boolOrTrue(a.LLMSummarize) }

// DraftEnabled reports whether the bucket wants an auto-generated reply draft.
func (a Actions) DraftEnabled() bool { return boolOrTrue(a.LLMDraft) }

// PushEnabled reports whether the bucket wants web push notifications.
func (a Actions) PushEnabled() bool { return boolOrTrue(a.Push) }

// PushThreshold returns the minimum confidence required to push (0 = always).
func (a Actions) PushThreshold() float64 { return floatOrZero(a.PushMinConfidence) }

// DraftThreshold returns the minimum confidence required to draft (0 = always).
func (a Actions) DraftThreshold() float64 { return floatOrZero(a.DraftMinConfidence) }

// Bucket is a named, priority-ordered routing rule with an action policy.
type Bucket struct {
	ID          string    `gorm:"column:id;primaryKey"`
	UserID      string    `gorm:"column:user_id;index"`
	Slug        string    `gorm:"column:slug"`
	Name        string    `gorm:"column:name"`
	Description *string   `gorm:"column:description"`
	Priority    int       `gorm:"column:priority"`
	IsEnabled   bool      `gorm:"column:is_enabled"`
	Matchers    Matchers  `gorm:"column:matchers;type:jsonb"`
	Actions     Actions   `gorm:"column:actions;type:jsonb"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (Bucket) TableName() string {
	return "email_buckets"
}

// EffectivePriority returns the sort key for routing (missing = 100).
func (b Bucket) EffectivePriority() int {
	if b.Priority == 0 {
		return DefaultPriority
	}
	return b.Priority
}
