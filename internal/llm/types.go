package llm

import (
	"errors"
	"fmt"
	"strings"
)

// ContextPack is the per-user business context injected into every prompt.
type ContextPack struct {
	BrandName    string                 `json:"brand_name,omitempty"`
	BrandBlurb   string                 `json:"brand_blurb,omitempty"`
	ProductsInfo map[string]interface{} `json:"products_info_json,omitempty"`
	Policies     map[string]interface{} `json:"policies_json,omitempty"`
	Tone         string                 `json:"tone,omitempty"`
	Signature    string                 `json:"signature,omitempty"`
	Keywords     []string               `json:"keywords_array,omitempty"`
}

// Email carries the fields of one message that prompts are built from.
type Email struct {
	FromEmail string
	Subject   string
	Snippet   string
	BodyText  string
}

// Classification is the relevance verdict for one email.
type Classification struct {
	IsRelevant bool    `json:"is_relevant"`
	Confidence float64 `json:"confidence"`
	Category   string  `json:"category"`
	Reason     string  `json:"reason"`
}

func (c *Classification) Validate() error {
	if c.Confidence < 0 || c.Confidence > 1 {
		return fmt.Errorf("confidence %v out of range [0,1]", c.Confidence)
	}
	return nil
}

// Summary is the structured digest of one email.
type Summary struct {
	SummaryBullets    []string `json:"summary_bullets"`
	WhatTheyWant      []string `json:"what_they_want"`
	SuggestedNextStep string   `json:"suggested_next_step"`
	Flags             []string `json:"flags,omitempty"`
}

func (s *Summary) Validate() error {
	if len(s.SummaryBullets) == 0 {
		return errors.New("summary_bullets must not be empty")
	}
	return nil
}

// OneLine picks the best single line for a push notification body.
func (s *Summary) OneLine() string {
	if s != nil {
		if len(s.SummaryBullets) > 0 {
			if b := strings.TrimSpace(s.SummaryBullets[0]); b != "" {
				return b
			}
		}
		if n := strings.TrimSpace(s.SuggestedNextStep); n != "" {
			return n
		}
	}
	return ""
}

// PlaceholderSummary stands in when summarization is disabled but a draft
// still needs summary context.
func PlaceholderSummary() *Summary {
	return &Summary{
		SummaryBullets:    []string{"(no summary)"},
		WhatTheyWant:      []string{"(unknown)"},
		SuggestedNextStep: "Reply if needed.",
	}
}

// Draft is a generated reply body.
type Draft struct {
	DraftText           string   `json:"draft_text"`
	ClarifyingQuestions []string `json:"clarifying_questions,omitempty"`
}

func (d *Draft) Validate() error {
	if strings.TrimSpace(d.DraftText) == "" {
		return errors.New("draft_text must not be empty")
	}
	return nil
}

// Revision is the result of revising an existing draft per an instruction.
type Revision struct {
	RevisedDraft string `json:"revised_draft"`
}

func (r *Revision) Validate() error {
	if strings.TrimSpace(r.RevisedDraft) == "" {
		return errors.New("revised_draft must not be empty")
	}
	return nil
}
