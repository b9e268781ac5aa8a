package buckets

import "github.com/inboxcopilot/triage-worker/internal/models"

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }

func floatPtr(f float64) *float64 { return &f }

// DefaultBuckets is the seed set for a new user, tuned for solo founders and
// small startup operators: catch the stuff you must act on, suppress
// newsletter noise.
func DefaultBuckets() []models.Bucket {
	return []models.Bucket{
		{
			Slug:        "priority",
			Name:        "Priority",
			Description: strPtr("Time-sensitive, high-stakes messages."),
			Priority:    10,
			IsEnabled:   true,
			Matchers: models.Matchers{
				Keywords: []string{
					"urgent", "asap", "action required", "deadline", "past due",
					"overdue", "payment failed", "account suspended",
					"security alert", "verify your", "reset your password",
				},
			},
			Actions: models.Actions{},
		},
		{
			Slug:        "sales",
			Name:        "Sales",
			Description: strPtr("Leads, pricing, demos, and revenue conversations."),
			Priority:    20,
			IsEnabled:   true,
			Matchers: models.Matchers{
				Keywords: []string{
					"pricing", "price", "quote", "quotation", "demo", "trial",
					"pilot", "poc", "proposal", "rfp", "rfq", "buy", "purchase",
					"subscription", "enterprise", "licensing", "integration",
					"partnership",
				},
				ExcludeKeywords: []string{"unsubscribe"},
			},
			Actions: models.Actions{},
		},
		{
			Slug:        "support",
			Name:        "Customer",
			Description: strPtr("Customer support, bugs, issues, cancellations."),
			Priority:    30,
			IsEnabled:   true,
			Matchers: models.Matchers{
				Keywords: []string{
					"support", "help", "issue", "bug", "error", "broken",
					"failed", "can't", "cannot", "refund", "cancel",
					"cancellation", "complaint",
				},
				ExcludeKeywords: []string{"unsubscribe"},
			},
			Actions: models.Actions{},
		},
		{
			Slug:        "hiring",
			Name:        "Hiring",
			Description: strPtr("Candidates, recruiters, interviews, hiring logistics."),
			Priority:    40,
			IsEnabled:   true,
			Matchers: models.Matchers{
				Keywords: []string{
					"application", "apply", "resume", "cv", "candidate",
					"interview", "recruiter", "hiring", "role", "position",
					"offer", "salary",
				},
				ExcludeKeywords: []string{"unsubscribe"},
			},
			Actions: models.Actions{},
		},
		{
			Slug:        "finance",
			Name:        "Finance",
			Description: strPtr("Invoices, receipts, payments, renewals."),
			Priority:    50,
			IsEnabled:   true,
			Matchers: models.Matchers{
				Keywords: []string{
					"invoice", "billing", "payment", "receipt", "charged",
					"charge", "renewal", "tax", "vat", "gst", "wire", "bank",
					"payout", "statement", "balance", "past due", "overdue",
				},
				ExcludeKeywords: []string{"unsubscribe"},
			},
			Actions: models.Actions{LLMDraft: boolPtr(false)},
		},
		{
			Slug:        "ops",
			Name:        "Ops",
			Description: strPtr("Contracts, legal, security, vendor questionnaires."),
			Priority:    60,
			IsEnabled:   true,
			Matchers: models.Matchers{
				Keywords: []string{
					"contract", "nda", "msa", "dpa", "sow", "legal", "terms",
					"privacy", "security", "soc2", "soc 2", "iso", "gdpr",
					"data processing", "audit", "compliance", "questionnaire",
				},
				ExcludeKeywords: []string{"unsubscribe"},
			},
			Actions: models.Actions{LLMDraft: boolPtr(false)},
		},
		{
			Slug:        "fyi",
			Name:        "FYI",
			Description: strPtr("Newsletters and low-signal updates."),
			Priority:    90,
			IsEnabled:   true,
			Matchers: models.Matchers{
				Keywords: []string{
					"unsubscribe", "newsletter", "digest", "view in browser",
					"no-reply", "noreply", "do not reply",
				},
			},
			Actions: models.Actions{
				Ignore:       true,
				LLMClassify:  boolPtr(false),
				LLMSummarize: boolPtr(false),
				LLMDraft:     boolPtr(false),
				Push:         boolPtr(false),
			},
		},
		{
			Slug:        models.FallbackSlug,
			Name:        "Other",
			Description: strPtr("Everything else. We only push/draft when confidence is high."),
			Priority:    1000,
			IsEnabled:   true,
			Matchers:    models.Matchers{},
			Actions: models.Actions{
				PushMinConfidence:  floatPtr(0.85),
				DraftMinConfidence: floatPtr(0.7),
			},
		},
	}
}
