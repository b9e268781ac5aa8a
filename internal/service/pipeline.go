package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/inboxcopilot/triage-worker/internal/buckets"
	"github.com/inboxcopilot/triage-worker/internal/llm"
	"github.com/inboxcopilot/triage-worker/internal/metrics"
	"github.com/inboxcopilot/triage-worker/internal/models"
	"github.com/inboxcopilot/triage-worker/internal/push"
)

// ItemStore is the slice of the email item repository the pipeline needs.
type ItemStore interface {
	ListIngested(ctx context.Context, accountID string, limit int) ([]models.EmailItem, error)
	UpdateFields(ctx context.Context, itemID string, fields map[string]interface{}) error
}

// DraftStore appends reply draft versions.
type DraftStore interface {
	AppendVersion(ctx context.Context, emailItemID, draftText string, instruction *string) (int, error)
}

// ContextStore loads the user's context pack and seeds the empty default.
type ContextStore interface {
	GetByUser(ctx context.Context, userID string) (*models.ContextPack, error)
	EnsureDefault(ctx context.Context, userID string) error
}

// Notifier fans a notification out to the user's devices and returns the
// delivery count. Implementations must be best effort.
type Notifier interface {
	Notify(ctx context.Context, userID string, n push.Notification) int
}

// RunResult aggregates one batch: counters plus per-item error strings in
// "<item id>: <message>" form.
type RunResult struct {
	Processed int      `json:"processed"`
	Relevant  int      `json:"relevant"`
	Pushed    int      `json:"pushed"`
	Failed    int      `json:"failed"`
	Ignored   int      `json:"ignored"`
	Errors    []string `json:"errors,omitempty"`
}

// Counts returns the counters as a JSONB map for the processing_runs audit row.
func (r RunResult) Counts() models.JSONB {
	return models.JSONB{
		"processed": r.Processed,
		"relevant":  r.Relevant,
		"pushed":    r.Pushed,
		"failed":    r.Failed,
		"ignored":   r.Ignored,
	}
}

// Pipeline turns ingested email items into triaged ones: route to a bucket,
// classify, summarize, draft, notify, and persist the terminal status. One
// item's failure never aborts the batch.
type Pipeline struct {
	items    ItemStore
	drafts   DraftStore
	buckets  buckets.Store
	contexts ContextStore
	llm      llm.Client
	notifier Notifier
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

func NewPipeline(
	items ItemStore,
	drafts DraftStore,
	bucketStore buckets.Store,
	contexts ContextStore,
	llmClient llm.Client,
	notifier Notifier,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Pipeline {
	return &Pipeline{
		items:    items,
		drafts:   drafts,
		buckets:  bucketStore,
		contexts: contexts,
		llm:      llmClient,
		notifier: notifier,
		metrics:  m,
		logger:   logger,
	}
}

// ProcessBatch processes up to maxItems ingested items for one account.
// The returned error covers batch-level failures only; per-item failures
// land in the result.
func (p *Pipeline) ProcessBatch(ctx context.Context, userID, accountID string, maxItems int) (RunResult, error) {
	result := RunResult{}

	bucketList, err := buckets.EnsureDefaults(ctx, p.buckets, userID)
	if err != nil {
		return result, fmt.Errorf("failed to load buckets: %w", err)
	}

	// Seed the empty context pack for new users; the read below tolerates
	// absence, so a failed upsert only gets logged.
	if err := p.contexts.EnsureDefault(ctx, userID); err != nil {
		p.logger.Warn("failed to ensure context pack",
			zap.String("user_id", userID), zap.Error(err))
	}

	pack := p.loadContextPack(ctx, userID)

	items, err := p.items.ListIngested(ctx, accountID, maxItems)
	if err != nil {
		return result, fmt.Errorf("failed to list ingested items: %w", err)
	}

	for _, item := range items {
		if err := p.processItem(ctx, userID, item, bucketList, pack, &result); err != nil {
			result.Failed++
			p.metrics.EmailsFailed.Inc()
			msg := err.Error()
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", item.ID, msg))
			p.logger.Warn("email item processing failed",
				zap.String("email_item_id", item.ID), zap.Error(err))

			failPatch := map[string]interface{}{
				"status":        models.ItemStatusFailed,
				"error_message": msg,
			}
			if updateErr := p.items.UpdateFields(ctx, item.ID, failPatch); updateErr != nil {
				p.logger.Warn("failed to record item failure",
					zap.String("email_item_id", item.ID), zap.Error(updateErr))
			}
		}
	}

	return result, nil
}

func (p *Pipeline) processItem(
	ctx context.Context,
	userID string,
	item models.EmailItem,
	bucketList []models.Bucket,
	pack llm.ContextPack,
	result *RunResult,
) error {
	fromEmail := deref(item.FromEmail)
	subject := deref(item.Subject)
	snippet := deref(item.Snippet)
	bodyText := deref(item.BodyText)

	bucket := buckets.Route(bucketList, fromEmail, subject, snippet, bodyText)

	patch := map[string]interface{}{
		"error_message": nil,
	}
	actions := models.Actions{}
	if bucket != nil {
		patch["bucket_id"] = bucket.ID
		actions = bucket.Actions
	} else {
		patch["bucket_id"] = nil
	}

	// Noise buckets: store the outcome, but spend no tokens and send no pushes.
	if actions.Ignore {
		result.Ignored++
		p.metrics.EmailsIgnored.Inc()
		patch["is_relevant"] = false
		patch["confidence"] = 0.0
		patch["category"] = models.CategoryIgnored
		patch["reason"] = "Routed to FYI bucket."
		patch["summary_json"] = nil
		patch["status"] = models.ItemStatusProcessed
		if err := p.items.UpdateFields(ctx, item.ID, patch); err != nil {
			return err
		}
		result.Processed++
		p.metrics.EmailsProcessed.Inc()
		return nil
	}

	email := llm.Email{
		FromEmail: fromEmail,
		Subject:   subject,
		Snippet:   snippet,
		BodyText:  bodyText,
	}

	var isRelevant bool
	var confidence float64
	if actions.ClassifyEnabled() {
		classification, err := p.llm.Classify(ctx, pack, email)
		if err != nil {
			return err
		}
		isRelevant = classification.IsRelevant
		confidence = classification.Confidence
		category := classification.Category
		if category == "" {
			category = "unknown"
		}
		patch["is_relevant"] = isRelevant
		patch["confidence"] = confidence
		patch["category"] = category
		patch["reason"] = classification.Reason
	} else {
		isRelevant = true
		confidence = 1.0
		patch["is_relevant"] = true
		patch["confidence"] = 1.0
		patch["category"] = models.CategoryBucketRouted
		patch["reason"] = "Bucket rule match."
	}

	if !isRelevant {
		patch["summary_json"] = nil
		patch["status"] = models.ItemStatusProcessed
		if err := p.items.UpdateFields(ctx, item.ID, patch); err != nil {
			return err
		}
		result.Processed++
		p.metrics.EmailsProcessed.Inc()
		return nil
	}

	var summary *llm.Summary
	if actions.SummarizeEnabled() {
		var err error
		summary, err = p.llm.Summarize(ctx, pack, email)
		if err != nil {
			return err
		}
		patch["summary_json"] = summaryToJSONB(summary)
	}

	didDraft := false
	if actions.DraftEnabled() && confidence >= actions.DraftThreshold() {
		draft, err := p.llm.Draft(ctx, pack, email, summary)
		if err != nil {
			return err
		}
		if _, err := p.drafts.AppendVersion(ctx, item.ID, strings.TrimSpace(draft.DraftText), nil); err != nil {
			return err
		}
		didDraft = true
		p.metrics.DraftsCreated.Inc()
	}

	patch["status"] = models.ItemStatusNeedsReview
	if err := p.items.UpdateFields(ctx, item.ID, patch); err != nil {
		return err
	}
	result.Processed++
	result.Relevant++
	p.metrics.EmailsProcessed.Inc()
	p.metrics.EmailsRelevant.Inc()

	// Push after persisting: delivery is best effort and never fails the item.
	if actions.PushEnabled() && confidence >= actions.PushThreshold() {
		title := fromEmail
		if title == "" {
			title = "Inbox Copilot"
		}
		pushed := p.notifier.Notify(ctx, userID, push.Notification{
			EmailItemID: item.ID,
			Title:       title,
			Body:        oneLineSummary(summary, subject, snippet),
			URL:         "/inbox/" + item.ID,
		})
		result.Pushed += pushed
		p.metrics.PushesDelivered.Add(float64(pushed))
	}

	// A relevant item with nothing to review should not sit in the queue.
	if !didDraft && summary == nil {
		downgrade := map[string]interface{}{"status": models.ItemStatusProcessed}
		if err := p.items.UpdateFields(ctx, item.ID, downgrade); err != nil {
			p.logger.Warn("failed to downgrade item status",
				zap.String("email_item_id", item.ID), zap.Error(err))
		}
	}

	return nil
}

func (p *Pipeline) loadContextPack(ctx context.Context, userID string) llm.ContextPack {
	row, err := p.contexts.GetByUser(ctx, userID)
	if err != nil {
		return llm.ContextPack{}
	}
	return LLMContextPack(row)
}

// LLMContextPack converts a stored context pack row into the prompt-facing
// form. A nil row yields the zero pack (defaults apply).
func LLMContextPack(row *models.ContextPack) llm.ContextPack {
	if row == nil {
		return llm.ContextPack{}
	}
	return llm.ContextPack{
		BrandName:    deref(row.BrandName),
		BrandBlurb:   deref(row.BrandBlurb),
		ProductsInfo: row.ProductsInfoJSON,
		Policies:     row.PoliciesJSON,
		Tone:         deref(row.Tone),
		Signature:    deref(row.Signature),
		Keywords:     row.KeywordsArray,
	}
}

func oneLineSummary(summary *llm.Summary, subject, snippet string) string {
	if line := summary.OneLine(); line != "" {
		return line
	}
	if s := strings.TrimSpace(subject); s != "" {
		return s
	}
	if s := strings.TrimSpace(snippet); s != "" {
		return s
	}
	return "New email"
}

func summaryToJSONB(summary *llm.Summary) models.JSONB {
	if summary == nil {
		return nil
	}
	raw, err := json.Marshal(summary)
	if err != nil {
		return nil
	}
	out := models.JSONB{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
