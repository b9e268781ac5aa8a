package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/inboxcopilot/triage-worker/internal/gmail"
	"github.com/inboxcopilot/triage-worker/internal/metrics"
	"github.com/inboxcopilot/triage-worker/internal/models"
)

// defaultLookback bounds the first poll of an account (or one whose
// last_polled_at is unusable) so we don't ingest the whole mailbox.
const defaultLookback = time.Hour

// accountTimeout caps one account's ingest + processing pass.
const accountTimeout = 10 * time.Minute

// AccountStore is the slice of the gmail account repository the poller needs.
type AccountStore interface {
	ListActive(ctx context.Context, limit int) ([]models.GmailAccount, error)
	MarkPolled(ctx context.Context, accountID string, polledAt time.Time) error
	SetError(ctx context.Context, accountID string, message string) error
}

// IngestStore inserts newly fetched emails, ignoring duplicates.
type IngestStore interface {
	InsertIngested(ctx context.Context, item models.EmailItem) (bool, error)
}

// RunStore records processing run audit rows.
type RunStore interface {
	Create(ctx context.Context, run models.ProcessingRun) error
}

// MailFetcher is the Gmail surface the poller needs.
type MailFetcher interface {
	ListMessageIDs(ctx context.Context, accessToken string, after time.Time, maxResults int) ([]string, error)
	FetchMessage(ctx context.Context, accessToken, messageID string) (*gmail.Message, error)
	RefreshAccessToken(ctx context.Context, refreshToken string) (*gmail.TokenRefreshResult, error)
}

// TokenDecrypter recovers the plaintext refresh token from the stored blob.
type TokenDecrypter interface {
	Decrypt(blobB64 string) (string, error)
}

// AccountResult summarizes one account's poll for the cron response.
type AccountResult struct {
	GmailAccountID string   `json:"gmail_account_id"`
	UserID         string   `json:"user_id"`
	New            int      `json:"new"`
	Processed      int      `json:"processed"`
	Relevant       int      `json:"relevant"`
	Pushed         int      `json:"pushed"`
	Failed         int      `json:"failed"`
	Errors         []string `json:"errors"`
}

// PollResult is the aggregate of one full polling pass.
type PollResult struct {
	TotalNew   int             `json:"total_new"`
	PerAccount []AccountResult `json:"per_account"`
}

// Poller pulls new mail for every active account and hands it to the
// pipeline. One account's failure never stops the pass; the failure is
// recorded on the account row and the next pass retries it.
type Poller struct {
	accounts AccountStore
	ingest   IngestStore
	runs     RunStore
	mail     MailFetcher
	tokens   TokenDecrypter
	pipeline *Pipeline
	metrics  *metrics.Metrics
	logger   *zap.Logger

	maxAccountsPerRun  int
	maxItemsPerAccount int
}

func NewPoller(
	accounts AccountStore,
	ingest IngestStore,
	runs RunStore,
	mail MailFetcher,
	tokens TokenDecrypter,
	pipeline *Pipeline,
	m *metrics.Metrics,
	logger *zap.Logger,
	maxAccountsPerRun int,
	maxItemsPerAccount int,
) *Poller {
	return &Poller{
		accounts:           accounts,
		ingest:             ingest,
		runs:               runs,
		mail:               mail,
		tokens:             tokens,
		pipeline:           pipeline,
		metrics:            m,
		logger:             logger,
		maxAccountsPerRun:  maxAccountsPerRun,
		maxItemsPerAccount: maxItemsPerAccount,
	}
}

// PollAll runs one pass over all active accounts.
func (p *Poller) PollAll(ctx context.Context) (*PollResult, error) {
	accounts, err := p.accounts.ListActive(ctx, p.maxAccountsPerRun)
	if err != nil {
		return nil, fmt.Errorf("failed to list active accounts: %w", err)
	}

	result := &PollResult{PerAccount: make([]AccountResult, 0, len(accounts))}
	for _, account := range accounts {
		accResult := p.PollAccount(ctx, account)
		result.TotalNew += accResult.New
		result.PerAccount = append(result.PerAccount, accResult)
	}
	return result, nil
}

// PollAccount ingests and processes new mail for one account.
func (p *Poller) PollAccount(ctx context.Context, account models.GmailAccount) AccountResult {
	ctx, cancel := context.WithTimeout(ctx, accountTimeout)
	defer cancel()

	now := time.Now().UTC()
	startedAt := now
	out := AccountResult{
		GmailAccountID: account.ID,
		UserID:         account.UserID,
		Errors:         []string{},
	}
	p.metrics.AccountsPolled.Inc()

	var runCounts RunResult
	err := func() error {
		refreshToken, err := p.tokens.Decrypt(account.RefreshTokenEncrypted)
		if err != nil {
			return fmt.Errorf("failed to decrypt refresh token: %w", err)
		}
		token, err := p.mail.RefreshAccessToken(ctx, refreshToken)
		if err != nil {
			return err
		}

		after := now.Add(-defaultLookback)
		if account.LastPolledAt != nil && !account.LastPolledAt.IsZero() {
			after = *account.LastPolledAt
		}

		ids, err := p.mail.ListMessageIDs(ctx, token.AccessToken, after, 50)
		if err != nil {
			return err
		}

		for _, messageID := range ids {
			msg, err := p.mail.FetchMessage(ctx, token.AccessToken, messageID)
			if err != nil {
				out.Errors = append(out.Errors, fmt.Sprintf("%s: %v", messageID, err))
				continue
			}

			receivedAt := msg.ReceivedAt
			if receivedAt.IsZero() {
				receivedAt = now
			}
			created, err := p.ingest.InsertIngested(ctx, models.EmailItem{
				ID:             uuid.New().String(),
				UserID:         account.UserID,
				GmailAccountID: account.ID,
				GmailMessageID: msg.ID,
				ThreadID:       msg.ThreadID,
				FromEmail:      nilIfEmpty(msg.FromEmail),
				Subject:        nilIfEmpty(msg.Subject),
				Snippet:        nilIfEmpty(msg.Snippet),
				BodyText:       nilIfEmpty(msg.BodyText),
				ReceivedAt:     receivedAt,
				Status:         models.ItemStatusIngested,
			})
			if err != nil {
				out.Errors = append(out.Errors, fmt.Sprintf("%s: %v", messageID, err))
				continue
			}
			if created {
				out.New++
				p.metrics.EmailsIngested.Inc()
			}
		}

		// Processing is best effort at the account level: a batch error is
		// logged but does not mark the account failed.
		runResult, err := p.pipeline.ProcessBatch(ctx, account.UserID, account.ID, p.maxItemsPerAccount)
		if err != nil {
			out.Errors = append(out.Errors, fmt.Sprintf("processing error: %v", err))
		}
		runCounts = runResult
		out.Processed = runResult.Processed
		out.Relevant = runResult.Relevant
		out.Pushed = runResult.Pushed
		out.Failed = runResult.Failed
		out.Errors = append(out.Errors, runResult.Errors...)

		return p.accounts.MarkPolled(ctx, account.ID, now)
	}()
	if err != nil {
		p.metrics.AccountPollError.Inc()
		out.Errors = append(out.Errors, err.Error())
		p.logger.Warn("account poll failed",
			zap.String("gmail_account_id", account.ID), zap.Error(err))
		if setErr := p.accounts.SetError(ctx, account.ID, err.Error()); setErr != nil {
			p.logger.Warn("failed to record account error",
				zap.String("gmail_account_id", account.ID), zap.Error(setErr))
		}
	}

	p.recordRun(ctx, account, startedAt, runCounts, out)
	return out
}

// recordRun writes the audit row; failures are logged and swallowed.
func (p *Poller) recordRun(ctx context.Context, account models.GmailAccount, startedAt time.Time, runCounts RunResult, out AccountResult) {
	counts := runCounts.Counts()
	counts["inserted"] = out.New

	errorLog := make([]interface{}, 0, len(out.Errors))
	for _, e := range out.Errors {
		errorLog = append(errorLog, e)
	}

	run := models.ProcessingRun{
		ID:             uuid.New().String(),
		UserID:         account.UserID,
		GmailAccountID: account.ID,
		StartedAt:      startedAt,
		FinishedAt:     time.Now().UTC(),
		Counts:         counts,
		LogJSON:        models.JSONB{"errors": errorLog},
	}
	if err := p.runs.Create(ctx, run); err != nil {
		p.logger.Warn("failed to record processing run",
			zap.String("gmail_account_id", account.ID), zap.Error(err))
	}
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
