package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/inboxcopilot/triage-worker/internal/config"
	"github.com/inboxcopilot/triage-worker/internal/gmail"
	"github.com/inboxcopilot/triage-worker/internal/llm"
	"github.com/inboxcopilot/triage-worker/internal/models"
	"github.com/inboxcopilot/triage-worker/internal/service"
)

// ItemStore is the email item surface the HTTP handlers need.
type ItemStore interface {
	GetOwnedByUser(ctx context.Context, itemID, userID string) (*models.EmailItem, error)
	UpdateFields(ctx context.Context, itemID string, fields map[string]interface{}) error
}

// DraftStore appends reply draft versions.
type DraftStore interface {
	AppendVersion(ctx context.Context, emailItemID, draftText string, instruction *string) (int, error)
}

// ContextStore loads the user's context pack.
type ContextStore interface {
	GetByUser(ctx context.Context, userID string) (*models.ContextPack, error)
}

// AccountStore resolves the mailbox an item was ingested from.
type AccountStore interface {
	GetByID(ctx context.Context, accountID string) (*models.GmailAccount, error)
}

// MailGateway is the Gmail surface used to send replies.
type MailGateway interface {
	FetchMessage(ctx context.Context, accessToken, messageID string) (*gmail.Message, error)
	SendReply(ctx context.Context, accessToken string, original *gmail.Message, bodyText string) (string, error)
	RefreshAccessToken(ctx context.Context, refreshToken string) (*gmail.TokenRefreshResult, error)
}

// TokenDecrypter recovers the plaintext refresh token from the stored blob.
type TokenDecrypter interface {
	Decrypt(blobB64 string) (string, error)
}

// CronRunner triggers a full polling pass.
type CronRunner interface {
	PollAll(ctx context.Context) (*service.PollResult, error)
}

// Server exposes the worker's HTTP surface: health, metrics, the cron
// trigger, and the authenticated draft-revision and send-reply endpoints.
type Server struct {
	cfg      *config.Config
	logger   *zap.Logger
	poller   CronRunner
	llm      llm.Client
	items    ItemStore
	drafts   DraftStore
	contexts ContextStore
	accounts AccountStore
	mail     MailGateway
	tokens   TokenDecrypter
	metrics  http.Handler
}

func New(
	cfg *config.Config,
	logger *zap.Logger,
	poller CronRunner,
	llmClient llm.Client,
	items ItemStore,
	drafts DraftStore,
	contexts ContextStore,
	accounts AccountStore,
	mail MailGateway,
	tokens TokenDecrypter,
	metricsHandler http.Handler,
) *Server {
	return &Server{
		cfg:      cfg,
		logger:   logger,
		poller:   poller,
		llm:      llmClient,
		items:    items,
		drafts:   drafts,
		contexts: contexts,
		accounts: accounts,
		mail:     mail,
		tokens:   tokens,
		metrics:  metricsHandler,
	}
}

// Router assembles the chi routing tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{s.cfg.WebBaseURL},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-CRON-SECRET"},
		AllowCredentials: true,
	}))

	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}
	r.Post("/cron/poll-gmail", s.handleCronPoll)

	r.Group(func(r chi.Router) {
		r.Use(s.requireUser)
		r.Post("/ai/revise", s.handleRevise)
		r.Post("/gmail/send-reply", s.handleSendReply)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCronPoll(w http.ResponseWriter, r *http.Request) {
	if s.cfg.CronSecret == "" {
		respondError(w, http.StatusInternalServerError, "server missing CRON_SECRET")
		return
	}
	if r.Header.Get("X-CRON-SECRET") != s.cfg.CronSecret {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	result, err := s.poller.PollAll(r.Context())
	if err != nil {
		s.logger.Error("cron poll failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"ok":          true,
		"total_new":   result.TotalNew,
		"per_account": result.PerAccount,
	})
}

type reviseRequest struct {
	EmailItemID      string `json:"email_item_id"`
	CurrentDraftText string `json:"current_draft_text"`
	Instruction      string `json:"instruction"`
}

func (s *Server) handleRevise(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r.Context())

	var req reviseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.EmailItemID == "" || req.Instruction == "" {
		respondError(w, http.StatusBadRequest, "email_item_id and instruction are required")
		return
	}

	// Ownership check before touching drafts.
	if _, err := s.items.GetOwnedByUser(r.Context(), req.EmailItemID, userID); err != nil {
		respondError(w, http.StatusNotFound, "email item not found")
		return
	}

	packRow, err := s.contexts.GetByUser(r.Context(), userID)
	if err != nil {
		packRow = nil
	}
	pack := service.LLMContextPack(packRow)

	revision, err := s.llm.Revise(r.Context(), pack, req.CurrentDraftText, req.Instruction)
	if err != nil {
		s.logger.Warn("draft revision failed", zap.String("email_item_id", req.EmailItemID), zap.Error(err))
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}

	instruction := req.Instruction
	if _, err := s.drafts.AppendVersion(r.Context(), req.EmailItemID, revision.RevisedDraft, &instruction); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"revised_draft": revision.RevisedDraft})
}

type sendReplyRequest struct {
	EmailItemID    string `json:"email_item_id"`
	FinalDraftText string `json:"final_draft_text"`
}

func (s *Server) handleSendReply(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r.Context())

	var req sendReplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.EmailItemID == "" || req.FinalDraftText == "" {
		respondError(w, http.StatusBadRequest, "email_item_id and final_draft_text are required")
		return
	}

	item, err := s.items.GetOwnedByUser(r.Context(), req.EmailItemID, userID)
	if err != nil {
		respondError(w, http.StatusNotFound, "email item not found")
		return
	}

	account, err := s.accounts.GetByID(r.Context(), item.GmailAccountID)
	if err != nil {
		respondError(w, http.StatusNotFound, "gmail account not found")
		return
	}

	refreshToken, err := s.tokens.Decrypt(account.RefreshTokenEncrypted)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to decrypt account credentials")
		return
	}
	token, err := s.mail.RefreshAccessToken(r.Context(), refreshToken)
	if err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}

	// Re-fetch the original for threading headers; stored envelope wins for
	// recipient and subject.
	original, err := s.mail.FetchMessage(r.Context(), token.AccessToken, item.GmailMessageID)
	if err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	if from := deref(item.FromEmail); from != "" {
		original.FromEmail = from
	}
	if subject := deref(item.Subject); subject != "" {
		original.Subject = subject
	}
	if item.ThreadID != "" {
		original.ThreadID = item.ThreadID
	}
	if original.FromEmail == "" {
		respondError(w, http.StatusBadRequest, "missing recipient (from_email)")
		return
	}

	sentID, err := s.mail.SendReply(r.Context(), token.AccessToken, original, req.FinalDraftText)
	if err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}

	now := time.Now().UTC()
	if err := s.items.UpdateFields(r.Context(), item.ID, map[string]interface{}{
		"status":          models.ItemStatusSent,
		"sent_message_id": sentID,
		"sent_at":         now,
		"error_message":   nil,
	}); err != nil {
		s.logger.Warn("failed to mark item sent",
			zap.String("email_item_id", item.ID), zap.Error(err))
	}

	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, status int, detail string) {
	respondJSON(w, status, map[string]string{"detail": detail})
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
