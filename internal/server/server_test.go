package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/inboxcopilot/triage-worker/internal/config"
	"github.com/inboxcopilot/triage-worker/internal/gmail"
	"github.com/inboxcopilot/triage-worker/internal/llm"
	"github.com/inboxcopilot/triage-worker/internal/models"
	"github.com/inboxcopilot/triage-worker/internal/service"
)

const testJWTSecret = "test-secret"

type stubItems struct {
	item    *models.EmailItem
	patches []map[string]interface{}
}

func (s *stubItems) GetOwnedByUser(ctx context.Context, itemID, userID string) (*models.EmailItem, error) {
	if s.item == nil || s.item.ID != itemID || s.item.UserID != userID {
		return nil, errors.New("email item not found")
	}
	return s.item, nil
}

func (s *stubItems) UpdateFields(ctx context.Context, itemID string, fields map[string]interface{}) error {
	s.patches = append(s.patches, fields)
	return nil
}

type stubDrafts struct {
	drafts       []string
	instructions []*string
}

func (s *stubDrafts) AppendVersion(ctx context.Context, emailItemID, draftText string, instruction *string) (int, error) {
	s.drafts = append(s.drafts, draftText)
	s.instructions = append(s.instructions, instruction)
	return len(s.drafts), nil
}

type stubContexts struct{}

func (stubContexts) GetByUser(ctx context.Context, userID string) (*models.ContextPack, error) {
	return nil, errors.New("context pack not found")
}

type stubAccounts struct {
	account *models.GmailAccount
}

func (s *stubAccounts) GetByID(ctx context.Context, accountID string) (*models.GmailAccount, error) {
	if s.account == nil || s.account.ID != accountID {
		return nil, errors.New("gmail account not found")
	}
	return s.account, nil
}

type stubMail struct {
	original *gmail.Message
	sentID   string
	sentBody string
	sendErr  error
}

func (s *stubMail) FetchMessage(ctx context.Context, accessToken, messageID string) (*gmail.Message, error) {
	if s.original == nil {
		return nil, errors.New("message not found")
	}
	msg := *s.original
	return &msg, nil
}

func (s *stubMail) SendReply(ctx context.Context, accessToken string, original *gmail.Message, bodyText string) (string, error) {
	if s.sendErr != nil {
		return "", s.sendErr
	}
	s.sentBody = bodyText
	s.sentID = "sent-123"
	return s.sentID, nil
}

func (s *stubMail) RefreshAccessToken(ctx context.Context, refreshToken string) (*gmail.TokenRefreshResult, error) {
	return &gmail.TokenRefreshResult{AccessToken: "access", RefreshToken: refreshToken, ExpiresAt: time.Now().Add(time.Hour)}, nil
}

type stubDecrypter struct{}

func (stubDecrypter) Decrypt(blobB64 string) (string, error) { return "refresh-token", nil }

type stubPoller struct {
	result *service.PollResult
	err    error
	calls  int
}

func (s *stubPoller) PollAll(ctx context.Context) (*service.PollResult, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

type stubLLM struct {
	revision *llm.Revision
	err      error
}

func (s *stubLLM) Classify(ctx context.Context, pack llm.ContextPack, email llm.Email) (*llm.Classification, error) {
	return nil, errors.New("not implemented")
}

func (s *stubLLM) Summarize(ctx context.Context, pack llm.ContextPack, email llm.Email) (*llm.Summary, error) {
	return nil, errors.New("not implemented")
}

func (s *stubLLM) Draft(ctx context.Context, pack llm.ContextPack, email llm.Email, summary *llm.Summary) (*llm.Draft, error) {
	return nil, errors.New("not implemented")
}

func (s *stubLLM) Revise(ctx context.Context, pack llm.ContextPack, currentDraft, instruction string) (*llm.Revision, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.revision, nil
}

type serverFixture struct {
	srv      *Server
	items    *stubItems
	drafts   *stubDrafts
	accounts *stubAccounts
	mail     *stubMail
	poller   *stubPoller
	llm      *stubLLM
}

func newFixture() *serverFixture {
	f := &serverFixture{
		items:    &stubItems{},
		drafts:   &stubDrafts{},
		accounts: &stubAccounts{},
		mail:     &stubMail{},
		poller:   &stubPoller{result: &service.PollResult{TotalNew: 3}},
		llm:      &stubLLM{revision: &llm.Revision{RevisedDraft: "shorter draft"}},
	}
	cfg := &config.Config{
		CronSecret: "cron-secret",
		JWTSecret:  testJWTSecret,
		WebBaseURL: "http://localhost:3000",
	}
	f.srv = New(cfg, zap.NewNop(), f.poller, f.llm, f.items, f.drafts, stubContexts{}, f.accounts, f.mail, stubDecrypter{}, nil)
	return f
}

func signToken(t *testing.T, subject string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": subject,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func doRequest(f *serverFixture, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	f := newFixture()
	rec := doRequest(f, "GET", "/health", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestCronPoll_RequiresSecret(t *testing.T) {
	f := newFixture()

	rec := doRequest(f, "POST", "/cron/poll-gmail", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without secret, got %d", rec.Code)
	}

	rec = doRequest(f, "POST", "/cron/poll-gmail", nil, map[string]string{"X-CRON-SECRET": "wrong"})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 with wrong secret, got %d", rec.Code)
	}
	if f.poller.calls != 0 {
		t.Error("poller must not run without a valid secret")
	}
}

func TestCronPoll_Success(t *testing.T) {
	f := newFixture()
	rec := doRequest(f, "POST", "/cron/poll-gmail", nil, map[string]string{"X-CRON-SECRET": "cron-secret"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid response json: %v", err)
	}
	if body["ok"] != true || body["total_new"] != float64(3) {
		t.Errorf("unexpected body: %v", body)
	}
	if f.poller.calls != 1 {
		t.Errorf("expected 1 poll, got %d", f.poller.calls)
	}
}

func TestRevise_RequiresAuth(t *testing.T) {
	f := newFixture()
	rec := doRequest(f, "POST", "/ai/revise", reviseRequest{EmailItemID: "item-1", Instruction: "shorter"}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestRevise_Success(t *testing.T) {
	f := newFixture()
	f.items.item = &models.EmailItem{ID: "item-1", UserID: "user-1"}

	rec := doRequest(f, "POST", "/ai/revise",
		reviseRequest{EmailItemID: "item-1", CurrentDraftText: "long draft", Instruction: "shorter"},
		map[string]string{"Authorization": "Bearer " + signToken(t, "user-1")})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body map[string]string
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if body["revised_draft"] != "shorter draft" {
		t.Errorf("unexpected body: %v", body)
	}
	if len(f.drafts.drafts) != 1 || f.drafts.drafts[0] != "shorter draft" {
		t.Errorf("revised draft must be stored, got %v", f.drafts.drafts)
	}
	if f.drafts.instructions[0] == nil || *f.drafts.instructions[0] != "shorter" {
		t.Error("revision must record the instruction")
	}
}

func TestRevise_OwnershipEnforced(t *testing.T) {
	f := newFixture()
	f.items.item = &models.EmailItem{ID: "item-1", UserID: "someone-else"}

	rec := doRequest(f, "POST", "/ai/revise",
		reviseRequest{EmailItemID: "item-1", CurrentDraftText: "x", Instruction: "shorter"},
		map[string]string{"Authorization": "Bearer " + signToken(t, "user-1")})

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for another user's item, got %d", rec.Code)
	}
	if len(f.drafts.drafts) != 0 {
		t.Error("no draft may be stored for a foreign item")
	}
}

func TestSendReply_Success(t *testing.T) {
	f := newFixture()
	from := "bob@acme.com"
	subject := "Pricing question"
	f.items.item = &models.EmailItem{
		ID:             "item-1",
		UserID:         "user-1",
		GmailAccountID: "acct-1",
		GmailMessageID: "gm-1",
		ThreadID:       "thread-1",
		FromEmail:      &from,
		Subject:        &subject,
	}
	f.accounts.account = &models.GmailAccount{ID: "acct-1", RefreshTokenEncrypted: "blob"}
	f.mail.original = &gmail.Message{ID: "gm-1", MessageIDHeader: "<abc@acme.com>"}

	rec := doRequest(f, "POST", "/gmail/send-reply",
		sendReplyRequest{EmailItemID: "item-1", FinalDraftText: "Happy to help."},
		map[string]string{"Authorization": "Bearer " + signToken(t, "user-1")})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if f.mail.sentBody != "Happy to help." {
		t.Errorf("unexpected sent body %q", f.mail.sentBody)
	}
	if len(f.items.patches) != 1 {
		t.Fatalf("expected one status patch, got %d", len(f.items.patches))
	}
	patch := f.items.patches[0]
	if patch["status"] != models.ItemStatusSent || patch["sent_message_id"] != "sent-123" {
		t.Errorf("unexpected patch: %v", patch)
	}
}

func TestSendReply_GatewayError(t *testing.T) {
	f := newFixture()
	from := "bob@acme.com"
	f.items.item = &models.EmailItem{
		ID: "item-1", UserID: "user-1", GmailAccountID: "acct-1", GmailMessageID: "gm-1", FromEmail: &from,
	}
	f.accounts.account = &models.GmailAccount{ID: "acct-1"}
	f.mail.original = &gmail.Message{ID: "gm-1"}
	f.mail.sendErr = errors.New("gmail unavailable")

	rec := doRequest(f, "POST", "/gmail/send-reply",
		sendReplyRequest{EmailItemID: "item-1", FinalDraftText: "hello"},
		map[string]string{"Authorization": "Bearer " + signToken(t, "user-1")})

	if rec.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", rec.Code)
	}
	if len(f.items.patches) != 0 {
		t.Error("item must not be marked sent on failure")
	}
}

func TestSendReply_MissingRecipient(t *testing.T) {
	f := newFixture()
	f.items.item = &models.EmailItem{
		ID: "item-1", UserID: "user-1", GmailAccountID: "acct-1", GmailMessageID: "gm-1",
	}
	f.accounts.account = &models.GmailAccount{ID: "acct-1"}
	f.mail.original = &gmail.Message{ID: "gm-1"}

	rec := doRequest(f, "POST", "/gmail/send-reply",
		sendReplyRequest{EmailItemID: "item-1", FinalDraftText: "hello"},
		map[string]string{"Authorization": "Bearer " + signToken(t, "user-1")})

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without a recipient, got %d", rec.Code)
	}
}
