package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/inboxcopilot/triage-worker/internal/gmail"
	"github.com/inboxcopilot/triage-worker/internal/metrics"
	"github.com/inboxcopilot/triage-worker/internal/models"
)

type mockAccountStore struct {
	accounts   []models.GmailAccount
	polled     []string
	errorsSet  map[string]string
	listActErr error
}

func newMockAccountStore(accounts ...models.GmailAccount) *mockAccountStore {
	return &mockAccountStore{accounts: accounts, errorsSet: make(map[string]string)}
}

func (m *mockAccountStore) ListActive(ctx context.Context, limit int) ([]models.GmailAccount, error) {
	if m.listActErr != nil {
		return nil, m.listActErr
	}
	if len(m.accounts) > limit {
		return m.accounts[:limit], nil
	}
	return m.accounts, nil
}

func (m *mockAccountStore) MarkPolled(ctx context.Context, accountID string, polledAt time.Time) error {
	m.polled = append(m.polled, accountID)
	return nil
}

func (m *mockAccountStore) SetError(ctx context.Context, accountID string, message string) error {
	m.errorsSet[accountID] = message
	return nil
}

type mockIngestStore struct {
	inserted   []models.EmailItem
	duplicates map[string]bool
	insertErr  error
}

func newMockIngestStore() *mockIngestStore {
	return &mockIngestStore{duplicates: make(map[string]bool)}
}

func (m *mockIngestStore) InsertIngested(ctx context.Context, item models.EmailItem) (bool, error) {
	if m.insertErr != nil {
		return false, m.insertErr
	}
	key := item.GmailAccountID + "/" + item.GmailMessageID
	if m.duplicates[key] {
		return false, nil
	}
	m.duplicates[key] = true
	m.inserted = append(m.inserted, item)
	return true, nil
}

type mockRunStore struct {
	runs []models.ProcessingRun
}

func (m *mockRunStore) Create(ctx context.Context, run models.ProcessingRun) error {
	m.runs = append(m.runs, run)
	return nil
}

type fakeMail struct {
	messages   map[string]*gmail.Message
	ids        []string
	refreshErr error
	listErr    error
	lastAfter  time.Time
	lastToken  string
}

func (f *fakeMail) ListMessageIDs(ctx context.Context, accessToken string, after time.Time, maxResults int) ([]string, error) {
	f.lastAfter = after
	f.lastToken = accessToken
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.ids, nil
}

func (f *fakeMail) FetchMessage(ctx context.Context, accessToken, messageID string) (*gmail.Message, error) {
	msg, ok := f.messages[messageID]
	if !ok {
		return nil, errors.New("message not found")
	}
	return msg, nil
}

func (f *fakeMail) RefreshAccessToken(ctx context.Context, refreshToken string) (*gmail.TokenRefreshResult, error) {
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return &gmail.TokenRefreshResult{
		AccessToken:  "access-" + refreshToken,
		RefreshToken: refreshToken,
		ExpiresAt:    time.Now().Add(time.Hour),
	}, nil
}

type fakeDecrypter struct {
	err error
}

func (f *fakeDecrypter) Decrypt(blobB64 string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return strings.TrimPrefix(blobB64, "enc:"), nil
}

func activeAccount(id string) models.GmailAccount {
	return models.GmailAccount{
		ID:                    id,
		UserID:                "user-1",
		GoogleEmail:           "owner@gmail.com",
		RefreshTokenEncrypted: "enc:refresh-" + id,
		Status:                models.AccountStatusActive,
	}
}

func gmailMessage(id, subject string) *gmail.Message {
	return &gmail.Message{
		ID:         id,
		ThreadID:   "thread-" + id,
		FromEmail:  "bob@acme.com",
		Subject:    subject,
		Snippet:    "snippet",
		BodyText:   "body",
		ReceivedAt: time.Now().Add(-10 * time.Minute),
	}
}

func newTestPoller(accounts *mockAccountStore, ingest *mockIngestStore, runs *mockRunStore, mail *fakeMail, dec *fakeDecrypter) (*Poller, *mockItemStore) {
	items := newMockItemStore()
	pipeline := NewPipeline(
		items,
		newMockDraftStore(),
		&stubBucketStore{buckets: []models.Bucket{fallbackBucket(0, 0)}},
		&stubContextStore{},
		&fakeLLM{},
		&fakeNotifier{},
		metrics.New(),
		zap.NewNop(),
	)
	p := NewPoller(accounts, ingest, runs, mail, dec, pipeline, metrics.New(), zap.NewNop(), 200, 25)
	return p, items
}

func TestPollAccount_IngestsNewMessages(t *testing.T) {
	accounts := newMockAccountStore()
	ingest := newMockIngestStore()
	runs := &mockRunStore{}
	mail := &fakeMail{
		ids: []string{"m1", "m2"},
		messages: map[string]*gmail.Message{
			"m1": gmailMessage("m1", "first"),
			"m2": gmailMessage("m2", "second"),
		},
	}
	p, _ := newTestPoller(accounts, ingest, runs, mail, &fakeDecrypter{})

	got := p.PollAccount(context.Background(), activeAccount("acct-1"))

	if got.New != 2 {
		t.Errorf("expected 2 new items, got %d", got.New)
	}
	if len(ingest.inserted) != 2 {
		t.Fatalf("expected 2 inserts, got %d", len(ingest.inserted))
	}
	item := ingest.inserted[0]
	if item.Status != models.ItemStatusIngested {
		t.Errorf("expected ingested status, got %s", item.Status)
	}
	if item.GmailAccountID != "acct-1" || item.UserID != "user-1" {
		t.Errorf("unexpected ownership: %+v", item)
	}
	if item.ID == "" {
		t.Error("item must be assigned an id")
	}
	if len(accounts.polled) != 1 || accounts.polled[0] != "acct-1" {
		t.Errorf("expected account marked polled, got %v", accounts.polled)
	}
	if len(runs.runs) != 1 {
		t.Fatalf("expected 1 processing run row, got %d", len(runs.runs))
	}
	if inserted := runs.runs[0].Counts["inserted"]; inserted != 2 {
		t.Errorf("run counts must include inserted=2, got %v", inserted)
	}
	if mail.lastToken != "access-refresh-acct-1" {
		t.Errorf("poll must use the refreshed access token, got %q", mail.lastToken)
	}
}

func TestPollAccount_UsesLastPolledAtAsLookback(t *testing.T) {
	lastPolled := time.Now().Add(-15 * time.Minute).UTC()
	account := activeAccount("acct-1")
	account.LastPolledAt = &lastPolled

	mail := &fakeMail{}
	p, _ := newTestPoller(newMockAccountStore(), newMockIngestStore(), &mockRunStore{}, mail, &fakeDecrypter{})

	p.PollAccount(context.Background(), account)

	if !mail.lastAfter.Equal(lastPolled) {
		t.Errorf("expected lookback %v, got %v", lastPolled, mail.lastAfter)
	}
}

func TestPollAccount_DefaultLookbackForNewAccount(t *testing.T) {
	mail := &fakeMail{}
	p, _ := newTestPoller(newMockAccountStore(), newMockIngestStore(), &mockRunStore{}, mail, &fakeDecrypter{})

	before := time.Now().Add(-defaultLookback)
	p.PollAccount(context.Background(), activeAccount("acct-1"))
	after := time.Now().Add(-defaultLookback)

	if mail.lastAfter.Before(before.Add(-time.Second)) || mail.lastAfter.After(after.Add(time.Second)) {
		t.Errorf("expected roughly one hour lookback, got %v", mail.lastAfter)
	}
}

func TestPollAccount_SkipsDuplicates(t *testing.T) {
	ingest := newMockIngestStore()
	ingest.duplicates["acct-1/m1"] = true
	mail := &fakeMail{
		ids: []string{"m1", "m2"},
		messages: map[string]*gmail.Message{
			"m1": gmailMessage("m1", "seen before"),
			"m2": gmailMessage("m2", "new"),
		},
	}
	p, _ := newTestPoller(newMockAccountStore(), ingest, &mockRunStore{}, mail, &fakeDecrypter{})

	got := p.PollAccount(context.Background(), activeAccount("acct-1"))
	if got.New != 1 {
		t.Errorf("duplicate must not count as new, got %d", got.New)
	}
}

func TestPollAccount_DecryptFailureMarksAccount(t *testing.T) {
	accounts := newMockAccountStore()
	runs := &mockRunStore{}
	p, _ := newTestPoller(accounts, newMockIngestStore(), runs, &fakeMail{}, &fakeDecrypter{err: errors.New("bad blob")})

	got := p.PollAccount(context.Background(), activeAccount("acct-1"))

	if len(got.Errors) == 0 {
		t.Fatal("expected an error in the result")
	}
	if _, ok := accounts.errorsSet["acct-1"]; !ok {
		t.Error("account must carry the failure message")
	}
	if len(accounts.polled) != 0 {
		t.Error("failed poll must not stamp last_polled_at")
	}
	if len(runs.runs) != 1 {
		t.Error("audit row must still be written on failure")
	}
}

func TestPollAccount_FetchFailureIsPerMessage(t *testing.T) {
	mail := &fakeMail{
		ids: []string{"missing", "m2"},
		messages: map[string]*gmail.Message{
			"m2": gmailMessage("m2", "ok"),
		},
	}
	accounts := newMockAccountStore()
	p, _ := newTestPoller(accounts, newMockIngestStore(), &mockRunStore{}, mail, &fakeDecrypter{})

	got := p.PollAccount(context.Background(), activeAccount("acct-1"))

	if got.New != 1 {
		t.Errorf("healthy message must still ingest, got %d", got.New)
	}
	if len(got.Errors) != 1 {
		t.Errorf("expected 1 per-message error, got %v", got.Errors)
	}
	if len(accounts.polled) != 1 {
		t.Error("per-message failures must not fail the account")
	}
}

func TestPollAll_AggregatesAccounts(t *testing.T) {
	accounts := newMockAccountStore(activeAccount("acct-1"), activeAccount("acct-2"))
	mail := &fakeMail{
		ids: []string{"m1"},
		messages: map[string]*gmail.Message{
			"m1": gmailMessage("m1", "hello"),
		},
	}
	ingest := newMockIngestStore()
	p, _ := newTestPoller(accounts, ingest, &mockRunStore{}, mail, &fakeDecrypter{})

	got, err := p.PollAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.PerAccount) != 2 {
		t.Fatalf("expected 2 account results, got %d", len(got.PerAccount))
	}
	// The same gmail message id is a fresh row per account.
	if got.TotalNew != 2 {
		t.Errorf("expected total_new=2, got %d", got.TotalNew)
	}
}

func TestPollAll_ListError(t *testing.T) {
	accounts := newMockAccountStore()
	accounts.listActErr = errors.New("db down")
	p, _ := newTestPoller(accounts, newMockIngestStore(), &mockRunStore{}, &fakeMail{}, &fakeDecrypter{})

	if _, err := p.PollAll(context.Background()); err == nil {
		t.Error("expected error")
	}
}
