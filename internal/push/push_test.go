package push

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/inboxcopilot/triage-worker/internal/models"
)

type mockSubscriptionStore struct {
	subs    []models.PushSubscription
	listErr error
	touched []string
	deleted []string
}

func (m *mockSubscriptionStore) ListByUser(ctx context.Context, userID string, limit int) ([]models.PushSubscription, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	if len(m.subs) > limit {
		return m.subs[:limit], nil
	}
	return m.subs, nil
}

func (m *mockSubscriptionStore) TouchLastUsed(ctx context.Context, id string, at time.Time) error {
	m.touched = append(m.touched, id)
	return nil
}

func (m *mockSubscriptionStore) Delete(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	return nil
}

type fakeSender struct {
	statusByID map[string]int
	errByID    map[string]error
	payloads   [][]byte
}

func (f *fakeSender) Send(ctx context.Context, sub models.PushSubscription, payload []byte) (int, error) {
	f.payloads = append(f.payloads, payload)
	if err, ok := f.errByID[sub.ID]; ok {
		return 0, err
	}
	if status, ok := f.statusByID[sub.ID]; ok {
		return status, nil
	}
	return 201, nil
}

func validSub(id string) models.PushSubscription {
	return models.PushSubscription{
		ID:       id,
		UserID:   "user-1",
		Endpoint: "https://push.example.com/" + id,
		P256dh:   "p256dh-key",
		Auth:     "auth-secret",
	}
}

func TestNotify_DeliversToAllSubscriptions(t *testing.T) {
	store := &mockSubscriptionStore{subs: []models.PushSubscription{validSub("s1"), validSub("s2")}}
	sender := &fakeSender{}
	d := NewDispatcher(store, sender, zap.NewNop())

	pushed := d.Notify(context.Background(), "user-1", Notification{
		EmailItemID: "item-1",
		Title:       "bob@acme.com",
		Body:        "Needs pricing for 50 seats",
		URL:         "/inbox/item-1",
	})

	if pushed != 2 {
		t.Errorf("expected 2 deliveries, got %d", pushed)
	}
	if len(store.touched) != 2 {
		t.Errorf("expected last_used_at updates for both subs, got %v", store.touched)
	}

	var got Notification
	if err := json.Unmarshal(sender.payloads[0], &got); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if got.EmailItemID != "item-1" || got.URL != "/inbox/item-1" {
		t.Errorf("unexpected payload: %+v", got)
	}
}

func TestNotify_SkipsIncompleteSubscriptions(t *testing.T) {
	missingKeys := validSub("s2")
	missingKeys.P256dh = ""
	store := &mockSubscriptionStore{subs: []models.PushSubscription{validSub("s1"), missingKeys}}
	sender := &fakeSender{}
	d := NewDispatcher(store, sender, zap.NewNop())

	pushed := d.Notify(context.Background(), "user-1", Notification{Body: "hi"})
	if pushed != 1 {
		t.Errorf("expected 1 delivery, got %d", pushed)
	}
	if len(sender.payloads) != 1 {
		t.Errorf("incomplete subscription must not be attempted, got %d sends", len(sender.payloads))
	}
}

func TestNotify_PrunesGoneEndpoints(t *testing.T) {
	store := &mockSubscriptionStore{subs: []models.PushSubscription{validSub("s1"), validSub("s2"), validSub("s3")}}
	sender := &fakeSender{statusByID: map[string]int{"s1": 410, "s2": 404}}
	d := NewDispatcher(store, sender, zap.NewNop())

	pushed := d.Notify(context.Background(), "user-1", Notification{Body: "hi"})
	if pushed != 1 {
		t.Errorf("expected 1 delivery, got %d", pushed)
	}
	if len(store.deleted) != 2 {
		t.Fatalf("expected 2 pruned subscriptions, got %v", store.deleted)
	}
}

func TestNotify_SenderErrorIsBestEffort(t *testing.T) {
	store := &mockSubscriptionStore{subs: []models.PushSubscription{validSub("s1"), validSub("s2")}}
	sender := &fakeSender{errByID: map[string]error{"s1": errors.New("tls handshake failed")}}
	d := NewDispatcher(store, sender, zap.NewNop())

	pushed := d.Notify(context.Background(), "user-1", Notification{Body: "hi"})
	if pushed != 1 {
		t.Errorf("expected the healthy subscription to still deliver, got %d", pushed)
	}
	if len(store.deleted) != 0 {
		t.Errorf("transport errors must not prune, got %v", store.deleted)
	}
}

func TestNotify_ListErrorReturnsZero(t *testing.T) {
	store := &mockSubscriptionStore{listErr: errors.New("db down")}
	d := NewDispatcher(store, &fakeSender{}, zap.NewNop())

	if pushed := d.Notify(context.Background(), "user-1", Notification{Body: "hi"}); pushed != 0 {
		t.Errorf("expected 0, got %d", pushed)
	}
}

func TestNotify_TruncatesBody(t *testing.T) {
	store := &mockSubscriptionStore{subs: []models.PushSubscription{validSub("s1")}}
	sender := &fakeSender{}
	d := NewDispatcher(store, sender, zap.NewNop())

	d.Notify(context.Background(), "user-1", Notification{Body: strings.Repeat("a", 500)})

	var got Notification
	if err := json.Unmarshal(sender.payloads[0], &got); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if len(got.Body) != maxBodyChars {
		t.Errorf("expected body truncated to %d chars, got %d", maxBodyChars, len(got.Body))
	}
}

func TestNotify_TruncatesBodyOnRuneBoundary(t *testing.T) {
	store := &mockSubscriptionStore{subs: []models.PushSubscription{validSub("s1")}}
	sender := &fakeSender{}
	d := NewDispatcher(store, sender, zap.NewNop())

	d.Notify(context.Background(), "user-1", Notification{Body: strings.Repeat("é", 500)})

	var got Notification
	if err := json.Unmarshal(sender.payloads[0], &got); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if n := utf8.RuneCountInString(got.Body); n != maxBodyChars {
		t.Errorf("expected %d runes, got %d", maxBodyChars, n)
	}
	if !utf8.ValidString(got.Body) {
		t.Error("truncated body is not valid UTF-8")
	}
}
