package push

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"github.com/inboxcopilot/triage-worker/internal/models"
)

const (
	maxSubscriptionsPerUser = 100
	maxBodyChars            = 180
)

// Notification is the payload shown to the user. The url points at the
// triage UI for the item.
type Notification struct {
	EmailItemID string `json:"email_item_id"`
	Title       string `json:"title"`
	Body        string `json:"body"`
	URL         string `json:"url"`
}

// SubscriptionStore is the slice of the push subscription repository the
// dispatcher needs.
type SubscriptionStore interface {
	ListByUser(ctx context.Context, userID string, limit int) ([]models.PushSubscription, error)
	TouchLastUsed(ctx context.Context, id string, at time.Time) error
	Delete(ctx context.Context, id string) error
}

// Sender delivers one web push message. The status code lets the dispatcher
// prune dead endpoints.
type Sender interface {
	Send(ctx context.Context, sub models.PushSubscription, payload []byte) (statusCode int, err error)
}

// Dispatcher fans a notification out to all of a user's subscriptions.
// Delivery is best effort: individual failures are logged, never returned.
type Dispatcher struct {
	store  SubscriptionStore
	sender Sender
	logger *zap.Logger
}

func NewDispatcher(store SubscriptionStore, sender Sender, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{store: store, sender: sender, logger: logger}
}

// Notify sends n to every usable subscription of userID and returns the
// number of successful deliveries. Endpoints that report 404 or 410 are
// deleted so the table stays clean.
func (d *Dispatcher) Notify(ctx context.Context, userID string, n Notification) int {
	// Truncate on rune boundaries so a multi-byte character at the limit
	// is dropped whole instead of split.
	if body := []rune(n.Body); len(body) > maxBodyChars {
		n.Body = string(body[:maxBodyChars])
	}
	payload, err := json.Marshal(n)
	if err != nil {
		d.logger.Warn("failed to marshal push payload", zap.Error(err))
		return 0
	}

	subs, err := d.store.ListByUser(ctx, userID, maxSubscriptionsPerUser)
	if err != nil {
		d.logger.Warn("failed to list push subscriptions",
			zap.String("user_id", userID), zap.Error(err))
		return 0
	}

	pushed := 0
	for _, sub := range subs {
		if sub.Endpoint == "" || sub.P256dh == "" || sub.Auth == "" {
			continue
		}

		status, err := d.sender.Send(ctx, sub, payload)
		if err != nil {
			d.logger.Warn("push delivery failed",
				zap.String("subscription_id", sub.ID), zap.Error(err))
			continue
		}

		if status == http.StatusNotFound || status == http.StatusGone {
			if err := d.store.Delete(ctx, sub.ID); err != nil {
				d.logger.Warn("failed to prune dead subscription",
					zap.String("subscription_id", sub.ID), zap.Error(err))
			}
			continue
		}
		if status >= 400 {
			d.logger.Warn("push endpoint rejected delivery",
				zap.String("subscription_id", sub.ID), zap.Int("status", status))
			continue
		}

		pushed++
		if err := d.store.TouchLastUsed(ctx, sub.ID, time.Now()); err != nil {
			d.logger.Debug("failed to update last_used_at",
				zap.String("subscription_id", sub.ID), zap.Error(err))
		}
	}

	return pushed
}

// WebPushSender signs deliveries with the configured VAPID key pair.
type WebPushSender struct {
	subject    string
	publicKey  string
	privateKey string
	httpClient *http.Client
}

func NewWebPushSender(subject, publicKey, privateKey string) (*WebPushSender, error) {
	if subject == "" || publicKey == "" || privateKey == "" {
		return nil, fmt.Errorf("missing VAPID configuration (subject/public/private)")
	}
	return &WebPushSender{
		subject:    subject,
		publicKey:  publicKey,
		privateKey: privateKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (s *WebPushSender) Send(ctx context.Context, sub models.PushSubscription, payload []byte) (int, error) {
	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dh,
			Auth:   sub.Auth,
		},
	}, &webpush.Options{
		HTTPClient:      s.httpClient,
		Subscriber:      s.subject,
		VAPIDPublicKey:  s.publicKey,
		VAPIDPrivateKey: s.privateKey,
		TTL:             60,
	})
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}
