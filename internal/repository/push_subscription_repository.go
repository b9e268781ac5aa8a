package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/inboxcopilot/triage-worker/internal/models"
	"gorm.io/gorm"
)

type PushSubscriptionRepository struct {
	db *gorm.DB
}

func NewPushSubscriptionRepository(db *gorm.DB) *PushSubscriptionRepository {
	return &PushSubscriptionRepository{db: db}
}

// ListByUser retrieves up to limit push subscriptions for a user
func (r *PushSubscriptionRepository) ListByUser(ctx context.Context, userID string, limit int) ([]models.PushSubscription, error) {
	var subs []models.PushSubscription
	result := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Limit(limit).
		Find(&subs)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list push subscriptions: %w", result.Error)
	}
	return subs, nil
}

// TouchLastUsed stamps when the subscription last received a push
func (r *PushSubscriptionRepository) TouchLastUsed(ctx context.Context, subID string, at time.Time) error {
	result := r.db.WithContext(ctx).Model(&models.PushSubscription{}).
		Where("id = ?", subID).
		Update("last_used_at", at)
	if result.Error != nil {
		return fmt.Errorf("failed to touch push subscription: %w", result.Error)
	}
	return nil
}

// Delete removes a subscription (expired endpoint)
func (r *PushSubscriptionRepository) Delete(ctx context.Context, subID string) error {
	result := r.db.WithContext(ctx).
		Where("id = ?", subID).
		Delete(&models.PushSubscription{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete push subscription: %w", result.Error)
	}
	return nil
}
