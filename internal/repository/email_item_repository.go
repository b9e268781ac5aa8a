package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/inboxcopilot/triage-worker/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrEmailItemNotFound = errors.New("email item not found")

type EmailItemRepository struct {
	db *gorm.DB
}

func NewEmailItemRepository(db *gorm.DB) *EmailItemRepository {
	return &EmailItemRepository{db: db}
}

// GetOwnedByUser retrieves an email item only if it belongs to the user
func (r *EmailItemRepository) GetOwnedByUser(ctx context.Context, itemID, userID string) (*models.EmailItem, error) {
	var item models.EmailItem
	result := r.db.WithContext(ctx).First(&item, "id = ? AND user_id = ?", itemID, userID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrEmailItemNotFound
		}
		return nil, fmt.Errorf("failed to get email item: %w", result.Error)
	}
	return &item, nil
}

// ListIngested retrieves ingested items for an account, oldest first
func (r *EmailItemRepository) ListIngested(ctx context.Context, accountID string, limit int) ([]models.EmailItem, error) {
	var items []models.EmailItem
	result := r.db.WithContext(ctx).
		Where("gmail_account_id = ? AND status = ?", accountID, models.ItemStatusIngested).
		Order("received_at ASC").
		Limit(limit).
		Find(&items)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list ingested items: %w", result.Error)
	}
	return items, nil
}

// InsertIngested inserts a newly ingested item, ignoring duplicates on
// (gmail_account_id, gmail_message_id). Returns true when a row was created.
func (r *EmailItemRepository) InsertIngested(ctx context.Context, item models.EmailItem) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "gmail_account_id"}, {Name: "gmail_message_id"}},
			DoNothing: true,
		}).
		Create(&item)
	if result.Error != nil {
		return false, fmt.Errorf("failed to insert email item: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// UpdateFields applies a partial update to one item
func (r *EmailItemRepository) UpdateFields(ctx context.Context, itemID string, fields map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&models.EmailItem{}).
		Where("id = ?", itemID).
		Updates(fields)
	if result.Error != nil {
		return fmt.Errorf("failed to update email item: %w", result.Error)
	}
	return nil
}
