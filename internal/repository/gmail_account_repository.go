package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/inboxcopilot/triage-worker/internal/models"
	"gorm.io/gorm"
)

var ErrAccountNotFound = errors.New("gmail account not found")

type GmailAccountRepository struct {
	db *gorm.DB
}

func NewGmailAccountRepository(db *gorm.DB) *GmailAccountRepository {
	return &GmailAccountRepository{db: db}
}

// GetByID retrieves a gmail account by ID
func (r *GmailAccountRepository) GetByID(ctx context.Context, accountID string) (*models.GmailAccount, error) {
	var account models.GmailAccount
	result := r.db.WithContext(ctx).First(&account, "id = ?", accountID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get gmail account: %w", result.Error)
	}
	return &account, nil
}

// ListActive retrieves active accounts, oldest-polled first
func (r *GmailAccountRepository) ListActive(ctx context.Context, limit int) ([]models.GmailAccount, error) {
	var accounts []models.GmailAccount
	result := r.db.WithContext(ctx).
		Where("status = ?", models.AccountStatusActive).
		Order("last_polled_at ASC NULLS FIRST").
		Limit(limit).
		Find(&accounts)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list active accounts: %w", result.Error)
	}
	return accounts, nil
}

// MarkPolled clears the error state and stamps last_polled_at
func (r *GmailAccountRepository) MarkPolled(ctx context.Context, accountID string, polledAt time.Time) error {
	result := r.db.WithContext(ctx).Model(&models.GmailAccount{}).
		Where("id = ?", accountID).
		Updates(map[string]interface{}{
			"last_polled_at": polledAt,
			"error_message":  nil,
			"updated_at":     time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to mark account polled: %w", result.Error)
	}
	return nil
}

// SetError records an account-level failure; the account stays active so the
// next run retries it.
func (r *GmailAccountRepository) SetError(ctx context.Context, accountID string, message string) error {
	result := r.db.WithContext(ctx).Model(&models.GmailAccount{}).
		Where("id = ?", accountID).
		Updates(map[string]interface{}{
			"status":        models.AccountStatusActive,
			"error_message": message,
			"updated_at":    time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to set account error: %w", result.Error)
	}
	return nil
}
