package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/inboxcopilot/triage-worker/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrContextPackNotFound = errors.New("context pack not found")

type ContextPackRepository struct {
	db *gorm.DB
}

func NewContextPackRepository(db *gorm.DB) *ContextPackRepository {
	return &ContextPackRepository{db: db}
}

// GetByUser retrieves the user's context pack
func (r *ContextPackRepository) GetByUser(ctx context.Context, userID string) (*models.ContextPack, error) {
	var pack models.ContextPack
	result := r.db.WithContext(ctx).First(&pack, "user_id = ?", userID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrContextPackNotFound
		}
		return nil, fmt.Errorf("failed to get context pack: %w", result.Error)
	}
	return &pack, nil
}

// EnsureDefault creates an empty pack for the user if none exists
func (r *ContextPackRepository) EnsureDefault(ctx context.Context, userID string) error {
	pack := models.ContextPack{UserID: userID}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&pack)
	if result.Error != nil {
		return fmt.Errorf("failed to ensure context pack: %w", result.Error)
	}
	return nil
}
