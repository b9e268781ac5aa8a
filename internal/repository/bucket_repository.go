package repository

import (
	"context"
	"fmt"

	"github.com/inboxcopilot/triage-worker/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BucketRepository struct {
	db *gorm.DB
}

func NewBucketRepository(db *gorm.DB) *BucketRepository {
	return &BucketRepository{db: db}
}

// ListByUser retrieves all buckets for a user ordered by priority ascending
func (r *BucketRepository) ListByUser(ctx context.Context, userID string) ([]models.Bucket, error) {
	var buckets []models.Bucket
	result := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("priority ASC").
		Limit(100).
		Find(&buckets)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list buckets: %w", result.Error)
	}
	return buckets, nil
}

// ExistsForUser reports whether the user has any bucket row at all
func (r *BucketRepository) ExistsForUser(ctx context.Context, userID string) (bool, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&models.Bucket{}).
		Where("user_id = ?", userID).
		Limit(1).
		Count(&count)
	if result.Error != nil {
		return false, fmt.Errorf("failed to check buckets: %w", result.Error)
	}
	return count > 0, nil
}

// BulkCreate inserts a batch of buckets, skipping rows that already exist
// (a concurrent provisioner may have won the race on (user_id, slug)).
func (r *BucketRepository) BulkCreate(ctx context.Context, buckets []models.Bucket) error {
	if len(buckets) == 0 {
		return nil
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&buckets)
	if result.Error != nil {
		return fmt.Errorf("failed to create buckets: %w", result.Error)
	}
	return nil
}
