package repository

import (
	"context"
	"fmt"

	"github.com/inboxcopilot/triage-worker/internal/models"
	"gorm.io/gorm"
)

type ProcessingRunRepository struct {
	db *gorm.DB
}

func NewProcessingRunRepository(db *gorm.DB) *ProcessingRunRepository {
	return &ProcessingRunRepository{db: db}
}

// Create inserts a run record
func (r *ProcessingRunRepository) Create(ctx context.Context, run models.ProcessingRun) error {
	result := r.db.WithContext(ctx).Create(&run)
	if result.Error != nil {
		return fmt.Errorf("failed to create processing run: %w", result.Error)
	}
	return nil
}
