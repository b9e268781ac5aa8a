package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/inboxcopilot/triage-worker/internal/models"
	"gorm.io/gorm"
)

type ReplyDraftRepository struct {
	db *gorm.DB
}

func NewReplyDraftRepository(db *gorm.DB) *ReplyDraftRepository {
	return &ReplyDraftRepository{db: db}
}

// AppendVersion inserts the next draft version for an email item. The
// max(version) read and the insert run in one transaction; the unique
// (email_item_id, version) index catches any cross-process race.
func (r *ReplyDraftRepository) AppendVersion(ctx context.Context, emailItemID, draftText string, instruction *string) (int, error) {
	var version int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var latest models.ReplyDraft
		result := tx.Where("email_item_id = ?", emailItemID).
			Order("version DESC").
			First(&latest)
		if result.Error != nil {
			if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
				return result.Error
			}
			latest.Version = 0
		}

		version = latest.Version + 1
		draft := models.ReplyDraft{
			ID:          uuid.New().String(),
			EmailItemID: emailItemID,
			Version:     version,
			DraftText:   draftText,
			Instruction: instruction,
			CreatedAt:   time.Now(),
		}
		return tx.Create(&draft).Error
	})
	if err != nil {
		return 0, fmt.Errorf("failed to append draft version: %w", err)
	}
	return version, nil
}
