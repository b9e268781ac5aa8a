package buckets

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/inboxcopilot/triage-worker/internal/models"
)

// Store is the subset of the bucket repository the provisioner needs.
type Store interface {
	ListByUser(ctx context.Context, userID string) ([]models.Bucket, error)
	ExistsForUser(ctx context.Context, userID string) (bool, error)
	BulkCreate(ctx context.Context, buckets []models.Bucket) error
}

// EnsureDefaults seeds the default bucket set for a user that has none, then
// returns the current set ordered by priority. Idempotent: a concurrent
// provisioner winning the insert race is treated as already-resolved, and
// the final re-read returns whatever is there.
func EnsureDefaults(ctx context.Context, store Store, userID string) ([]models.Bucket, error) {
	exists, err := store.ExistsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing buckets: %w", err)
	}

	if !exists {
		defaults := DefaultBuckets()
		now := time.Now()
		for i := range defaults {
			defaults[i].ID = uuid.New().String()
			defaults[i].UserID = userID
			defaults[i].CreatedAt = now
			defaults[i].UpdatedAt = now
		}
		// BulkCreate skips conflicting rows, so losing a race with another
		// provisioner is not an error here.
		if err := store.BulkCreate(ctx, defaults); err != nil {
			return nil, fmt.Errorf("failed to seed default buckets: %w", err)
		}
	}

	return store.ListByUser(ctx, userID)
}
