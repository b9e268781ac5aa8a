package buckets

import (
	"sort"
	"strings"

	"github.com/inboxcopilot/triage-worker/internal/models"
)

// Route selects the single best bucket for an email: the highest-priority
// (lowest number) enabled bucket whose rules match, else the enabled
// fallback bucket (slug "other") if present, else nil. The fallback is never
// matched by rule. Disabled buckets are skipped entirely.
func Route(bucketList []models.Bucket, fromEmail, subject, snippet, bodyText string) *models.Bucket {
	ordered := make([]models.Bucket, len(bucketList))
	copy(ordered, bucketList)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].EffectivePriority() < ordered[j].EffectivePriority()
	})

	var fallback *models.Bucket
	for i := range ordered {
		b := ordered[i]
		if !b.IsEnabled {
			continue
		}
		if strings.ToLower(strings.TrimSpace(b.Slug)) == models.FallbackSlug {
			fallback = &ordered[i]
			continue
		}
		if Matches(b, fromEmail, subject, snippet, bodyText) {
			return &ordered[i]
		}
	}

	return fallback
}
