package spaced_repetition

import (
	"time"

	"github.com/samber/lo"

	"github.com/example/fasecards/pkg/models"
)

// Aggregate derives the next review time of a whole collection from the metrics of a session:
// the earliest NextReviewDate among them, or now when there is nothing to aggregate.
func Aggregate(metrics []models.ItemMetric, now time.Time) time.Time {
	scheduled := lo.Filter(metrics, func(m models.ItemMetric, _ int) bool {
		return !m.NextReviewDate.IsZero()
	})
	if len(scheduled) == 0 {
		return now
	}

	earliest := lo.MinBy(scheduled, func(a, b models.ItemMetric) bool {
		return a.NextReviewDate.Before(b.NextReviewDate)
	})
	return earliest.NextReviewDate
}
