package models

import "time"

// ItemMetric is the memory-strength state of one item for one learner.
// A new metric is appended for every review; the current state is the latest one.
type ItemMetric struct {
	LearnerID      string    `json:"learner_id" db:"learner_id"`
	ItemID         string    `json:"item_id" db:"item_id"`
	Attempts       int       `json:"attempts" db:"attempts"`
	EaseFactor     float64   `json:"ease_factor" db:"ease_factor"`
	ReviewQuality  int       `json:"review_quality" db:"review_quality"` // 0-5 rating of last recall
	NextReviewDate time.Time `json:"next_review_date" db:"next_review_date"`
	LastAttempt    time.Time `json:"last_attempt" db:"last_attempt"`
}

// IsDue reports whether the item should be reviewed at now
func (m ItemMetric) IsDue(now time.Time) bool {
	return !m.NextReviewDate.IsZero() && !m.NextReviewDate.After(now)
}
