package models

import "time"

// SessionResponse is the immutable record of one completed review session
type SessionResponse struct {
	ID           string       `json:"id" db:"id"`
	LearnerID    string       `json:"learner_id" db:"learner_id"`
	CollectionID string       `json:"collection_id" db:"collection_id"`
	ItemIDs      []string     `json:"item_ids" db:"-"`
	Score        float64      `json:"score" db:"score"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`
	Metrics      []ItemMetric `json:"metrics" db:"-"`
}
