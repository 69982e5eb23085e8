package models

import "time"

// Statistics summarises a learner's progress in one private collection
type Statistics struct {
	CollectionID   string     `json:"collection_id" db:"collection_id"`
	Title          string     `json:"title" db:"title"`
	Phase          int        `json:"phase" db:"phase"`
	IsLocked       bool       `json:"is_locked" db:"is_locked"`
	BestScore      float64    `json:"best_score" db:"score"`
	Sessions       int        `json:"sessions" db:"sessions"`
	ItemsTotal     int        `json:"items_total" db:"items_total"`
	ItemsSeen      int        `json:"items_seen" db:"items_seen"`
	ItemsMastered  int        `json:"items_mastered" db:"items_mastered"`
	NextReviewDate *time.Time `json:"next_review_date" db:"next_review_date"`
}
