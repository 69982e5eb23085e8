package models

import "time"

// CollectionKind distinguishes flashcard decks from quizzes
type CollectionKind string

const (
	KindDeck CollectionKind = "deck"
	KindQuiz CollectionKind = "quiz"
)

// OrDefault returns the kind, treating an unset kind as a deck
func (k CollectionKind) OrDefault() CollectionKind {
	return ParseKind(string(k))
}

// ParseKind converts a free-form string into a CollectionKind, defaulting to a deck
func ParseKind(s string) CollectionKind {
	if CollectionKind(s) == KindQuiz {
		return KindQuiz
	}
	return KindDeck
}

// Collection is shared template content (a deck or a quiz) owned by no learner
type Collection struct {
	ID          string         `json:"id" db:"id"`
	Kind        CollectionKind `json:"kind" db:"kind"`
	Title       string         `json:"title" db:"title"`
	Phase       int            `json:"phase" db:"phase"` // 0 when the phase is only encoded in Title
	Theme       string         `json:"theme" db:"theme"`
	Description string         `json:"description" db:"description"`
	Items       []Item         `json:"items" db:"-"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
}

// PhaseNumber returns the explicit phase, falling back to the title
func (c *Collection) PhaseNumber() (int, error) {
	return resolvePhase(c.Phase, c.Title)
}

// PrivateCollection is a learner's copy of a shared collection together with
// the learner's progression state
type PrivateCollection struct {
	LearnerID      string         `json:"learner_id" db:"learner_id"`
	CollectionID   string         `json:"collection_id" db:"collection_id"`
	Kind           CollectionKind `json:"kind" db:"kind"`
	Title          string         `json:"title" db:"title"`
	Phase          int            `json:"phase" db:"phase"`
	Items          []Item         `json:"items" db:"-"`
	Score          float64        `json:"score" db:"score"` // best session score seen
	IsLocked       bool           `json:"is_locked" db:"is_locked"`
	LastAccessed   time.Time      `json:"last_accessed" db:"last_accessed"`
	NextReviewDate *time.Time     `json:"next_review_date" db:"next_review_date"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at" db:"updated_at"`
}

// PhaseNumber returns the explicit phase, falling back to the title
func (c *PrivateCollection) PhaseNumber() (int, error) {
	return resolvePhase(c.Phase, c.Title)
}

// HasItem reports whether itemID belongs to the collection
func (c *PrivateCollection) HasItem(itemID string) bool {
	for _, it := range c.Items {
		if it.ID == itemID {
			return true
		}
	}
	return false
}

// CollectionUpdate lists the fields a session may change on a private collection.
// Score only applies when it beats the stored best, and a lock can be cleared but never set.
type CollectionUpdate struct {
	Score          *float64
	Unlock         bool
	LastAccessed   *time.Time
	NextReviewDate *time.Time
}

// IsEmpty reports whether the update would change nothing
func (u CollectionUpdate) IsEmpty() bool {
	return u.Score == nil && !u.Unlock && u.LastAccessed == nil && u.NextReviewDate == nil
}

// Apply writes the update onto c following the same monotonic rules the stores use
func (u CollectionUpdate) Apply(c *PrivateCollection) {
	if u.Score != nil && *u.Score > c.Score {
		c.Score = *u.Score
	}
	if u.Unlock {
		c.IsLocked = false
	}
	if u.LastAccessed != nil {
		c.LastAccessed = *u.LastAccessed
	}
	if u.NextReviewDate != nil {
		next := *u.NextReviewDate
		c.NextReviewDate = &next
	}
}
