package models

// Item is a single flashcard or quiz question. Items never change after import.
type Item struct {
	ID              string `json:"id" db:"id"`
	CollectionID    string `json:"collection_id" db:"collection_id"`
	Position        int    `json:"position" db:"position"`
	Prompt          string `json:"prompt" db:"prompt"`
	Answer          string `json:"answer" db:"answer"`
	PracticeExample string `json:"practice_example,omitempty" db:"practice_example"`
	Explanation     string `json:"explanation,omitempty" db:"explanation"`
	Category        string `json:"category,omitempty" db:"category"`
	Difficulty      string `json:"difficulty,omitempty" db:"difficulty"` // e.g. "easy", "medium", "hard"
}
