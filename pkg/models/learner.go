package models

import "time"

// Learner is someone working through the phased collections
type Learner struct {
	ID             string    `json:"id" db:"id"`
	Name           string    `json:"name" db:"name"`
	TelegramChatID int64     `json:"telegram_chat_id" db:"telegram_chat_id"` // 0 disables reminders
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}
