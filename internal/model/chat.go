package model

import "time"

// Chat is a conversation scoped to exactly one uploaded file. Created when an
// upload commits; never mutated afterwards.
type Chat struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	FileID    uint      `gorm:"not null;index" json:"file_id"`
	Title     string    `gorm:"size:256;not null" json:"title"`
	CreatedAt time.Time `json:"created_at"`
}
