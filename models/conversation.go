// Package models defines the persisted records for the Voya travel assistant:
// conversations, their messages and the Viator tour cache.
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TitleMaxLen is the column size of Conversation.Title.
const TitleMaxLen = 200

// Conversation is the durable record of one chat session. The session id is
// the external lookup key and must stay unique across all conversations.
type Conversation struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	SessionID string    `gorm:"size:255;uniqueIndex;not null" json:"session_id"`
	UserID    string    `gorm:"size:255;index" json:"user_id,omitempty"`
	Title     string    `gorm:"size:200" json:"title"`
	Messages  []Message `gorm:"constraint:OnDelete:CASCADE" json:"messages,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c *Conversation) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
