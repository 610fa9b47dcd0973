package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single turn inside a conversation. Messages are append-only;
// they are never mutated and only disappear when their conversation is
// deleted. Readers order by timestamp with the id as tiebreak.
type Message struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ConversationID uuid.UUID      `gorm:"type:uuid;index;not null" json:"conversation_id"`
	Role           string         `gorm:"size:20;not null" json:"role"`
	Content        string         `gorm:"type:text;not null" json:"content"`
	Timestamp      time.Time      `gorm:"index" json:"timestamp"`
	Metadata       datatypes.JSON `json:"metadata,omitempty"`
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now()
	}
	return nil
}
