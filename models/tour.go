package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Tour caches a Viator product so repeated searches don't always hit the
// partner API and listings can link back to the booking page.
type Tour struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Code         string    `gorm:"size:50;uniqueIndex;not null" json:"code"`
	Title        string    `gorm:"size:500" json:"title"`
	Price        float64   `json:"price"`
	Rating       float64   `json:"rating"`
	ReviewCount  int       `json:"review_count"`
	Duration     string    `gorm:"size:100" json:"duration"`
	Destination  string    `gorm:"size:200" json:"destination"`
	ThumbnailURL string    `json:"thumbnail_url"`
	ViatorURL    string    `json:"viator_url"`
	Description  string    `gorm:"type:text" json:"description"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (t *Tour) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
