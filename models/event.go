package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Event is the local record of a scheduled call reminder. GoogleEventID
// ties it to the provider-side occurrence the poll loop matches against;
// it is unique per user.
type Event struct {
	ID            uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	UserID        uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_user_google_event,priority:1" json:"userId"`
	Name          string    `gorm:"not null" json:"name"`
	Description   string    `json:"description"`
	StartTime     time.Time `gorm:"not null" json:"date"`
	EndTime       time.Time `gorm:"not null" json:"endDate"`
	PhoneNumber   string    `gorm:"not null" json:"phoneNumber"`
	Email         string    `json:"email"`
	GoogleEventID string    `gorm:"not null;uniqueIndex:idx_user_google_event,priority:2" json:"googleEventId"`

	User User `gorm:"foreignKey:UserID" json:"-"`

	gorm.Model
}

func (e *Event) BeforeCreate(tx *gorm.DB) (err error) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return
}
