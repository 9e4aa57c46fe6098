package models

import (
	"time"

	"callalert-backend/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID    uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	Email string    `gorm:"uniqueIndex;not null" json:"email"`
	Name  string    `gorm:"not null" json:"name"`

	// Google credential pair. RefreshToken stays empty until the user
	// completes the consent flow with offline access.
	AccessToken  string `gorm:"type:text" json:"-"`
	RefreshToken string `gorm:"type:text" json:"-"`

	// Optional local-auth password, hashed in BeforeCreate. Users who only
	// sign in through Google never set one.
	Password string `json:"-"`

	LastLogin *time.Time `json:"lastLogin,omitempty"`

	Events []Event `gorm:"foreignKey:UserID" json:"-"`

	gorm.Model
}

func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.Password != "" {
		hashed, err := utils.HashPassword(u.Password)
		if err != nil {
			return err
		}
		u.Password = hashed
	}
	return nil
}
