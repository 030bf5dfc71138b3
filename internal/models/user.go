package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Email       string         `gorm:"unique;not null" json:"email"`
	Name        string         `gorm:"not null" json:"name"`
	Password    string         `gorm:"not null" json:"-"`
	PhoneNumber string         `json:"phone_number,omitempty"`
	RoleID      uuid.UUID      `gorm:"type:uuid;not null" json:"-"`
	Role        Role           `json:"role"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (user *User) BeforeCreate(tx *gorm.DB) (err error) {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	return
}
