package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RoleName string

const (
	RoleAttendee  RoleName = "attendee"
	RoleOrganizer RoleName = "organizer"
	RoleAdmin     RoleName = "admin"
)

// Roles lists every role the system knows about, in seeding order.
var Roles = []RoleName{RoleOrganizer, RoleAttendee, RoleAdmin}

func (r RoleName) Valid() bool {
	switch r {
	case RoleAttendee, RoleOrganizer, RoleAdmin:
		return true
	}
	return false
}

type Role struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name      RoleName  `gorm:"unique;not null" json:"name"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

func (role *Role) BeforeCreate(tx *gorm.DB) (err error) {
	if role.ID == uuid.Nil {
		role.ID = uuid.New()
	}
	return
}
