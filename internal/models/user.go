package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is a directory account with its credential and lockout state.
type User struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey"`
	Username       string         `gorm:"type:text;not null;uniqueIndex:idx_users_username,where:deleted_at IS NULL"`
	Email          string         `gorm:"type:text;not null;uniqueIndex:idx_users_email,where:deleted_at IS NULL"`
	PasswordHash   string         `gorm:"type:text;not null"`
	FirstName      string         `gorm:"type:text;not null"`
	LastName       string         `gorm:"type:text;not null"`
	Role           Role           `gorm:"type:text;not null"`
	IsActive       bool           `gorm:"not null"`
	FailedAttempts int            `gorm:"not null;default:0"`
	LockedUntil    *time.Time
	CreatedAt      time.Time      `gorm:"not null;autoCreateTime"`
	UpdatedAt      time.Time      `gorm:"not null;autoUpdateTime"`
	LastLogin      *time.Time
	DeletedAt      gorm.DeletedAt `gorm:"index"`

	Groups []Group `gorm:"many2many:user_groups"`
}

// BeforeCreate assigns a primary key when the caller did not.
func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// FullName joins first and last name.
func (u User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// Label is the human readable audit target for the user.
func (u User) Label() string { return "User: " + u.Username }
