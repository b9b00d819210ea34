package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Permission is the access level granted by a group.
type Permission string

const (
	PermissionReadOnly  Permission = "read-only"
	PermissionReadWrite Permission = "read-write"
)

// Valid reports whether p is a known permission level.
func (p Permission) Valid() bool {
	return p == PermissionReadOnly || p == PermissionReadWrite
}

// Group is a named permission bucket users can belong to.
type Group struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Name        string     `gorm:"type:text;uniqueIndex;not null"`
	Description string     `gorm:"type:text"`
	Permissions Permission `gorm:"type:text;not null"`
	CreatedAt   time.Time  `gorm:"not null;autoCreateTime"`

	Members []User `gorm:"many2many:user_groups"`
}

// BeforeCreate assigns a primary key when the caller did not.
func (g *Group) BeforeCreate(*gorm.DB) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	return nil
}

// Label is the human readable audit target for the group.
func (g Group) Label() string { return "Group: " + g.Name }

// UserGroup ties a user to a group.
type UserGroup struct {
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey"`
	GroupID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"autoCreateTime"`

	User  User  `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID"`
	Group Group `gorm:"constraint:OnDelete:CASCADE;foreignKey:GroupID;references:ID"`
}
