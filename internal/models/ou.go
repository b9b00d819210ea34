package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OrganizationalUnit is a hierarchical container for computers.
type OrganizationalUnit struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Name        string     `gorm:"type:text;uniqueIndex;not null"`
	Description string     `gorm:"type:text"`
	ParentID    *uuid.UUID `gorm:"type:uuid;index"`
	CreatedAt   time.Time  `gorm:"not null;autoCreateTime"`

	Parent    *OrganizationalUnit  `gorm:"constraint:OnDelete:RESTRICT;foreignKey:ParentID;references:ID"`
	Children  []OrganizationalUnit `gorm:"foreignKey:ParentID"`
	Computers []Computer           `gorm:"foreignKey:OUID"`
}

// TableName keeps the table name readable.
func (OrganizationalUnit) TableName() string { return "organizational_units" }

// BeforeCreate assigns a primary key when the caller did not.
func (o *OrganizationalUnit) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// Label is the human readable audit target for the OU.
func (o OrganizationalUnit) Label() string { return "OU: " + o.Name }
