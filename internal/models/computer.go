package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ComputerStatus is the simulated power state of a computer.
type ComputerStatus string

const (
	StatusOn      ComputerStatus = "ON"
	StatusOff     ComputerStatus = "OFF"
	StatusRestart ComputerStatus = "RESTART"
)

// Valid reports whether s is a known status.
func (s ComputerStatus) Valid() bool {
	switch s {
	case StatusOn, StatusOff, StatusRestart:
		return true
	default:
		return false
	}
}

// Computer is a managed endpoint record.
type Computer struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey"`
	Name            string         `gorm:"type:text;uniqueIndex;not null"`
	Description     string         `gorm:"type:text"`
	Status          ComputerStatus `gorm:"type:text;not null"`
	OperatingSystem string         `gorm:"type:text"`
	IPAddress       *string        `gorm:"type:text;uniqueIndex"`
	OUID            *uuid.UUID     `gorm:"column:ou_id;type:uuid;index"`
	CreatedAt       time.Time      `gorm:"not null;autoCreateTime"`
	LastSeen        *time.Time

	OU *OrganizationalUnit `gorm:"constraint:OnDelete:RESTRICT;foreignKey:OUID;references:ID"`
}

// BeforeCreate assigns a primary key when the caller did not.
func (c *Computer) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// Label is the human readable audit target for the computer.
func (c Computer) Label() string { return "Computer: " + c.Name }

// SetStatus moves the computer to status and maintains LastSeen. LastSeen is stamped whenever the
// computer is switched ON and cleared for every other status.
func (c *Computer) SetStatus(status ComputerStatus, now time.Time) {
	c.Status = status
	if status == StatusOn {
		t := now.UTC()
		c.LastSeen = &t
		return
	}
	c.LastSeen = nil
}
