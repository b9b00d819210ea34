package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrAuditImmutable is returned by hooks guarding audit rows.
var ErrAuditImmutable = errors.New("audit log entries are immutable")

// AuditLog captures one administrative or security-relevant action. Rows are append only.
type AuditLog struct {
	ID        uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID         `gorm:"type:uuid;not null;index" json:"user_id"`
	Action    string            `gorm:"type:text;not null;index" json:"action"`
	Target    string            `gorm:"type:text;not null" json:"target"`
	Details   *string           `gorm:"type:text" json:"details,omitempty"`
	Metadata  datatypes.JSONMap `json:"metadata,omitempty"`
	IPAddress *string           `gorm:"type:text" json:"ip_address,omitempty"`
	Timestamp time.Time         `gorm:"not null;index" json:"timestamp"`

	User *User `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;foreignKey:UserID;references:ID" json:"-"`
}

// BeforeCreate assigns a primary key when the caller did not.
func (a *AuditLog) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// BeforeUpdate rejects every update; audit rows are immutable once written.
func (a *AuditLog) BeforeUpdate(*gorm.DB) error { return ErrAuditImmutable }

// BeforeDelete rejects every delete.
func (a *AuditLog) BeforeDelete(*gorm.DB) error { return ErrAuditImmutable }
