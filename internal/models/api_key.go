package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// APIKey is a caller-issued credential. The secret is returned in full only
// by the call that creates it.
type APIKey struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    string    `gorm:"type:varchar(64);index;not null" json:"user_id"`
	OrgID     *string   `gorm:"type:varchar(64);index" json:"org_id,omitempty"`
	Name      string    `gorm:"type:varchar(256);not null" json:"name"`
	Key       string    `gorm:"type:varchar(128);uniqueIndex;not null" json:"-"`
	Revoked   bool      `gorm:"not null;default:false" json:"revoked"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `gorm:"index" json:"updated_at"`
}

func (k *APIKey) BeforeCreate(*gorm.DB) error { assignID(&k.ID); return nil }
