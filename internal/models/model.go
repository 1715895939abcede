package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Model is a registered model entry (lora, vae, checkpoint, ...) available to machines.
type Model struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      string         `gorm:"type:varchar(64);index;not null" json:"user_id"`
	OrgID       *string        `gorm:"type:varchar(64);index" json:"org_id,omitempty"`
	Name        string         `gorm:"type:varchar(256);not null" json:"name"`
	ModelType   string         `gorm:"type:varchar(64);not null" json:"model_type"`
	Description string         `gorm:"type:text" json:"description,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `gorm:"index" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (m *Model) BeforeCreate(*gorm.DB) error { assignID(&m.ID); return nil }
