package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Checkpoint is a model weights file uploaded into the caller's volume.
type Checkpoint struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     string         `gorm:"type:varchar(64);index;not null" json:"user_id"`
	OrgID      *string        `gorm:"type:varchar(64);index" json:"org_id,omitempty"`
	Filename   string         `gorm:"type:varchar(512);not null" json:"filename"`
	FolderPath string         `gorm:"type:varchar(512)" json:"folder_path"`
	SourceURL  string         `gorm:"type:text" json:"source_url,omitempty"`
	UploadType string         `gorm:"type:varchar(32);not null;default:other" json:"upload_type"`
	Status     string         `gorm:"type:varchar(32);not null;default:started" json:"status"`
	SizeBytes  int64          `json:"size_bytes"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `gorm:"index" json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
}

func (c *Checkpoint) BeforeCreate(*gorm.DB) error { assignID(&c.ID); return nil }
