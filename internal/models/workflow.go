package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Workflow is a named pipeline definition owned by a user or an organization.
type Workflow struct {
	ID          uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      string            `gorm:"type:varchar(64);index;not null" json:"user_id" validate:"required"`
	OrgID       *string           `gorm:"type:varchar(64);index" json:"org_id,omitempty"`
	Name        string            `gorm:"type:varchar(256);not null" json:"name" validate:"required"`
	Versions    []WorkflowVersion `gorm:"foreignKey:WorkflowID" json:"versions,omitempty"`
	Deployments []Deployment      `gorm:"foreignKey:WorkflowID" json:"deployments,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `gorm:"index" json:"updated_at"`
	DeletedAt   gorm.DeletedAt    `gorm:"index" json:"-"`
}

func (w *Workflow) BeforeCreate(*gorm.DB) error { assignID(&w.ID); return nil }

// WorkflowVersion is an immutable snapshot; version numbers increase per workflow.
type WorkflowVersion struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	WorkflowID uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_workflow_versions_workflow_version,priority:1" json:"workflow_id"`
	Version    int            `gorm:"not null;uniqueIndex:idx_workflow_versions_workflow_version,priority:2" json:"version" validate:"gte=1"`
	Snapshot   datatypes.JSON `json:"snapshot"`
	CreatedBy  string         `gorm:"type:varchar(64)" json:"created_by"`
	CreatedAt  time.Time      `json:"created_at"`
}

func (v *WorkflowVersion) BeforeCreate(*gorm.DB) error { assignID(&v.ID); return nil }

// BeforeUpdate keeps snapshots immutable once written.
func (v *WorkflowVersion) BeforeUpdate(*gorm.DB) error { return ErrImmutableVersion }
