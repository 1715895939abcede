package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MachineType names the execution target family.
type MachineType string

const (
	MachineClassic               MachineType = "classic"
	MachineRunpodServerless      MachineType = "runpod-serverless"
	MachineModalServerless       MachineType = "modal-serverless"
	MachineComfyDeployServerless MachineType = "comfy-deploy-serverless"
	MachineWorkspace             MachineType = "workspace"
)

// Managed reports whether the platform itself operates the endpoint.
func (t MachineType) Managed() bool { return t == MachineComfyDeployServerless }

// Machine is an execution target: an endpoint plus the credential to reach it.
type Machine struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    string         `gorm:"type:varchar(64);index;not null" json:"user_id"`
	OrgID     *string        `gorm:"type:varchar(64);index" json:"org_id,omitempty"`
	Name      string         `gorm:"type:varchar(256);not null" json:"name" validate:"required"`
	Endpoint  string         `gorm:"type:text;not null" json:"endpoint" validate:"required,url"`
	Type      MachineType    `gorm:"type:varchar(32);not null;default:classic" json:"type" validate:"required,oneof=classic runpod-serverless modal-serverless comfy-deploy-serverless workspace"`
	AuthToken string         `gorm:"type:text" json:"-"`
	Disabled  bool           `gorm:"not null;default:false" json:"disabled"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `gorm:"index" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (m *Machine) BeforeCreate(*gorm.DB) error { assignID(&m.ID); return nil }
