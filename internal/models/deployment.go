package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Environment is the deployment target class of a slot.
type Environment string

const (
	EnvProduction  Environment = "production"
	EnvStaging     Environment = "staging"
	EnvPublicShare Environment = "public-share"
)

// Environments lists the accepted environment values.
var Environments = []Environment{EnvProduction, EnvStaging, EnvPublicShare}

// Valid reports whether e is one of the enumerated environments.
func (e Environment) Valid() bool {
	for _, v := range Environments {
		if e == v {
			return true
		}
	}
	return false
}

// Deployment binds a workflow to a machine for one environment. The pair
// (workflow_id, environment) is a slot: at most one row exists per pair and a
// redeploy rewrites the row in place, so there is no soft delete here.
type Deployment struct {
	ID                uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	UserID            string      `gorm:"type:varchar(64);index;not null" json:"user_id"`
	OrgID             *string     `gorm:"type:varchar(64);index" json:"org_id,omitempty"`
	WorkflowID        uuid.UUID   `gorm:"type:uuid;not null;uniqueIndex:idx_deployments_slot,priority:1" json:"workflow_id"`
	Environment       Environment `gorm:"type:varchar(32);not null;uniqueIndex:idx_deployments_slot,priority:2" json:"environment"`
	WorkflowVersionID uuid.UUID   `gorm:"type:uuid;not null;index" json:"workflow_version_id"`
	MachineID         uuid.UUID   `gorm:"type:uuid;not null;index" json:"machine_id"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

func (d *Deployment) BeforeCreate(*gorm.DB) error { assignID(&d.ID); return nil }
