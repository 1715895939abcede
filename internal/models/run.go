package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// RunStatus is the lifecycle state of a workflow run.
type RunStatus string

const (
	RunNotStarted RunStatus = "not-started"
	RunRunning    RunStatus = "running"
	RunUploading  RunStatus = "uploading"
	RunSuccess    RunStatus = "success"
	RunFailed     RunStatus = "failed"
)

// Terminal reports whether no further transitions are allowed.
func (s RunStatus) Terminal() bool { return s == RunSuccess || s == RunFailed }

func (s RunStatus) Valid() bool {
	switch s {
	case RunNotStarted, RunRunning, RunUploading, RunSuccess, RunFailed:
		return true
	}
	return false
}

// RunOrigin records how a run was started.
type RunOrigin string

const (
	OriginManual      RunOrigin = "manual"
	OriginAPI         RunOrigin = "api"
	OriginPublicShare RunOrigin = "public-share"
)

func (o RunOrigin) Valid() bool {
	return o == OriginManual || o == OriginAPI || o == OriginPublicShare
}

// WorkflowRun is one execution of a workflow version on a machine.
type WorkflowRun struct {
	ID                uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	WorkflowID        uuid.UUID      `gorm:"type:uuid;index;not null" json:"workflow_id"`
	WorkflowVersionID *uuid.UUID     `gorm:"type:uuid;index" json:"workflow_version_id,omitempty"`
	MachineID         *uuid.UUID     `gorm:"type:uuid;index" json:"machine_id,omitempty"`
	Status            RunStatus      `gorm:"type:varchar(32);not null;default:not-started" json:"status"`
	Origin            RunOrigin      `gorm:"type:varchar(32);not null;default:manual" json:"origin"`
	Inputs            datatypes.JSON `json:"inputs,omitempty"`
	Outputs           []RunOutput    `gorm:"foreignKey:RunID" json:"outputs,omitempty"`
	StartedAt         *time.Time     `json:"started_at,omitempty"`
	EndedAt           *time.Time     `json:"ended_at,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

func (r *WorkflowRun) BeforeCreate(*gorm.DB) error { assignID(&r.ID); return nil }

// RunOutput is one opaque output artifact of a run. Outputs are append-only.
type RunOutput struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	RunID     uuid.UUID      `gorm:"type:uuid;index;not null" json:"run_id"`
	Data      datatypes.JSON `json:"data"`
	CreatedAt time.Time      `gorm:"index" json:"created_at"`
}

func (o *RunOutput) BeforeCreate(*gorm.DB) error { assignID(&o.ID); return nil }
