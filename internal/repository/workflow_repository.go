package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/comfydeploy/engine/internal/identity"
	"github.com/comfydeploy/engine/internal/models"
	appErr "github.com/comfydeploy/engine/pkg/errors"
)

type WorkflowRepository interface {
	BaseRepository[models.Workflow]
	// GetDetail loads a scoped workflow with its versions (newest first) and deployment slots.
	GetDetail(ctx context.Context, caller identity.Identity, workflowID uuid.UUID, dest *models.Workflow) error
	// CreateVersion appends the next version number for the workflow in one transaction.
	CreateVersion(ctx context.Context, workflowID uuid.UUID, snapshot datatypes.JSON, createdBy string) (*models.WorkflowVersion, error)
	// CreateWithVersion inserts wf and its version 1 atomically.
	CreateWithVersion(ctx context.Context, wf *models.Workflow, snapshot datatypes.JSON) (*models.WorkflowVersion, error)
	GetVersion(ctx context.Context, versionID uuid.UUID, dest *models.WorkflowVersion) error
}

type workflowRepository struct {
	BaseRepository[models.Workflow]
	db *gorm.DB
}

func NewWorkflowRepository(db *gorm.DB) WorkflowRepository {
	return &workflowRepository{BaseRepository: NewBaseRepository[models.Workflow](db, "workflow"), db: db}
}

func (r *workflowRepository) GetDetail(ctx context.Context, caller identity.Identity, workflowID uuid.UUID, dest *models.Workflow) error {
	if !caller.Authenticated() {
		return appErr.NotFound("workflow")
	}
	err := Scope(r.db.WithContext(ctx), caller).
		Preload("Versions", func(db *gorm.DB) *gorm.DB { return db.Order("version DESC") }).
		Preload("Deployments", func(db *gorm.DB) *gorm.DB { return db.Order("environment ASC") }).
		First(dest, "id = ?", workflowID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return appErr.NotFound("workflow")
		}
		return appErr.Wrap(err, appErr.CodeInternal, "get workflow failed")
	}
	return nil
}

func (r *workflowRepository) CreateVersion(ctx context.Context, workflowID uuid.UUID, snapshot datatypes.JSON, createdBy string) (*models.WorkflowVersion, error) {
	var v *models.WorkflowVersion
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		v, err = appendVersion(tx, workflowID, snapshot, createdBy)
		return err
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (r *workflowRepository) CreateWithVersion(ctx context.Context, wf *models.Workflow, snapshot datatypes.JSON) (*models.WorkflowVersion, error) {
	var v *models.WorkflowVersion
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(wf).Error; err != nil {
			return appErr.Wrap(err, appErr.CodeInternal, "create workflow failed")
		}
		var err error
		v, err = appendVersion(tx, wf.ID, snapshot, wf.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// appendVersion writes the next version number for the workflow inside tx.
func appendVersion(tx *gorm.DB, workflowID uuid.UUID, snapshot datatypes.JSON, createdBy string) (*models.WorkflowVersion, error) {
	var maxVersion int
	if err := tx.Model(&models.WorkflowVersion{}).Where("workflow_id = ?", workflowID).
		Select("COALESCE(MAX(version),0)").Scan(&maxVersion).Error; err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "compute workflow version failed")
	}

	v := &models.WorkflowVersion{
		WorkflowID: workflowID,
		Version:    maxVersion + 1,
		Snapshot:   snapshot,
		CreatedBy:  createdBy,
	}
	if err := tx.Create(v).Error; err != nil {
		// a concurrent writer took the same number; the unique index rejects it
		return nil, appErr.Wrap(err, appErr.CodeConflict, "create workflow version failed")
	}

	// bump the parent so listings ordered by updated_at reflect the new version
	if err := tx.Model(&models.Workflow{}).Where("id = ?", workflowID).
		UpdateColumn("updated_at", time.Now()).Error; err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "touch workflow failed")
	}
	return v, nil
}

func (r *workflowRepository) GetVersion(ctx context.Context, versionID uuid.UUID, dest *models.WorkflowVersion) error {
	if err := r.db.WithContext(ctx).First(dest, "id = ?", versionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return appErr.NotFound("workflow version")
		}
		return appErr.Wrap(err, appErr.CodeInternal, "get workflow version failed")
	}
	return nil
}
