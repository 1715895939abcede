package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/comfydeploy/engine/internal/models"
	appErr "github.com/comfydeploy/engine/pkg/errors"
)

type DeploymentRepository interface {
	// UpsertSlot inserts d or, when the (workflow_id, environment) slot is
	// taken, rewrites that row's version and machine in the same statement.
	UpsertSlot(ctx context.Context, d *models.Deployment) error
	ListByWorkflow(ctx context.Context, workflowID uuid.UUID) ([]models.Deployment, error)
}

type deploymentRepository struct {
	db *gorm.DB
}

func NewDeploymentRepository(db *gorm.DB) DeploymentRepository {
	return &deploymentRepository{db: db}
}

func (r *deploymentRepository) UpsertSlot(ctx context.Context, d *models.Deployment) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "workflow_id"}, {Name: "environment"}},
		DoUpdates: clause.AssignmentColumns([]string{"workflow_version_id", "machine_id", "updated_at"}),
	}).Create(d).Error
	if err != nil {
		return appErr.Wrap(err, appErr.CodeInternal, "upsert deployment failed")
	}
	return nil
}

func (r *deploymentRepository) ListByWorkflow(ctx context.Context, workflowID uuid.UUID) ([]models.Deployment, error) {
	out := []models.Deployment{}
	if err := r.db.WithContext(ctx).Where("workflow_id = ?", workflowID).Order("updated_at DESC").Find(&out).Error; err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "list deployments failed")
	}
	return out, nil
}
