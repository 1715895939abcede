package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/comfydeploy/engine/internal/identity"
	"github.com/comfydeploy/engine/internal/models"
	appErr "github.com/comfydeploy/engine/pkg/errors"
)

type RunRepository interface {
	Create(ctx context.Context, run *models.WorkflowRun) error
	// GetScoped loads a run visible to the caller through its workflow.
	// withOutputs eager-loads the outputs in the same call.
	GetScoped(ctx context.Context, caller identity.Identity, runID uuid.UUID, withOutputs bool, dest *models.WorkflowRun) error
	ListByWorkflow(ctx context.Context, caller identity.Identity, workflowID uuid.UUID) ([]models.WorkflowRun, error)
	ListOutputs(ctx context.Context, runID uuid.UUID) ([]models.RunOutput, error)
	AppendOutput(ctx context.Context, runID uuid.UUID, data datatypes.JSON) (*models.RunOutput, error)
	// UpdateStatus moves a run to status and returns the updated row.
	UpdateStatus(ctx context.Context, runID uuid.UUID, status models.RunStatus) (*models.WorkflowRun, error)
}

type runRepository struct {
	db *gorm.DB
}

func NewRunRepository(db *gorm.DB) RunRepository {
	return &runRepository{db: db}
}

// visibleWorkflows selects the ids of workflows the caller may see.
func (r *runRepository) visibleWorkflows(ctx context.Context, caller identity.Identity) *gorm.DB {
	return Scope(r.db.WithContext(ctx).Model(&models.Workflow{}).Select("id"), caller)
}

func (r *runRepository) Create(ctx context.Context, run *models.WorkflowRun) error {
	if err := r.db.WithContext(ctx).Create(run).Error; err != nil {
		return appErr.Wrap(err, appErr.CodeInternal, "create run failed")
	}
	return nil
}

func (r *runRepository) GetScoped(ctx context.Context, caller identity.Identity, runID uuid.UUID, withOutputs bool, dest *models.WorkflowRun) error {
	if !caller.Authenticated() {
		return appErr.NotFound("run")
	}
	q := r.db.WithContext(ctx).Where("workflow_id IN (?)", r.visibleWorkflows(ctx, caller))
	if withOutputs {
		q = q.Preload("Outputs", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") })
	}
	if err := q.First(dest, "id = ?", runID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return appErr.NotFound("run")
		}
		return appErr.Wrap(err, appErr.CodeInternal, "get run failed")
	}
	return nil
}

func (r *runRepository) ListByWorkflow(ctx context.Context, caller identity.Identity, workflowID uuid.UUID) ([]models.WorkflowRun, error) {
	out := []models.WorkflowRun{}
	if !caller.Authenticated() {
		return out, nil
	}
	err := r.db.WithContext(ctx).
		Where("workflow_id = ? AND workflow_id IN (?)", workflowID, r.visibleWorkflows(ctx, caller)).
		Order("created_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "list runs failed")
	}
	return out, nil
}

func (r *runRepository) ListOutputs(ctx context.Context, runID uuid.UUID) ([]models.RunOutput, error) {
	out := []models.RunOutput{}
	if err := r.db.WithContext(ctx).Where("run_id = ?", runID).Order("created_at ASC").Find(&out).Error; err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "list run outputs failed")
	}
	return out, nil
}

func (r *runRepository) AppendOutput(ctx context.Context, runID uuid.UUID, data datatypes.JSON) (*models.RunOutput, error) {
	o := &models.RunOutput{RunID: runID, Data: data}
	if err := r.db.WithContext(ctx).Create(o).Error; err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "append run output failed")
	}
	return o, nil
}

// UpdateStatus moves a run to status. Terminal runs are never changed again.
func (r *runRepository) UpdateStatus(ctx context.Context, runID uuid.UUID, status models.RunStatus) (*models.WorkflowRun, error) {
	var run models.WorkflowRun
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx
		if tx.Dialector.Name() != "sqlite" {
			q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		if err := q.First(&run, "id = ?", runID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return appErr.NotFound("run")
			}
			return appErr.Wrap(err, appErr.CodeInternal, "get run failed")
		}
		if run.Status.Terminal() {
			return appErr.Wrap(models.ErrTerminalRun, appErr.CodeConflict, "run already finished")
		}

		now := time.Now()
		updates := map[string]any{"status": status}
		if status == models.RunRunning && run.StartedAt == nil {
			updates["started_at"] = now
			run.StartedAt = &now
		}
		if status.Terminal() {
			updates["ended_at"] = now
			run.EndedAt = &now
		}
		if err := tx.Model(&models.WorkflowRun{}).Where("id = ?", run.ID).Updates(updates).Error; err != nil {
			return appErr.Wrap(err, appErr.CodeInternal, "update run status failed")
		}
		run.Status = status
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &run, nil
}
