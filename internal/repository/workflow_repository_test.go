package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/comfydeploy/engine/internal/identity"
	"github.com/comfydeploy/engine/internal/models"
	"github.com/comfydeploy/engine/pkg/database/databasetest"
	appErr "github.com/comfydeploy/engine/pkg/errors"
)

func TestCreateVersionIncrements(t *testing.T) {
	ctx := context.Background()
	db := databasetest.NewSQLite(t)
	repo := NewWorkflowRepository(db)

	w := &models.Workflow{UserID: "u", Name: "txt2img"}
	require.NoError(t, repo.Create(ctx, w))

	v1, err := repo.CreateVersion(ctx, w.ID, datatypes.JSON(`{"nodes":1}`), "u")
	require.NoError(t, err)
	v2, err := repo.CreateVersion(ctx, w.ID, datatypes.JSON(`{"nodes":2}`), "u")
	require.NoError(t, err)

	assert.Equal(t, 1, v1.Version)
	assert.Equal(t, 2, v2.Version)

	var got models.WorkflowVersion
	require.NoError(t, repo.GetVersion(ctx, v1.ID, &got))
	assert.JSONEq(t, `{"nodes":1}`, string(got.Snapshot))
}

func TestWorkflowVersionsAreImmutable(t *testing.T) {
	ctx := context.Background()
	db := databasetest.NewSQLite(t)
	repo := NewWorkflowRepository(db)

	w := &models.Workflow{UserID: "u", Name: "upscale"}
	require.NoError(t, repo.Create(ctx, w))
	v, err := repo.CreateVersion(ctx, w.ID, datatypes.JSON(`{}`), "u")
	require.NoError(t, err)

	err = db.Model(v).Update("created_by", "someone-else").Error
	assert.ErrorIs(t, err, models.ErrImmutableVersion)
}

func TestGetDetailLoadsVersionsAndSlots(t *testing.T) {
	ctx := context.Background()
	db := databasetest.NewSQLite(t)
	repo := NewWorkflowRepository(db)
	deployments := NewDeploymentRepository(db)
	caller := identity.Identity{UserID: "u", OrgID: "org_o"}

	w := &models.Workflow{UserID: "u", OrgID: models.OrgRef("org_o"), Name: "inpaint"}
	require.NoError(t, repo.Create(ctx, w))
	_, err := repo.CreateVersion(ctx, w.ID, datatypes.JSON(`{}`), "u")
	require.NoError(t, err)
	latest, err := repo.CreateVersion(ctx, w.ID, datatypes.JSON(`{}`), "u")
	require.NoError(t, err)
	require.NoError(t, deployments.UpsertSlot(ctx, &models.Deployment{
		UserID: "u", OrgID: models.OrgRef("org_o"), WorkflowID: w.ID,
		WorkflowVersionID: latest.ID, MachineID: uuid.New(), Environment: models.EnvProduction,
	}))

	var detail models.Workflow
	require.NoError(t, repo.GetDetail(ctx, caller, w.ID, &detail))
	require.Len(t, detail.Versions, 2)
	assert.Equal(t, 2, detail.Versions[0].Version)
	require.Len(t, detail.Deployments, 1)
	assert.Equal(t, latest.ID, detail.Deployments[0].WorkflowVersionID)

	err = repo.GetDetail(ctx, identity.Identity{UserID: "u"}, w.ID, &detail)
	assert.True(t, appErr.IsCode(err, appErr.CodeNotFound))
}

func TestCreateWithVersionLeavesNothingBehindOnFailure(t *testing.T) {
	ctx := context.Background()
	db := databasetest.NewSQLite(t)
	repo := NewWorkflowRepository(db)

	w := &models.Workflow{UserID: "u", Name: "upscale"}
	v, err := repo.CreateWithVersion(ctx, w, datatypes.JSON(`{"nodes":3}`))
	require.NoError(t, err)
	assert.Equal(t, 1, v.Version)
	assert.Equal(t, w.ID, v.WorkflowID)

	require.NoError(t, db.Callback().Create().Before("gorm:create").Register("fail_versions", func(tx *gorm.DB) {
		if tx.Statement.Table == "workflow_versions" {
			_ = tx.AddError(errors.New("disk full"))
		}
	}))

	_, err = repo.CreateWithVersion(ctx, &models.Workflow{UserID: "u", Name: "orphan"}, datatypes.JSON(`{}`))
	require.Error(t, err)

	var count int64
	require.NoError(t, db.Model(&models.Workflow{}).Where("name = ?", "orphan").Count(&count).Error)
	assert.Zero(t, count)
}
