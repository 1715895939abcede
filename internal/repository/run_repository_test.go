package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/comfydeploy/engine/internal/identity"
	"github.com/comfydeploy/engine/internal/models"
	"github.com/comfydeploy/engine/pkg/database/databasetest"
	appErr "github.com/comfydeploy/engine/pkg/errors"
)

func seedRun(t *testing.T, ctx context.Context, workflows WorkflowRepository, runs RunRepository, owner identity.Identity) *models.WorkflowRun {
	t.Helper()
	w := &models.Workflow{UserID: owner.UserID, OrgID: models.OrgRef(owner.OrgID), Name: "wf"}
	require.NoError(t, workflows.Create(ctx, w))
	run := &models.WorkflowRun{WorkflowID: w.ID, Status: models.RunNotStarted}
	require.NoError(t, runs.Create(ctx, run))
	return run
}

func TestRunOutputsComposedAndStandalone(t *testing.T) {
	ctx := context.Background()
	db := databasetest.NewSQLite(t)
	runs := NewRunRepository(db)
	owner := identity.Identity{UserID: "u"}
	run := seedRun(t, ctx, NewWorkflowRepository(db), runs, owner)

	_, err := runs.AppendOutput(ctx, run.ID, datatypes.JSON(`{"images":[{"filename":"a.png"}]}`))
	require.NoError(t, err)
	_, err = runs.AppendOutput(ctx, run.ID, datatypes.JSON(`{"text":"done"}`))
	require.NoError(t, err)

	var withOutputs models.WorkflowRun
	require.NoError(t, runs.GetScoped(ctx, owner, run.ID, true, &withOutputs))
	assert.Len(t, withOutputs.Outputs, 2)

	var bare models.WorkflowRun
	require.NoError(t, runs.GetScoped(ctx, owner, run.ID, false, &bare))
	assert.Empty(t, bare.Outputs)

	outputs, err := runs.ListOutputs(ctx, run.ID)
	require.NoError(t, err)
	assert.Len(t, outputs, 2)
}

func TestRunVisibleOnlyThroughWorkflowScope(t *testing.T) {
	ctx := context.Background()
	db := databasetest.NewSQLite(t)
	runs := NewRunRepository(db)
	run := seedRun(t, ctx, NewWorkflowRepository(db), runs, identity.Identity{UserID: "u", OrgID: "org_o"})

	var got models.WorkflowRun
	require.NoError(t, runs.GetScoped(ctx, identity.Identity{UserID: "teammate", OrgID: "org_o"}, run.ID, false, &got))

	err := runs.GetScoped(ctx, identity.Identity{UserID: "u"}, run.ID, false, &got)
	assert.True(t, appErr.IsCode(err, appErr.CodeNotFound))

	list, err := runs.ListByWorkflow(ctx, identity.Identity{UserID: "stranger"}, run.WorkflowID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestTerminalRunsAreFrozen(t *testing.T) {
	ctx := context.Background()
	db := databasetest.NewSQLite(t)
	runs := NewRunRepository(db)
	owner := identity.Identity{UserID: "u"}
	run := seedRun(t, ctx, NewWorkflowRepository(db), runs, owner)

	started, err := runs.UpdateStatus(ctx, run.ID, models.RunRunning)
	require.NoError(t, err)
	assert.Equal(t, models.RunRunning, started.Status)
	require.NotNil(t, started.StartedAt)
	assert.Nil(t, started.EndedAt)

	finished, err := runs.UpdateStatus(ctx, run.ID, models.RunSuccess)
	require.NoError(t, err)
	assert.Equal(t, models.RunSuccess, finished.Status)
	assert.Equal(t, started.StartedAt.Unix(), finished.StartedAt.Unix(), "start time is kept")
	require.NotNil(t, finished.EndedAt)

	var got models.WorkflowRun
	require.NoError(t, runs.GetScoped(ctx, owner, run.ID, false, &got))
	assert.Equal(t, models.RunSuccess, got.Status)
	assert.NotNil(t, got.StartedAt)
	assert.NotNil(t, got.EndedAt)

	_, err = runs.UpdateStatus(ctx, run.ID, models.RunFailed)
	assert.True(t, appErr.IsCode(err, appErr.CodeConflict))
	assert.ErrorIs(t, err, models.ErrTerminalRun)
}
