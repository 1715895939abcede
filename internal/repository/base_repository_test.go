package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comfydeploy/engine/internal/identity"
	"github.com/comfydeploy/engine/internal/models"
	"github.com/comfydeploy/engine/pkg/database/databasetest"
	appErr "github.com/comfydeploy/engine/pkg/errors"
)

func TestListScopedIsolatesOrgAndPersonalRows(t *testing.T) {
	ctx := context.Background()
	repo := NewMachineRepository(databasetest.NewSQLite(t))

	userA := identity.Identity{UserID: "user_a", OrgID: "org_o"}
	userAPersonal := identity.Identity{UserID: "user_a"}
	userB := identity.Identity{UserID: "user_b"}

	rows := []*models.Machine{
		{UserID: "user_a", OrgID: models.OrgRef("org_o"), Name: "org-box", Endpoint: "https://o.example.com"},
		{UserID: "user_c", OrgID: models.OrgRef("org_o"), Name: "teammate-box", Endpoint: "https://t.example.com"},
		{UserID: "user_a", Name: "a-personal", Endpoint: "https://a.example.com"},
		{UserID: "user_b", Name: "b-personal", Endpoint: "https://b.example.com"},
		{UserID: "user_b", OrgID: models.OrgRef("org_other"), Name: "other-org", Endpoint: "https://x.example.com"},
	}
	for _, m := range rows {
		require.NoError(t, repo.Create(ctx, m))
	}

	names := func(id identity.Identity) []string {
		list, err := repo.ListScoped(ctx, id)
		require.NoError(t, err)
		out := make([]string, 0, len(list))
		for _, m := range list {
			out = append(out, m.Name)
		}
		return out
	}

	assert.ElementsMatch(t, []string{"org-box", "teammate-box"}, names(userA))
	assert.ElementsMatch(t, []string{"a-personal"}, names(userAPersonal))
	assert.ElementsMatch(t, []string{"b-personal"}, names(userB))
	assert.Empty(t, names(identity.Anonymous))
}

func TestListScopedOrdersByMostRecentlyUpdated(t *testing.T) {
	ctx := context.Background()
	db := databasetest.NewSQLite(t)
	repo := NewModelRepository(db)
	caller := identity.Identity{UserID: "u"}

	first := &models.Model{UserID: "u", Name: "first", ModelType: "lora"}
	second := &models.Model{UserID: "u", Name: "second", ModelType: "vae"}
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, second))

	time.Sleep(5 * time.Millisecond)
	first.Description = "touched"
	require.NoError(t, db.Save(first).Error)

	list, err := repo.ListScoped(ctx, caller)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "first", list[0].Name)
}

func TestGetScopedHidesOtherScopes(t *testing.T) {
	ctx := context.Background()
	repo := NewCheckpointRepository(databasetest.NewSQLite(t))

	c := &models.Checkpoint{UserID: "user_b", Filename: "sdxl.safetensors"}
	require.NoError(t, repo.Create(ctx, c))

	var got models.Checkpoint
	require.NoError(t, repo.GetScoped(ctx, identity.Identity{UserID: "user_b"}, c.ID, &got))
	assert.Equal(t, "sdxl.safetensors", got.Filename)

	err := repo.GetScoped(ctx, identity.Identity{UserID: "user_a"}, c.ID, &got)
	assert.True(t, appErr.IsCode(err, appErr.CodeNotFound))

	err = repo.GetScoped(ctx, identity.Identity{UserID: "user_b", OrgID: "org_o"}, c.ID, &got)
	assert.True(t, appErr.IsCode(err, appErr.CodeNotFound))

	err = repo.GetScoped(ctx, identity.Anonymous, c.ID, &got)
	assert.True(t, appErr.IsCode(err, appErr.CodeNotFound))
}

func TestDeleteScoped(t *testing.T) {
	ctx := context.Background()
	repo := NewMachineRepository(databasetest.NewSQLite(t))
	owner := identity.Identity{UserID: "u"}

	m := &models.Machine{UserID: "u", Name: "box", Endpoint: "https://box.example.com"}
	require.NoError(t, repo.Create(ctx, m))

	err := repo.DeleteScoped(ctx, identity.Identity{UserID: "intruder"}, m.ID)
	assert.True(t, appErr.IsCode(err, appErr.CodeNotFound))

	require.NoError(t, repo.DeleteScoped(ctx, owner, m.ID))

	err = repo.GetScoped(ctx, owner, m.ID, &models.Machine{})
	assert.True(t, appErr.IsCode(err, appErr.CodeNotFound))

	err = repo.DeleteScoped(ctx, owner, uuid.New())
	assert.True(t, appErr.IsCode(err, appErr.CodeNotFound))
}
