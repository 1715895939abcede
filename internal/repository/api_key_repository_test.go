package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comfydeploy/engine/internal/identity"
	"github.com/comfydeploy/engine/internal/models"
	"github.com/comfydeploy/engine/pkg/database/databasetest"
	appErr "github.com/comfydeploy/engine/pkg/errors"
)

func TestAPIKeyRevocation(t *testing.T) {
	ctx := context.Background()
	repo := NewAPIKeyRepository(databasetest.NewSQLite(t))
	owner := identity.Identity{UserID: "u"}

	k := &models.APIKey{UserID: "u", Name: "ci", Key: "cd_live_0000abcd"}
	require.NoError(t, repo.Create(ctx, k))

	var got models.APIKey
	require.NoError(t, repo.GetActiveByKey(ctx, "cd_live_0000abcd", &got))
	assert.Equal(t, k.ID, got.ID)

	err := repo.Revoke(ctx, identity.Identity{UserID: "other"}, k.ID)
	assert.True(t, appErr.IsCode(err, appErr.CodeNotFound))

	require.NoError(t, repo.Revoke(ctx, owner, k.ID))

	err = repo.GetActiveByKey(ctx, "cd_live_0000abcd", &got)
	assert.True(t, appErr.IsCode(err, appErr.CodeNotFound))

	err = repo.Revoke(ctx, owner, k.ID)
	assert.True(t, appErr.IsCode(err, appErr.CodeNotFound))
}
