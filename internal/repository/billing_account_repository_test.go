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

func TestBillingAccountsFollowCallerScope(t *testing.T) {
	ctx := context.Background()
	repo := NewBillingAccountRepository(databasetest.NewSQLite(t))

	require.NoError(t, repo.Link(ctx, &models.BillingAccount{
		UserID: "founder", OrgID: models.OrgRef("acme"), Owner: models.OwnerKey("founder", "acme"), CustomerID: "cus_acme",
	}))
	require.NoError(t, repo.Link(ctx, &models.BillingAccount{
		UserID: "founder", Owner: models.OwnerKey("founder", ""), CustomerID: "cus_founder",
	}))

	tests := []struct {
		name     string
		caller   identity.Identity
		customer string
	}{
		{name: "org member", caller: identity.Identity{UserID: "hire", OrgID: "acme"}, customer: "cus_acme"},
		{name: "personal", caller: identity.Identity{UserID: "founder"}, customer: "cus_founder"},
		{name: "other org", caller: identity.Identity{UserID: "founder", OrgID: "globex"}},
		{name: "other user", caller: identity.Identity{UserID: "hire"}},
		{name: "anonymous", caller: identity.Anonymous},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got models.BillingAccount
			err := repo.GetForCaller(ctx, tt.caller, &got)
			if tt.customer == "" {
				assert.True(t, appErr.IsCode(err, appErr.CodeNotFound))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.customer, got.CustomerID)
		})
	}
}

func TestLinkKeepsFirstAccountPerOwner(t *testing.T) {
	ctx := context.Background()
	repo := NewBillingAccountRepository(databasetest.NewSQLite(t))
	owner := models.OwnerKey("u", "o")

	first := &models.BillingAccount{UserID: "u", OrgID: models.OrgRef("o"), Owner: owner, CustomerID: "cus_1"}
	require.NoError(t, repo.Link(ctx, first))

	second := &models.BillingAccount{UserID: "v", OrgID: models.OrgRef("o"), Owner: owner, CustomerID: "cus_2"}
	require.NoError(t, repo.Link(ctx, second))
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "cus_1", second.CustomerID)

	require.NoError(t, repo.SetSubscriptionItem(ctx, first.ID, "si_1"))
	var got models.BillingAccount
	require.NoError(t, repo.GetForCaller(ctx, identity.Identity{UserID: "v", OrgID: "o"}, &got))
	assert.Equal(t, "si_1", got.SubscriptionItemID)
}
