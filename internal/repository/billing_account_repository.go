package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/comfydeploy/engine/internal/identity"
	"github.com/comfydeploy/engine/internal/models"
	appErr "github.com/comfydeploy/engine/pkg/errors"
)

// BillingAccountRepository resolves payment provider customers from the
// caller identity. Customer ids are never taken from request input.
type BillingAccountRepository interface {
	// GetForCaller loads the account of the caller's org, or the caller's
	// personal account outside an org.
	GetForCaller(ctx context.Context, caller identity.Identity, dest *models.BillingAccount) error
	// Link stores acct unless its owner already has an account. acct is
	// overwritten with the stored row either way.
	Link(ctx context.Context, acct *models.BillingAccount) error
	SetSubscriptionItem(ctx context.Context, accountID uuid.UUID, itemID string) error
}

type billingAccountRepository struct {
	db *gorm.DB
}

func NewBillingAccountRepository(db *gorm.DB) BillingAccountRepository {
	return &billingAccountRepository{db: db}
}

func (r *billingAccountRepository) GetForCaller(ctx context.Context, caller identity.Identity, dest *models.BillingAccount) error {
	if !caller.Authenticated() {
		return appErr.NotFound("billing account")
	}
	if err := Scope(r.db.WithContext(ctx), caller).First(dest).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return appErr.NotFound("billing account")
		}
		return appErr.Wrap(err, appErr.CodeInternal, "get billing account failed")
	}
	return nil
}

func (r *billingAccountRepository) Link(ctx context.Context, acct *models.BillingAccount) error {
	db := r.db.WithContext(ctx)
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "owner"}},
		DoNothing: true,
	}).Create(acct).Error
	if err != nil {
		return appErr.Wrap(err, appErr.CodeInternal, "link billing account failed")
	}

	var stored models.BillingAccount
	if err := db.Where("owner = ?", acct.Owner).First(&stored).Error; err != nil {
		return appErr.Wrap(err, appErr.CodeInternal, "get billing account failed")
	}
	*acct = stored
	return nil
}

func (r *billingAccountRepository) SetSubscriptionItem(ctx context.Context, accountID uuid.UUID, itemID string) error {
	res := r.db.WithContext(ctx).Model(&models.BillingAccount{}).
		Where("id = ?", accountID).
		Update("subscription_item_id", itemID)
	if res.Error != nil {
		return appErr.Wrap(res.Error, appErr.CodeInternal, "update billing account failed")
	}
	if res.RowsAffected == 0 {
		return appErr.NotFound("billing account")
	}
	return nil
}
