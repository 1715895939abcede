package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/comfydeploy/engine/internal/identity"
	"github.com/comfydeploy/engine/internal/models"
	appErr "github.com/comfydeploy/engine/pkg/errors"
)

type APIKeyRepository interface {
	BaseRepository[models.APIKey]
	// GetActiveByKey resolves a bearer secret to its non-revoked key row.
	GetActiveByKey(ctx context.Context, secret string, dest *models.APIKey) error
	Revoke(ctx context.Context, caller identity.Identity, id any) error
}

type apiKeyRepository struct {
	BaseRepository[models.APIKey]
	db *gorm.DB
}

func NewAPIKeyRepository(db *gorm.DB) APIKeyRepository {
	return &apiKeyRepository{BaseRepository: NewBaseRepository[models.APIKey](db, "api key"), db: db}
}

func (r *apiKeyRepository) GetActiveByKey(ctx context.Context, secret string, dest *models.APIKey) error {
	err := r.db.WithContext(ctx).Where(map[string]any{"key": secret, "revoked": false}).First(dest).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return appErr.NotFound("api key")
		}
		return appErr.Wrap(err, appErr.CodeInternal, "get api key failed")
	}
	return nil
}

func (r *apiKeyRepository) Revoke(ctx context.Context, caller identity.Identity, id any) error {
	if !caller.Authenticated() {
		return appErr.NotFound("api key")
	}
	res := Scope(r.db.WithContext(ctx).Model(&models.APIKey{}), caller).
		Where("id = ? AND revoked = ?", id, false).
		Update("revoked", true)
	if res.Error != nil {
		return appErr.Wrap(res.Error, appErr.CodeInternal, "revoke api key failed")
	}
	if res.RowsAffected == 0 {
		return appErr.NotFound("api key")
	}
	return nil
}
