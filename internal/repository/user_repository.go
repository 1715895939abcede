package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/comfydeploy/engine/internal/models"
	appErr "github.com/comfydeploy/engine/pkg/errors"
)

// DirectoryRepository stores the identity provider's users and organizations
// so that display names can be resolved without calling the provider.
type DirectoryRepository interface {
	GetUser(ctx context.Context, userID string, dest *models.User) error
	GetOrganization(ctx context.Context, orgID string, dest *models.Organization) error
	SyncUser(ctx context.Context, u *models.User) error
	SyncOrganization(ctx context.Context, o *models.Organization) error
}

type directoryRepository struct {
	db *gorm.DB
}

func NewDirectoryRepository(db *gorm.DB) DirectoryRepository {
	return &directoryRepository{db: db}
}

func (r *directoryRepository) GetUser(ctx context.Context, userID string, dest *models.User) error {
	if err := r.db.WithContext(ctx).Where("id = ?", userID).First(dest).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return appErr.NotFound("user")
		}
		return appErr.Wrap(err, appErr.CodeInternal, "get user failed")
	}
	return nil
}

func (r *directoryRepository) GetOrganization(ctx context.Context, orgID string, dest *models.Organization) error {
	if err := r.db.WithContext(ctx).Where("id = ?", orgID).First(dest).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return appErr.NotFound("organization")
		}
		return appErr.Wrap(err, appErr.CodeInternal, "get organization failed")
	}
	return nil
}

func (r *directoryRepository) SyncUser(ctx context.Context, u *models.User) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "name", "updated_at"}),
	}).Create(u).Error
	if err != nil {
		return appErr.Wrap(err, appErr.CodeInternal, "sync user failed")
	}
	return nil
}

func (r *directoryRepository) SyncOrganization(ctx context.Context, o *models.Organization) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "updated_at"}),
	}).Create(o).Error
	if err != nil {
		return appErr.Wrap(err, appErr.CodeInternal, "sync organization failed")
	}
	return nil
}
