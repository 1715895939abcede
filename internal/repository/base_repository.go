package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/comfydeploy/engine/internal/identity"
	appErr "github.com/comfydeploy/engine/pkg/errors"
)

// BaseRepository defines the create and scoped read/delete paths shared by
// every owned entity.
type BaseRepository[T any] interface {
	Create(ctx context.Context, obj *T) error

	// GetScoped loads a row by id only when it is visible to the caller.
	GetScoped(ctx context.Context, caller identity.Identity, id any, dest *T) error
	// ListScoped lists the caller's rows, most recently updated first.
	ListScoped(ctx context.Context, caller identity.Identity) ([]T, error)
	// DeleteScoped deletes a row only when it is visible to the caller.
	DeleteScoped(ctx context.Context, caller identity.Identity, id any) error
}

type baseRepository[T any] struct {
	db   *gorm.DB
	noun string
}

// NewBaseRepository returns a BaseRepository; noun names the entity in errors.
func NewBaseRepository[T any](db *gorm.DB, noun string) BaseRepository[T] {
	return &baseRepository[T]{db: db, noun: noun}
}

func (r *baseRepository[T]) Create(ctx context.Context, obj *T) error {
	if err := r.db.WithContext(ctx).Create(obj).Error; err != nil {
		return appErr.Wrap(err, appErr.CodeInternal, fmt.Sprintf("create %s failed", r.noun))
	}
	return nil
}

func (r *baseRepository[T]) GetScoped(ctx context.Context, caller identity.Identity, id any, dest *T) error {
	if !caller.Authenticated() {
		return appErr.NotFound(r.noun)
	}
	return r.first(Scope(r.db.WithContext(ctx), caller), dest, id)
}

func (r *baseRepository[T]) first(db *gorm.DB, dest *T, id any) error {
	if err := db.First(dest, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return appErr.NotFound(r.noun)
		}
		return appErr.Wrap(err, appErr.CodeInternal, fmt.Sprintf("get %s failed", r.noun))
	}
	return nil
}

func (r *baseRepository[T]) ListScoped(ctx context.Context, caller identity.Identity) ([]T, error) {
	out := []T{}
	if !caller.Authenticated() {
		return out, nil
	}
	if err := Scope(r.db.WithContext(ctx), caller).Order("updated_at DESC").Find(&out).Error; err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, fmt.Sprintf("list %s failed", r.noun))
	}
	return out, nil
}

func (r *baseRepository[T]) DeleteScoped(ctx context.Context, caller identity.Identity, id any) error {
	if !caller.Authenticated() {
		return appErr.NotFound(r.noun)
	}
	return r.delete(Scope(r.db.WithContext(ctx), caller), id)
}

func (r *baseRepository[T]) delete(db *gorm.DB, id any) error {
	var t T
	res := db.Delete(&t, "id = ?", id)
	if res.Error != nil {
		return appErr.Wrap(res.Error, appErr.CodeInternal, fmt.Sprintf("delete %s failed", r.noun))
	}
	if res.RowsAffected == 0 {
		return appErr.NotFound(r.noun)
	}
	return nil
}
