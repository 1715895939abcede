package repository

import (
	"gorm.io/gorm"

	"github.com/comfydeploy/engine/internal/models"
)

type MachineRepository interface {
	BaseRepository[models.Machine]
}

func NewMachineRepository(db *gorm.DB) MachineRepository {
	return NewBaseRepository[models.Machine](db, "machine")
}

type CheckpointRepository interface {
	BaseRepository[models.Checkpoint]
}

func NewCheckpointRepository(db *gorm.DB) CheckpointRepository {
	return NewBaseRepository[models.Checkpoint](db, "checkpoint")
}

type ModelRepository interface {
	BaseRepository[models.Model]
}

func NewModelRepository(db *gorm.DB) ModelRepository {
	return NewBaseRepository[models.Model](db, "model")
}
