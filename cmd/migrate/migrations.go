package main

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/comfydeploy/engine/internal/models"
)

// slotIndex enforces one deployment per (workflow, environment).
const slotIndex = "idx_deployments_slot"

func runMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(models.All()...); err != nil {
		return err
	}
	return runCustomMigrations(db)
}

// runCustomMigrations adds the scope listing indexes AutoMigrate can't express.
func runCustomMigrations(db *gorm.DB) error {
	migrations := []func(*gorm.DB) error{
		addScopeIndexes,
	}
	for _, migration := range migrations {
		if err := migration(db); err != nil {
			return err
		}
	}
	return nil
}

// scopedTables are listed with the org or personal predicate ordered by updated_at.
var scopedTables = []string{"workflows", "machines", "checkpoints", "models", "api_keys"}

func addScopeIndexes(db *gorm.DB) error {
	for _, table := range scopedTables {
		stmts := []string{
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_org_updated ON %s(org_id, updated_at)`, table, table),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_user_updated ON %s(user_id, updated_at)`, table, table),
		}
		if db.Dialector.Name() == "mysql" {
			// MySQL has no IF NOT EXISTS for indexes.
			if err := addMySQLIndexes(db, table); err != nil {
				return err
			}
			continue
		}
		for _, stmt := range stmts {
			if err := db.Exec(stmt).Error; err != nil {
				return fmt.Errorf("index %s: %w", table, err)
			}
		}
	}
	return nil
}

func addMySQLIndexes(db *gorm.DB, table string) error {
	for _, col := range []string{"org", "user"} {
		name := fmt.Sprintf("idx_%s_%s_updated", table, col)
		if db.Migrator().HasIndex(table, name) {
			continue
		}
		stmt := fmt.Sprintf(`CREATE INDEX %s ON %s(%s_id, updated_at)`, name, table, col)
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("index %s: %w", table, err)
		}
	}
	return nil
}

func checkSchema(db *gorm.DB) error {
	if !db.Migrator().HasTable(&models.Deployment{}) {
		return fmt.Errorf("table deployments missing: run migrate up")
	}
	if !db.Migrator().HasIndex(&models.Deployment{}, slotIndex) {
		return fmt.Errorf("unique index %s missing: concurrent deploys could duplicate slots", slotIndex)
	}
	return nil
}
