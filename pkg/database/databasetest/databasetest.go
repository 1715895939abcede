// Package databasetest opens throwaway migrated databases for tests.
package databasetest

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/comfydeploy/engine/internal/models"
	"github.com/comfydeploy/engine/pkg/database"
)

// NewSQLite returns a fresh in-memory SQLite database with every model migrated.
// Each call gets its own named shared-cache database, closed with the test.
func NewSQLite(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := database.Open(context.Background(), dsn, database.Options{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}
