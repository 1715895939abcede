package repository

import (
	"gorm.io/gorm"

	"github.com/comfydeploy/engine/internal/identity"
)

// Scope restricts a query to the rows visible to id. Organization membership
// supersedes personal ownership: inside an org only org rows are visible, and
// outside one only the caller's personal (org-less) rows are.
func Scope(db *gorm.DB, id identity.Identity) *gorm.DB {
	if id.InOrg() {
		return db.Where("org_id = ?", id.OrgID)
	}
	return db.Where("user_id = ? AND org_id IS NULL", id.UserID)
}
